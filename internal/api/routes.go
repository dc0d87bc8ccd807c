package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openmat/bookings-app/internal/domain" // Needed for RoleMiddleware
	"openmat/bookings-app/internal/service"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	defaultLockOutMinutes int,
	loc *time.Location,
	lessonService service.LessonService,
	bookingService service.BookingService,
	scheduleService service.ScheduleService,
) {

	lessonHandler := NewLessonHandler(lessonService, loc)
	bookingHandler := NewBookingHandler(bookingService)
	schedulerHandler := NewSchedulerHandler(scheduleService, defaultLockOutMinutes, loc)

	authMiddleware := AuthMiddleware(jwtSecret)
	tenantMiddleware := TenantMiddleware()

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	apiV1.Use(tenantMiddleware)

	// Lesson reads are open to anonymous visitors; the booking status in the
	// response is personalized when a token is presented.
	lessonReads := apiV1.Group("/lessons")
	lessonReads.Use(OptionalAuthMiddleware(jwtSecret))
	{
		// GET /api/v1/lessons?from=...&to=...
		lessonReads.GET("", lessonHandler.GetLessons)
		lessonReads.GET("/:id", lessonHandler.GetLesson)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})

		// --- Lesson Mutations ---
		lessonGroup := protected.Group("/lessons")
		{
			lessonGroup.DELETE("/:id", RoleMiddleware(domain.RoleAdmin), lessonHandler.DeleteLesson)

			// POST /api/v1/lessons/{id}/bookings
			lessonGroup.POST("/:id/bookings", bookingHandler.CreateBooking)
			// POST /api/v1/lessons/{id}/promote - manual waitlist promotion
			lessonGroup.POST("/:id/promote", RoleMiddleware(domain.RoleAdmin), bookingHandler.PromoteNextWaiting)
		}

		// --- Booking Routes ---
		bookingGroup := protected.Group("/bookings")
		{
			bookingGroup.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		// --- Scheduler Routes (admin only) ---
		schedulerGroup := protected.Group("/scheduler")
		schedulerGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			schedulerGroup.GET("", schedulerHandler.GetSchedule)
			schedulerGroup.PUT("", schedulerHandler.SaveSchedule)
			// POST /api/v1/scheduler/generate - expand the weekly template into
			// concrete lessons for a date range.
			schedulerGroup.POST("/generate", schedulerHandler.Generate)
		}
	}
}
