package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/service"
)

// LessonHandler holds the lesson service dependency and the zone query dates
// are interpreted in.
type LessonHandler struct {
	lessonService service.LessonService
	loc           *time.Location
}

// NewLessonHandler creates a new LessonHandler.
func NewLessonHandler(lessonService service.LessonService, loc *time.Location) *LessonHandler {
	return &LessonHandler{lessonService: lessonService, loc: loc}
}

// --- DTOs for API (Data Transfer Objects) ---

// LessonResponse is the DTO for returning a lesson with its derived state.
type LessonResponse struct {
	ID                string              `json:"id"`
	Date              time.Time           `json:"date"`
	StartTime         time.Time           `json:"startTime"`
	EndTime           time.Time           `json:"endTime"`
	Location          string              `json:"location,omitempty"`
	ClassOptionID     string              `json:"classOptionId"`
	InstructorID      string              `json:"instructorId,omitempty"`
	LockOutMinutes    int                 `json:"lockOutMinutes"`
	Active            bool                `json:"active"`
	BookingStatus     domain.LessonStatus `json:"bookingStatus"`
	RemainingCapacity int                 `json:"remainingCapacity"`
}

// MapLessonToResponse converts a service.LessonDetails to LessonResponse DTO.
func MapLessonToResponse(details *service.LessonDetails) LessonResponse {
	if details == nil {
		return LessonResponse{}
	}
	resp := LessonResponse{
		ID:                details.ID.Hex(),
		Date:              details.Date,
		StartTime:         details.StartTime,
		EndTime:           details.EndTime,
		Location:          details.Location,
		ClassOptionID:     details.ClassOptionID.Hex(),
		LockOutMinutes:    details.LockOutMinutes,
		Active:            details.Active,
		BookingStatus:     details.BookingStatus,
		RemainingCapacity: details.RemainingCapacity,
	}
	if details.InstructorID != nil {
		resp.InstructorID = details.InstructorID.Hex()
	}
	return resp
}

// MapLessonsToResponse converts a slice of LessonDetails to response DTOs.
func MapLessonsToResponse(lessons []service.LessonDetails) []LessonResponse {
	responses := make([]LessonResponse, len(lessons))
	for i := range lessons {
		responses[i] = MapLessonToResponse(&lessons[i])
	}
	return responses
}

// --- Handler Methods ---

// GetLessons handles GET /lessons?from=2025-01-06&to=2025-01-12
// Lists lessons in the window with booking status computed for the caller.
func (h *LessonHandler) GetLessons(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	// Window edges are midnights in the lesson-generation zone, not UTC,
	// so a day boundary means the same thing here as it does to the engine.
	from, err := time.ParseInLocation("2006-01-02", c.Query("from"), h.loc)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid or missing 'from' date (expected YYYY-MM-DD).")
		return
	}
	toDate, err := time.ParseInLocation("2006-01-02", c.Query("to"), h.loc)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid or missing 'to' date (expected YYYY-MM-DD).")
		return
	}
	// Include the whole final day.
	to := toDate.Add(24*time.Hour - time.Millisecond)

	viewer := viewerFromContext(c)

	lessons, err := h.lessonService.GetLessons(c.Request.Context(), tenantID, from, to, viewer)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve lessons.")
		return
	}

	c.JSON(http.StatusOK, MapLessonsToResponse(lessons))
}

// GetLesson handles GET /lessons/:id
func (h *LessonHandler) GetLesson(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	lessonID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lesson ID format.")
		return
	}

	viewer := viewerFromContext(c)

	details, err := h.lessonService.GetLesson(c.Request.Context(), tenantID, lessonID, viewer)
	if err != nil {
		if errors.Is(err, service.ErrLessonNotFound) {
			abortWithError(c, http.StatusNotFound, "Lesson not found.")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve lesson.")
		}
		return
	}

	c.JSON(http.StatusOK, MapLessonToResponse(details))
}

// DeleteLesson handles DELETE /lessons/:id (admin only). Deletion is refused
// while the lesson has confirmed bookings.
func (h *LessonHandler) DeleteLesson(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	lessonID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lesson ID format.")
		return
	}

	err = h.lessonService.DeleteLesson(c.Request.Context(), tenantID, lessonID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLessonNotFound):
			abortWithError(c, http.StatusNotFound, "Lesson not found.")
		case errors.Is(err, service.ErrHasConfirmedBookings):
			abortWithError(c, http.StatusConflict, "Lesson has confirmed bookings and cannot be deleted.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete lesson.")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// viewerFromContext builds the status viewer from the authenticated user, or
// nil for anonymous access.
func viewerFromContext(c *gin.Context) *service.Viewer {
	userID, err := getUserIDFromContext(c)
	if err != nil || userID == primitive.NilObjectID {
		return nil
	}
	return &service.Viewer{UserID: userID}
}
