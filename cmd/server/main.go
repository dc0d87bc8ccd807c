package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"openmat/bookings-app/internal/api"
	"openmat/bookings-app/internal/config"
	"openmat/bookings-app/internal/repository"
	"openmat/bookings-app/internal/repository/mongo"
	"openmat/bookings-app/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting bookings app server")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logger.Fatal("invalid booking timezone", zap.String("timezone", cfg.Booking.Timezone), zap.Error(err))
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureLessonIndexes(ctx, appDB.Collection("lessons"))
		mongo.EnsureBookingIndexes(ctx, appDB.Collection("bookings"))
		mongo.EnsureScheduleIndexes(ctx, appDB.Collection("schedules"))
		mongo.EnsureSubscriptionIndexes(ctx, appDB.Collection("subscriptions"))
		logger.Info("index creation process completed")
	}()

	// --- Initialize Repositories ---
	lessonRepo := mongo.NewMongoLessonRepository(appDB)
	bookingRepo := mongo.NewMongoBookingRepository(appDB)
	scheduleRepo := mongo.NewMongoScheduleRepository(appDB)
	classOptionRepo := mongo.NewMongoClassOptionRepository(appDB)
	subscriptionRepo := mongo.NewMongoSubscriptionRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)

	// --- Initialize Services ---
	scheduleService := service.NewScheduleService(scheduleRepo, lessonRepo, bookingRepo, loc, logger)
	lessonService := service.NewLessonService(lessonRepo, bookingRepo, classOptionRepo, logger, nil)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, planRepo, bookingRepo, loc, logger, nil)
	bookingService := service.NewBookingService(lessonRepo, bookingRepo, classOptionRepo, subscriptionService, logger, nil)

	// --- Background Lesson Generation ---
	genCtx, stopGeneration := context.WithCancel(context.Background())
	defer stopGeneration()
	if cfg.Booking.GenerateWeeksAhead > 0 {
		go runGenerationLoop(genCtx, scheduleRepo, scheduleService, loc, cfg.Booking.GenerateWeeksAhead, logger)
	}

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	api.SetupRoutes(router, cfg.JWT.Secret, cfg.Booking.DefaultLockOutMinutes, loc, lessonService, bookingService, scheduleService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("server starting", zap.String("address", cfg.Server.Address))

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen and serve error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	stopGeneration()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}

// runGenerationLoop keeps weeksAhead weeks of lessons materialized for every
// tenant. It runs once at startup and then every 24 hours; failures for one
// tenant never block the others.
func runGenerationLoop(
	ctx context.Context,
	scheduleRepo repository.ScheduleRepository,
	scheduleService service.ScheduleService,
	loc *time.Location,
	weeksAhead int,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	run := func() {
		tenantIDs, err := scheduleRepo.ListTenantIDs(ctx)
		if err != nil {
			logger.Error("failed to list tenants for generation", zap.Error(err))
			return
		}

		now := time.Now().In(loc)
		rangeEnd := now.AddDate(0, 0, 7*weeksAhead)

		for _, tenantID := range tenantIDs {
			summary, err := scheduleService.Expand(ctx, tenantID, now, rangeEnd, false)
			if err != nil {
				logger.Error("background generation failed",
					zap.String("tenantId", tenantID),
					zap.Error(err),
				)
				continue
			}
			logger.Info("background generation completed",
				zap.String("tenantId", tenantID),
				zap.String("runId", summary.RunID),
				zap.Int("created", len(summary.Created)),
				zap.Int("skipped", summary.Skipped),
			)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
