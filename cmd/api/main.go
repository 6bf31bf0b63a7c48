package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/app"
	"github.com/Freeeeeet/clinic_scheduler/internal/auth"
	"github.com/Freeeeeet/clinic_scheduler/internal/cache"
	"github.com/Freeeeeet/clinic_scheduler/internal/clock"
	"github.com/Freeeeeet/clinic_scheduler/internal/config"
	"github.com/Freeeeeet/clinic_scheduler/internal/httpapi"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/Freeeeeet/clinic_scheduler/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	location, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid local offset", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Database is unreachable", zap.Error(err))
	}

	if cfg.MigrationsAuto {
		migrator, err := app.NewMigrator(pool, migrations.FS, logger)
		if err != nil {
			logger.Fatal("Failed to create migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		_ = migrator.Close()
	}

	var slotCache service.SlotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, slot cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			slotCache = cache.NewSlotCache(redisClient, cfg.SlotCacheTTL)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	appointmentRepo := repository.NewAppointmentRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	// Services
	systemClock := clock.System{}
	userService := service.NewUserService(userRepo, logger)
	notificationService := service.NewNotificationService(pool, notificationRepo, logger)
	slotCatalog := service.NewSlotCatalog(pool, userRepo, slotRepo, appointmentRepo, slotCache, schedulingMetrics, logger)
	bookingService := service.NewBookingService(pool, userRepo, slotRepo, appointmentRepo, slotCache, schedulingMetrics, logger)
	appointmentService := service.NewAppointmentService(
		pool, userRepo, slotRepo, appointmentRepo, notificationService,
		slotCache, systemClock, location, schedulingMetrics, logger,
	)
	sessionGuard := service.NewSessionGuard(
		appointmentRepo, userRepo, auth.NewSessionIssuer(cfg.SessionTokenSecret),
		systemClock, location, cfg.JoinEarly, cfg.JoinLate, schedulingMetrics, logger,
	)

	handler := httpapi.NewHandler(slotCatalog, bookingService, appointmentService, sessionGuard, notificationService, logger)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:        handler,
		Logger:         logger,
		AuthSecret:     cfg.AuthSecret,
		BookingLimiter: httpapi.NewRateLimiter(cfg.BookingRatePerSecond, cfg.BookingRateBurst),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DB:             pool,
		Users:          userService,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Clinic scheduler listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("local_offset", cfg.LocalUTCOffset),
			zap.Bool("slot_cache", slotCache != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
