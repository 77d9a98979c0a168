package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"eventpass/config"
	"eventpass/internal/adapters/auth"
	"eventpass/internal/adapters/notify"
	"eventpass/internal/adapters/qr"
	delivery "eventpass/internal/delivery/http"
	"eventpass/internal/delivery/http/controllers"
	"eventpass/internal/delivery/http/middleware"
	"eventpass/internal/repository/postgres"
	"eventpass/internal/services"
)

// @title EventPass API
// @version 1.0
// @description Event discovery and ticketing service with atomic seat reservation and QR ticket issuance.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token issued by the external identity provider.
func main() {
	cfg := config.Load()
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("ping database", "err", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	notifier, err := notify.NewNotifier(notify.Config{
		Provider: cfg.NotifyProvider,
		URL:      cfg.AMQPUrl,
		Queue:    cfg.NotifyQueue,
	}, logger)
	if err != nil {
		logger.Error("init notifier", "err", err)
		os.Exit(1)
	}
	defer notifier.Close()

	eventRepo := postgres.NewEventRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)

	eventService := services.NewEventService(eventRepo, cfg.ServiceTimeout)
	registrationService := services.NewRegistrationService(
		eventRepo,
		ticketRepo,
		qr.NewEncoder(),
		notifier,
		logger,
		cfg.ServiceTimeout,
	)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	eventController := controllers.NewEventController(logger, eventService)
	ticketController := controllers.NewTicketController(logger, registrationService)

	mux := delivery.NewRouter(eventController, ticketController, verifier, logger, delivery.RouterConfig{
		RedisClient: rdb,
		RateLimit:   cfg.RegistrationRateLimit,
		RateWindow:  cfg.RegistrationRateWindow,
	})

	handler := middleware.LoggingMiddleware(logger, middleware.CORS(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
