package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	"eventpass/internal/delivery/http/controllers"
	"eventpass/internal/delivery/http/middleware"
	"eventpass/internal/domain"
)

// RouterConfig carries the rate limiter settings for the registration route.
type RouterConfig struct {
	RedisClient *redis.Client
	RateLimit   int
	RateWindow  time.Duration
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	eventController *controllers.EventController,
	ticketController *controllers.TicketController,
	verifier domain.TokenVerifier,
	logger *slog.Logger,
	cfg RouterConfig,
) *http.ServeMux {
	mux := http.NewServeMux()

	auth := middleware.RequireAuth(verifier, logger)
	limit := middleware.RateLimit(cfg.RedisClient, cfg.RateLimit, cfg.RateWindow, logger)

	// Public catalog
	mux.HandleFunc("GET /events", eventController.ListEvents)
	mux.HandleFunc("GET /events/{eventID}", eventController.GetEvent)

	// Organizer
	mux.HandleFunc("POST /events", auth(eventController.CreateEvent))
	mux.HandleFunc("PATCH /events/{eventID}", auth(eventController.UpdateEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(eventController.DeleteEvent))
	mux.HandleFunc("GET /organizer/events", auth(eventController.ListMyEvents))
	mux.HandleFunc("GET /organizer/events/{eventID}/stats", auth(eventController.EventStats))

	// Attendee
	mux.HandleFunc("POST /events/{eventID}/registrations", auth(limit(ticketController.Register)))
	mux.HandleFunc("GET /attendee/tickets", auth(ticketController.ListMyTickets))

	// Health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
