package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"eventpass/internal/delivery/http/helpers"
	"eventpass/internal/delivery/http/middleware"
	"eventpass/internal/domain"
)

type TicketController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewTicketController(logger *slog.Logger, svc domain.RegistrationService) *TicketController {
	return &TicketController{
		Logger:  logger,
		Service: svc,
	}
}

// RegisterSuccessResponse is the success response envelope for POST /events/{eventID}/registrations (201).
type RegisterSuccessResponse struct {
	Data  *domain.TicketWithEvent `json:"data"`
	Error *helpers.APIError       `json:"error"`
}

// Register godoc
// @Summary Register the authenticated attendee for an event
// @Description Atomically reserves a seat and issues a QR ticket. At most one ticket exists per attendee and event; a repeat call never produces a second ticket.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 201 {object} controllers.RegisterSuccessResponse "Ticket with event summary"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: sold_out or duplicate_registration"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: ticket_issuance_failed or internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *TicketController) Register(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}

	attendeeID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	ticket, err := c.Service.RegisterForEvent(r.Context(), eventID, attendeeID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		case errors.Is(err, domain.ErrSoldOut):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeSoldOut, "event is sold out")
		case errors.Is(err, domain.ErrDuplicateRegistration):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeDuplicateRegistration, "already registered for this event")
		case errors.Is(err, domain.ErrTicketIssuance):
			c.Logger.ErrorContext(r.Context(), "ticket issuance failed", "event_id", eventID, "err", err)
			helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeTicketIssuanceFailed, "could not issue ticket, no seat was taken")
		default:
			c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
			helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		}
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, ticket)
}

// ListMyTicketsSuccessResponse is the success response envelope for GET /attendee/tickets (200).
type ListMyTicketsSuccessResponse struct {
	Data  []*domain.TicketWithEvent `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// ListMyTickets godoc
// @Summary List the authenticated attendee's tickets
// @Description Returns the attendee's tickets with event data joined, newest first.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ListMyTicketsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendee/tickets [get]
func (c *TicketController) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	attendeeID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	items, err := c.Service.ListAttendeeTickets(r.Context(), attendeeID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, items)
}
