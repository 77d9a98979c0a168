package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventpass/internal/domain"
)

// notifyTimeout bounds the fire-and-forget notification dispatch.
const notifyTimeout = 5 * time.Second

type registrationService struct {
	eventRepo      domain.EventRepository
	ticketRepo     domain.TicketRepository
	encoder        domain.QREncoder
	notifier       domain.Notifier
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewRegistrationService creates the reservation coordinator with the given
// stores and collaborators.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	ticketRepo domain.TicketRepository,
	encoder domain.QREncoder,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		eventRepo:      eventRepo,
		ticketRepo:     ticketRepo,
		encoder:        encoder,
		notifier:       notifier,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// RegisterForEvent reserves a seat, issues a ticket, and compensates when a
// later step fails. Mutual exclusion lives entirely in the stores: the seat
// counter moves through one conditional increment and duplicates are caught
// by the (event_id, attendee_id) uniqueness constraint, so the flow is safe
// under arbitrary concurrent callers across processes.
func (s *registrationService) RegisterForEvent(ctx context.Context, eventID, attendeeID string) (*domain.TicketWithEvent, error) {
	eventID = strings.TrimSpace(eventID)
	attendeeID = strings.TrimSpace(attendeeID)
	if eventID == "" || attendeeID == "" {
		return nil, fmt.Errorf("%w: eventID and attendeeID are required", domain.ErrInvalidInput)
	}

	// Once a seat is reserved the attempt has to run to completion —
	// either a ticket commits or the seat is handed back. Detach from the
	// caller's cancellation and keep the service timeout as the only bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	// Cheap rejection for the common repeat call. A concurrent duplicate
	// can still pass this check before the first insert commits; the
	// uniqueness constraint at ticket creation is what actually decides.
	if _, err := s.ticketRepo.GetByEventAndAttendee(ctx, eventID, attendeeID); err == nil {
		return nil, domain.ErrDuplicateRegistration
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing ticket: %w", err)
	}

	applied, err := s.eventRepo.TryReserveSeat(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("reserve seat: %w", err)
	}
	if !applied {
		return nil, domain.ErrSoldOut
	}

	// From here on every failure must hand the seat back.
	ticket := domain.NewTicket(eventID, attendeeID, uuid.NewString(), time.Now().UTC())
	qrData, err := s.encoder.Encode("ticket:" + ticket.TicketID)
	if err != nil {
		s.releaseSeat(ctx, eventID)
		return nil, fmt.Errorf("%w: encode qr: %v", domain.ErrTicketIssuance, err)
	}
	ticket.QRData = qrData

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		s.releaseSeat(ctx, eventID)
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTicketIssuance, err)
	}

	// Our increment is committed; reflect it in the returned summary.
	event.SeatsBooked++

	go s.notify(event, ticket)

	return &domain.TicketWithEvent{Ticket: ticket, Event: event}, nil
}

func (s *registrationService) ListAttendeeTickets(ctx context.Context, attendeeID string) ([]*domain.TicketWithEvent, error) {
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return nil, fmt.Errorf("%w: attendeeID is required", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	items, err := s.ticketRepo.ListByAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if items == nil {
		items = []*domain.TicketWithEvent{}
	}
	return items, nil
}

// releaseSeat is the compensation step: it undoes a confirmed reservation
// after ticket issuance failed. A failed release leaves the seat counter
// wrong with no automated path to fix it, so it is logged at the highest
// severity rather than swallowed.
func (s *registrationService) releaseSeat(ctx context.Context, eventID string) {
	if err := s.eventRepo.ReleaseSeat(ctx, eventID); err != nil {
		s.logger.Error("seat release failed after aborted registration; seat counter is inconsistent",
			"event_id", eventID, "err", err)
	}
}

func (s *registrationService) notify(event *domain.Event, ticket *domain.Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	notice := domain.RegistrationNotice{
		EventID:     event.ID,
		EventTitle:  event.Title,
		TicketID:    ticket.TicketID,
		OrganizerID: event.OrganizerID,
		ConfirmedAt: ticket.CreatedAt,
	}
	if err := s.notifier.NotifyRegistration(ctx, notice); err != nil {
		s.logger.Warn("registration notification failed",
			"event_id", event.ID, "ticket_id", ticket.TicketID, "err", err)
	}
}
