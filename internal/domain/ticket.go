package domain

import (
	"context"
	"errors"
	"time"
)

// ErrSoldOut is returned when an event has no remaining capacity at the
// moment of reservation.
var ErrSoldOut = errors.New("event is sold out")

// ErrDuplicateRegistration is returned when the attendee already holds a
// ticket for the event, whether detected by the pre-check or by losing the
// insert race.
var ErrDuplicateRegistration = errors.New("attendee already registered for this event")

// ErrConflict is returned by the ticket store when an insert violates a
// uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrTicketIssuance is returned when ticket creation fails for a reason
// other than duplication. The reserved seat has been released by then.
var ErrTicketIssuance = errors.New("ticket issuance failed")

// Ticket is an issued admission for one attendee to one event. Tickets are
// immutable after creation. TicketID is the opaque token encoded in the QR
// payload and is independent of the storage-assigned row ID.
// swagger:model Ticket
type Ticket struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	EventID    string    `json:"event_id"`
	AttendeeID string    `json:"attendee_id"`
	QRData     string    `json:"qr_data"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTicket returns a new Ticket. ID is set by the repository on create and
// QRData is filled in once the payload has been encoded.
func NewTicket(eventID, attendeeID, ticketID string, createdAt time.Time) *Ticket {
	return &Ticket{
		TicketID:   ticketID,
		EventID:    eventID,
		AttendeeID: attendeeID,
		CreatedAt:  createdAt,
	}
}

// TicketWithEvent bundles a ticket with its event for caller convenience.
type TicketWithEvent struct {
	Ticket *Ticket `json:"ticket"`
	Event  *Event  `json:"event"`
}

// TicketRepository defines storage operations for tickets.
type TicketRepository interface {
	// Create inserts the ticket. ErrConflict is returned when the
	// (event_id, attendee_id) pair or the ticket_id already exists.
	Create(ctx context.Context, ticket *Ticket) error
	GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*Ticket, error)
	ListByAttendee(ctx context.Context, attendeeID string) ([]*TicketWithEvent, error)
}

// QREncoder produces a scannable representation of a ticket identifier.
type QREncoder interface {
	Encode(payload string) (string, error)
}

// RegistrationService is the reservation coordinator: it reserves a seat,
// issues the ticket, and compensates on partial failure.
type RegistrationService interface {
	// RegisterForEvent registers the attendee for the event and returns the
	// issued ticket with the event joined. On any error the seat counter
	// and the ticket set are left exactly as they were before the call.
	RegisterForEvent(ctx context.Context, eventID, attendeeID string) (*TicketWithEvent, error)
	ListAttendeeTickets(ctx context.Context, attendeeID string) ([]*TicketWithEvent, error)
}
