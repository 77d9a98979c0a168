package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when the request is missing required fields or
// carries values outside their valid range.
var ErrInvalidInput = errors.New("invalid input")

// ErrForbidden is returned when the caller is not allowed to act on the resource.
var ErrForbidden = errors.New("forbidden")

// Event represents a published event with a fixed seat capacity.
// "Sold out" is derived from the counters, never stored.
// swagger:model Event
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Venue       string    `json:"venue"`
	City        string    `json:"city"`
	Date        time.Time `json:"date"`
	TotalSeats  int       `json:"total_seats"`
	SeatsBooked int       `json:"seats_booked"`
	Price       float64   `json:"price"`
	IsFeatured  bool      `json:"is_featured"`
	OrganizerID string    `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SoldOut reports whether the event has no remaining capacity.
func (e *Event) SoldOut() bool {
	return e.SeatsBooked >= e.TotalSeats
}

// EventStats summarizes attendance for a single event.
// swagger:model EventStats
type EventStats struct {
	EventID            string `json:"event_id"`
	TotalAttendees     int    `json:"total_attendees"`
	TotalSeats         int    `json:"total_seats"`
	SeatsFilledPercent int    `json:"seats_filled_percent"`
}

// EventFilter narrows event listings. Zero values mean "no filter".
type EventFilter struct {
	Query    string
	Category string
	City     string
	Featured *bool
}

// EventUpdate carries optional organizer edits; nil fields are left unchanged.
type EventUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Venue       *string
	City        *string
	Date        *time.Time
	TotalSeats  *int
	Price       *float64
	IsFeatured  *bool
}

// EventRepository defines storage operations for events. TryReserveSeat and
// ReleaseSeat are the only seat-counter mutations outside organizer edits.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter EventFilter, p PaginationParams) ([]*Event, int, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*Event, error)
	Update(ctx context.Context, id string, upd EventUpdate) (*Event, error)
	Delete(ctx context.Context, id string) error

	// TryReserveSeat increments seats_booked by one only while capacity
	// remains, as a single conditional update against the store. It
	// returns true iff the increment was applied. A read-then-write pair
	// would race under concurrent registrations and oversell the event.
	TryReserveSeat(ctx context.Context, id string) (bool, error)

	// ReleaseSeat decrements seats_booked by one, never below zero. It
	// returns an error when the decrement did not apply so the caller can
	// escalate: after a confirmed reservation there is always a seat to
	// release.
	ReleaseSeat(ctx context.Context, id string) error
}

// EventService defines organizer and browse operations for events.
type EventService interface {
	CreateEvent(ctx context.Context, organizerID string, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, filter EventFilter, p PaginationParams) ([]*Event, int, error)
	ListMyEvents(ctx context.Context, organizerID string) ([]*Event, error)
	UpdateEvent(ctx context.Context, id, organizerID string, upd EventUpdate) (*Event, error)
	DeleteEvent(ctx context.Context, id, organizerID string) error

	// GetEventStats returns attendance figures for one of the organizer's
	// events. Only the owning organizer may read them.
	GetEventStats(ctx context.Context, id, organizerID string) (*EventStats, error)
}
