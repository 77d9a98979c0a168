package domain

import (
	"context"
	"time"
)

// RegistrationNotice is published to the organizer's channel after a
// successful registration. It carries enough for downstream consumers to
// update dashboards without querying the primary database.
type RegistrationNotice struct {
	EventID     string    `json:"event_id"`
	EventTitle  string    `json:"event_title"`
	TicketID    string    `json:"ticket_id"`
	OrganizerID string    `json:"organizer_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Notifier delivers registration notices to the real-time event bus.
// Delivery is best effort: callers fire and forget, and a failed notice must
// never fail or delay the registration it belongs to.
type Notifier interface {
	NotifyRegistration(ctx context.Context, notice RegistrationNotice) error
	Close() error
}
