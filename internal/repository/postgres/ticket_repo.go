package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"eventpass/internal/domain"
)

// uniqueViolation is the postgres error code for a unique-constraint breach.
const uniqueViolation = "23505"

type ticketRepository struct {
	DB *sql.DB
}

func NewTicketRepository(db *sql.DB) domain.TicketRepository {
	return &ticketRepository{
		DB: db,
	}
}

func (r *ticketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (ticket_id, event_id, attendee_id, qr_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		t.TicketID, t.EventID, t.AttendeeID, t.QRData, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ticketRepository) GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*domain.Ticket, error) {
	query := `
		SELECT id, ticket_id, event_id, attendee_id, qr_data, created_at
		FROM tickets
		WHERE event_id = $1 AND attendee_id = $2
	`
	t := &domain.Ticket{}
	err := r.DB.QueryRowContext(ctx, query, eventID, attendeeID).
		Scan(&t.ID, &t.TicketID, &t.EventID, &t.AttendeeID, &t.QRData, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *ticketRepository) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.TicketWithEvent, error) {
	query := `
		SELECT t.id, t.ticket_id, t.event_id, t.attendee_id, t.qr_data, t.created_at,
		       e.id, e.title, e.description, e.category, e.venue, e.city, e.date,
		       e.total_seats, e.seats_booked, e.price, e.is_featured, e.organizer_id,
		       e.created_at, e.updated_at
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE t.attendee_id = $1
		ORDER BY t.created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, attendeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.TicketWithEvent, 0)
	for rows.Next() {
		t := &domain.Ticket{}
		e := &domain.Event{}
		err := rows.Scan(
			&t.ID, &t.TicketID, &t.EventID, &t.AttendeeID, &t.QRData, &t.CreatedAt,
			&e.ID, &e.Title, &e.Description, &e.Category, &e.Venue, &e.City, &e.Date,
			&e.TotalSeats, &e.SeatsBooked, &e.Price, &e.IsFeatured, &e.OrganizerID,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, &domain.TicketWithEvent{Ticket: t, Event: e})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
