package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventpass/internal/domain"
)

const eventColumns = `id, title, description, category, venue, city, date, total_seats, seats_booked, price, is_featured, organizer_id, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Venue, &e.City,
		&e.Date, &e.TotalSeats, &e.SeatsBooked, &e.Price, &e.IsFeatured,
		&e.OrganizerID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (title, description, category, venue, city, date, total_seats, seats_booked, price, is_featured, organizer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Category, e.Venue, e.City, e.Date,
		e.TotalSeats, e.SeatsBooked, e.Price, e.IsFeatured, e.OrganizerID,
		e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	return scanEvent(r.DB.QueryRowContext(ctx, query, id))
}

func (r *eventRepository) List(ctx context.Context, f domain.EventFilter, p domain.PaginationParams) ([]*domain.Event, int, error) {
	var where []string
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.City != "" {
		args = append(args, f.City)
		where = append(where, fmt.Sprintf("city = $%d", len(args)))
	}
	if f.Featured != nil {
		args = append(args, *f.Featured)
		where = append(where, fmt.Sprintf("is_featured = $%d", len(args)))
	}
	if f.Query != "" {
		// Full-text matching is delegated to the GIN index on this
		// expression; ranking is whatever the storage engine gives us.
		args = append(args, f.Query)
		where = append(where, fmt.Sprintf("to_tsvector('english', title || ' ' || description || ' ' || category) @@ plainto_tsquery('english', $%d)", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.PageSize, p.Offset())
	query := "SELECT " + eventColumns + " FROM events" + cond +
		fmt.Sprintf(" ORDER BY date ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE organizer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Venue != nil {
		add("venue", *upd.Venue)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.Date != nil {
		add("date", *upd.Date)
	}
	if upd.TotalSeats != nil {
		add("total_seats", *upd.TotalSeats)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.IsFeatured != nil {
		add("is_featured", *upd.IsFeatured)
	}
	add("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE events SET %s WHERE id = $%d RETURNING "+eventColumns,
		strings.Join(set, ", "), len(args),
	)
	return scanEvent(r.DB.QueryRowContext(ctx, query, args...))
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TryReserveSeat performs the guard and the increment in one statement so
// there is no read-then-write window for concurrent registrations to race
// through. The events_capacity_check constraint backstops it.
func (r *eventRepository) TryReserveSeat(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE events
		SET seats_booked = seats_booked + 1
		WHERE id = $1 AND seats_booked < total_seats
	`, id)
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	return n == 1, nil
}

func (r *eventRepository) ReleaseSeat(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE events
		SET seats_booked = seats_booked - 1
		WHERE id = $1 AND seats_booked > 0
	`, id)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("release seat: nothing to release for event %s", id)
	}
	return nil
}
