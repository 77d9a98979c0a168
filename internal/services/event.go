package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"eventpass/internal/domain"
)

const maxTotalSeats = 100_000

type eventService struct {
	eventRepo      domain.EventRepository
	contextTimeout time.Duration
}

func NewEventService(eventRepo domain.EventRepository, timeout time.Duration) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		contextTimeout: timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, organizerID string, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if organizerID == "" {
		return fmt.Errorf("%w: organizer is required", domain.ErrInvalidInput)
	}
	event.Title = strings.TrimSpace(event.Title)
	event.Category = strings.TrimSpace(event.Category)
	if event.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if event.Category == "" {
		return fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	}
	if event.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}
	if event.TotalSeats < 0 || event.TotalSeats > maxTotalSeats {
		return fmt.Errorf("%w: total_seats must be between 0 and %d", domain.ErrInvalidInput, maxTotalSeats)
	}
	if event.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}

	event.OrganizerID = organizerID
	event.SeatsBooked = 0
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	return s.eventRepo.Create(ctx, event)
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, filter domain.EventFilter, p domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, total, err := s.eventRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

func (s *eventService) ListMyEvents(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if organizerID == "" {
		return nil, fmt.Errorf("%w: organizer is required", domain.ErrInvalidInput)
	}
	events, err := s.eventRepo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, id, organizerID string, upd domain.EventUpdate) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	current, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if current.OrganizerID != organizerID {
		return nil, domain.ErrForbidden
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}
	if upd.Price != nil && *upd.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if upd.TotalSeats != nil {
		// Capacity may not drop below seats already booked; the database
		// CHECK constraint backstops the race against live registrations.
		if *upd.TotalSeats < current.SeatsBooked || *upd.TotalSeats > maxTotalSeats {
			return nil, fmt.Errorf("%w: total_seats must be between %d and %d",
				domain.ErrInvalidInput, current.SeatsBooked, maxTotalSeats)
		}
	}

	event, err := s.eventRepo.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEventStats(ctx context.Context, id, organizerID string) (*domain.EventStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, domain.ErrForbidden
	}

	filled := 0
	if event.TotalSeats > 0 {
		filled = int(math.Round(float64(event.SeatsBooked) / float64(event.TotalSeats) * 100))
	}
	return &domain.EventStats{
		EventID:            event.ID,
		TotalAttendees:     event.SeatsBooked,
		TotalSeats:         event.TotalSeats,
		SeatsFilledPercent: filled,
	}, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, id, organizerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	current, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if current.OrganizerID != organizerID {
		return domain.ErrForbidden
	}
	return s.eventRepo.Delete(ctx, id)
}
