package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"eventpass/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeEventRepo implements domain.EventRepository in memory. TryReserveSeat
// and ReleaseSeat keep the conditional-update semantics of the real store:
// guard and mutation happen under one lock acquisition.
type fakeEventRepo struct {
	mu         sync.Mutex
	events     map[string]*domain.Event
	reserveErr error
	releaseErr error
	releases   int
}

func newFakeEventRepo(events ...*domain.Event) *fakeEventRepo {
	m := make(map[string]*domain.Event, len(events))
	for _, e := range events {
		m[e.ID] = e
	}
	return &fakeEventRepo{events: m}
}

func (f *fakeEventRepo) Create(ctx context.Context, event *domain.Event) error { return nil }

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter domain.EventFilter, p domain.PaginationParams) ([]*domain.Event, int, error) {
	return nil, 0, nil
}

func (f *fakeEventRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeEventRepo) TryReserveSeat(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	e, ok := f.events[id]
	if !ok || e.SeatsBooked >= e.TotalSeats {
		return false, nil
	}
	e.SeatsBooked++
	return true, nil
}

func (f *fakeEventRepo) ReleaseSeat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	e, ok := f.events[id]
	if !ok || e.SeatsBooked == 0 {
		return fmt.Errorf("release seat: nothing to release for event %s", id)
	}
	e.SeatsBooked--
	f.releases++
	return nil
}

func (f *fakeEventRepo) seatsBooked(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id].SeatsBooked
}

// fakeTicketRepo enforces the same uniqueness constraints as the real store.
type fakeTicketRepo struct {
	mu        sync.Mutex
	byPair    map[string]*domain.Ticket
	byToken   map[string]*domain.Ticket
	createErr error
	listItems []*domain.TicketWithEvent
	listErr   error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		byPair:  make(map[string]*domain.Ticket),
		byToken: make(map[string]*domain.Ticket),
	}
}

func pairKey(eventID, attendeeID string) string { return eventID + ":" + attendeeID }

func (f *fakeTicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	key := pairKey(t.EventID, t.AttendeeID)
	if _, ok := f.byPair[key]; ok {
		return domain.ErrConflict
	}
	if _, ok := f.byToken[t.TicketID]; ok {
		return domain.ErrConflict
	}
	copied := *t
	copied.ID = fmt.Sprintf("row-%d", len(f.byPair)+1)
	f.byPair[key] = &copied
	f.byToken[t.TicketID] = &copied
	t.ID = copied.ID
	return nil
}

func (f *fakeTicketRepo) GetByEventAndAttendee(ctx context.Context, eventID, attendeeID string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byPair[pairKey(eventID, attendeeID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTicketRepo) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.TicketWithEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listItems, nil
}

func (f *fakeTicketRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byPair)
}

type fakeQREncoder struct {
	err error
}

func (f *fakeQREncoder) Encode(payload string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64," + payload, nil
}

type fakeNotifier struct {
	notices chan domain.RegistrationNotice
	err     error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: make(chan domain.RegistrationNotice, 64)}
}

func (f *fakeNotifier) NotifyRegistration(ctx context.Context, notice domain.RegistrationNotice) error {
	select {
	case f.notices <- notice:
	default:
	}
	return f.err
}

func (f *fakeNotifier) Close() error { return nil }

func testEvent(totalSeats int) *domain.Event {
	return &domain.Event{
		ID:          "ev-1",
		Title:       "Go Conf",
		Category:    "conference",
		TotalSeats:  totalSeats,
		OrganizerID: "org-1",
		Date:        time.Now().Add(24 * time.Hour),
	}
}

func newTestService(events *fakeEventRepo, tickets *fakeTicketRepo, encoder domain.QREncoder, notifier domain.Notifier) domain.RegistrationService {
	return NewRegistrationService(events, tickets, encoder, notifier, testLogger, time.Second)
}

func TestRegisterForEvent_NeverOversells(t *testing.T) {
	const totalSeats = 5
	const callers = 12

	events := newFakeEventRepo(testEvent(totalSeats))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.RegisterForEvent(context.Background(), "ev-1", fmt.Sprintf("attendee-%d", n))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var committed, soldOut int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domain.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, totalSeats, committed)
	require.Equal(t, callers-totalSeats, soldOut)
	require.Equal(t, totalSeats, events.seatsBooked("ev-1"))
	require.Equal(t, totalSeats, tickets.count())
}

func TestRegisterForEvent_TwoCallersOneSeat(t *testing.T) {
	events := newFakeEventRepo(testEvent(1))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, attendee := range []string{"attendee-a", "attendee-b"} {
		wg.Add(1)
		go func(a string) {
			defer wg.Done()
			_, err := svc.RegisterForEvent(context.Background(), "ev-1", a)
			results <- err
		}(attendee)
	}
	wg.Wait()
	close(results)

	var committed, soldOut int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domain.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, committed)
	require.Equal(t, 1, soldOut)
	require.Equal(t, 1, events.seatsBooked("ev-1"))
}

func TestRegisterForEvent_ConcurrentSameAttendee(t *testing.T) {
	const callers = 8

	events := newFakeEventRepo(testEvent(100))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var committed, duplicate int
	for err := range results {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domain.ErrDuplicateRegistration):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, committed)
	require.Equal(t, callers-1, duplicate)
	// Losing racers must hand their reserved seat back.
	require.Equal(t, 1, events.seatsBooked("ev-1"))
	require.Equal(t, 1, tickets.count())
}

func TestRegisterForEvent_DuplicateSecondCall(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	first, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.NoError(t, err)
	require.NotEmpty(t, first.Ticket.TicketID)

	_, err = svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	require.Equal(t, 1, events.seatsBooked("ev-1"))
	require.Equal(t, 1, tickets.count())
}

func TestRegisterForEvent_SoldOutZeroCapacity(t *testing.T) {
	events := newFakeEventRepo(testEvent(0))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	_, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.ErrorIs(t, err, domain.ErrSoldOut)
	require.Equal(t, 0, events.seatsBooked("ev-1"))
	require.Equal(t, 0, tickets.count())
}

func TestRegisterForEvent_CompensatesOnTicketFailure(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	tickets.createErr = errors.New("storage down")
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	_, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.ErrorIs(t, err, domain.ErrTicketIssuance)

	// Net-zero effect: the seat came back and no ticket exists.
	require.Equal(t, 0, events.seatsBooked("ev-1"))
	require.Equal(t, 0, tickets.count())
	require.Equal(t, 1, events.releases)
}

func TestRegisterForEvent_CompensatesOnQRFailure(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{err: errors.New("encoder broken")}, newFakeNotifier())

	_, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.ErrorIs(t, err, domain.ErrTicketIssuance)
	require.Equal(t, 0, events.seatsBooked("ev-1"))
	require.Equal(t, 0, tickets.count())
}

func TestRegisterForEvent_EscalatesFailedRelease(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	events := newFakeEventRepo(testEvent(10))
	events.releaseErr = errors.New("store unreachable")
	tickets := newFakeTicketRepo()
	tickets.createErr = errors.New("storage down")
	svc := NewRegistrationService(events, tickets, &fakeQREncoder{}, newFakeNotifier(), logger, time.Second)

	_, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.ErrorIs(t, err, domain.ErrTicketIssuance)
	assert.Contains(t, buf.String(), "seat counter is inconsistent")
}

func TestRegisterForEvent_InputValidation(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	for _, tt := range []struct {
		name       string
		eventID    string
		attendeeID string
	}{
		{"missing event id", "", "attendee-a"},
		{"missing attendee id", "ev-1", ""},
		{"blank attendee id", "ev-1", "   "},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterForEvent(context.Background(), tt.eventID, tt.attendeeID)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRegisterForEvent_EventNotFound(t *testing.T) {
	events := newFakeEventRepo()
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	_, err := svc.RegisterForEvent(context.Background(), "ev-missing", "attendee-a")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterForEvent_SurvivesCallerCancellation(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	// A context cancelled before the call stands in for a caller that
	// disconnected mid-flight; the attempt still runs to completion.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.RegisterForEvent(ctx, "ev-1", "attendee-a")
	require.NoError(t, err)
	require.NotNil(t, got.Ticket)
	require.Equal(t, 1, events.seatsBooked("ev-1"))
}

func TestRegisterForEvent_NotifiesOrganizer(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	notifier := newFakeNotifier()
	svc := newTestService(events, tickets, &fakeQREncoder{}, notifier)

	got, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.NoError(t, err)

	select {
	case notice := <-notifier.notices:
		assert.Equal(t, "ev-1", notice.EventID)
		assert.Equal(t, "org-1", notice.OrganizerID)
		assert.Equal(t, got.Ticket.TicketID, notice.TicketID)
	case <-time.After(2 * time.Second):
		t.Fatal("no registration notice delivered")
	}
}

func TestRegisterForEvent_NotifierFailureDoesNotFailRegistration(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	notifier := newFakeNotifier()
	notifier.err = errors.New("bus down")
	svc := newTestService(events, tickets, &fakeQREncoder{}, notifier)

	got, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.NoError(t, err)
	require.Equal(t, 1, events.seatsBooked("ev-1"))
	require.NotEmpty(t, got.Ticket.QRData)
}

func TestRegisterForEvent_TicketShape(t *testing.T) {
	events := newFakeEventRepo(testEvent(10))
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	got, err := svc.RegisterForEvent(context.Background(), "ev-1", "attendee-a")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", got.Ticket.EventID)
	assert.Equal(t, "attendee-a", got.Ticket.AttendeeID)
	assert.True(t, strings.HasSuffix(got.Ticket.QRData, "ticket:"+got.Ticket.TicketID),
		"qr payload should be derived from the ticket identifier")
	require.NotNil(t, got.Event)
	assert.Equal(t, 1, got.Event.SeatsBooked)
}

func TestListAttendeeTickets(t *testing.T) {
	events := newFakeEventRepo()
	tickets := newFakeTicketRepo()
	tickets.listItems = []*domain.TicketWithEvent{
		{Ticket: &domain.Ticket{TicketID: "tok-1", AttendeeID: "attendee-a"}, Event: testEvent(10)},
	}
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	items, err := svc.ListAttendeeTickets(context.Background(), "attendee-a")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tok-1", items[0].Ticket.TicketID)

	_, err = svc.ListAttendeeTickets(context.Background(), " ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListAttendeeTickets_EmptyIsNotNil(t *testing.T) {
	events := newFakeEventRepo()
	tickets := newFakeTicketRepo()
	svc := newTestService(events, tickets, &fakeQREncoder{}, newFakeNotifier())

	items, err := svc.ListAttendeeTickets(context.Background(), "attendee-a")
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}
