package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/iliyamo/event-seat-booking/internal/clock"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// memEvents is an in-memory EventStore and SeatLedger with the same
// semantics as the MySQL ledger.
type memEvents struct {
	mu     sync.Mutex
	events map[string]*model.Event
	calls  []adjustCall

	// adjustErr, when set, is consulted before every adjustment.
	adjustErr func(eventID string, seatsToBook int) error
}

type adjustCall struct {
	EventID     string
	SeatsToBook int
}

func newMemEvents(events ...model.Event) *memEvents {
	m := &memEvents{events: map[string]*model.Event{}}
	for _, e := range events {
		e := e
		if e.AvailableSeats == 0 {
			e.AvailableSeats = e.Capacity
		}
		m.events[e.ID] = &e
	}
	return m
}

func (m *memEvents) Create(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return model.ErrConflict
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memEvents) GetByID(ctx context.Context, id string) (model.Event, error) {
	return m.GetEvent(ctx, id)
}

func (m *memEvents) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	return *e, nil
}

func (m *memEvents) AdjustSeats(_ context.Context, id string, seatsToBook int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, adjustCall{id, seatsToBook})
	if m.adjustErr != nil {
		if err := m.adjustErr(id, seatsToBook); err != nil {
			return 0, err
		}
	}
	e, ok := m.events[id]
	if !ok {
		return 0, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	if seatsToBook > e.AvailableSeats {
		return e.AvailableSeats, model.ErrInsufficientCapacity
	}
	e.AvailableSeats = model.ClampSeats(e.AvailableSeats, e.Capacity, seatsToBook)
	return e.AvailableSeats, nil
}

func (m *memEvents) available(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id].AvailableSeats
}

func (m *memEvents) setAvailable(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id].AvailableSeats = n
}

func (m *memEvents) adjustments() []adjustCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adjustCall(nil), m.calls...)
}

// memBookings is an in-memory BookingStore with compare-and-set transitions.
type memBookings struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	seq      map[string]int
	next     int

	createErr     func(b *model.Booking) error
	transitionErr func(t model.Transition) error
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: map[string]model.Booking{}, seq: map[string]int{}}
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		if err := m.createErr(b); err != nil {
			return err
		}
	}
	for _, existing := range m.bookings {
		if existing.Reference == b.Reference {
			return model.ErrDuplicateReference
		}
	}
	m.next++
	m.seq[b.ID] = m.next
	m.bookings[b.ID] = *b
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	b.ComputeTotal()
	return b, nil
}

func (m *memBookings) filter(keep func(model.Booking) bool, newestFirst bool) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if keep(b) {
			b.ComputeTotal()
			out = append(out, b)
		}
	}
	before := func(a, b model.Booking) bool {
		return a.CreatedAt.Before(b.CreatedAt) ||
			(a.CreatedAt.Equal(b.CreatedAt) && m.seq[a.ID] < m.seq[b.ID])
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return before(out[j], out[i])
		}
		return before(out[i], out[j])
	})
	return out
}

func (m *memBookings) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool { return b.UserID == userID }, true), nil
}

func (m *memBookings) ListAll(context.Context) ([]model.Booking, error) {
	return m.filter(func(model.Booking) bool { return true }, true), nil
}

func (m *memBookings) FindActiveForUserEvent(_ context.Context, userID, eventID string) (model.Booking, error) {
	list := m.filter(func(b model.Booking) bool {
		return b.UserID == userID && b.EventID == eventID && b.BookingStatus != model.BookingCancelled
	}, true)
	if len(list) == 0 {
		return model.Booking{}, model.ErrNotFound
	}
	return list[0], nil
}

func (m *memBookings) ListWaitlisted(_ context.Context, eventID string) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool {
		return b.EventID == eventID && b.BookingStatus == model.BookingWaitlisted
	}, false), nil
}

func (m *memBookings) ListActiveByEvent(_ context.Context, eventID string) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool {
		return b.EventID == eventID && b.BookingStatus != model.BookingCancelled
	}, false), nil
}

func (m *memBookings) EventsWithWaitlist(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, b := range m.filter(func(b model.Booking) bool { return b.BookingStatus == model.BookingWaitlisted }, false) {
		if !seen[b.EventID] {
			seen[b.EventID] = true
			ids = append(ids, b.EventID)
		}
	}
	return ids, nil
}

func (m *memBookings) Transition(_ context.Context, t model.Transition) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		if err := m.transitionErr(t); err != nil {
			return model.Booking{}, err
		}
	}
	if !t.Revert && !model.CanTransition(t.From, t.To) {
		return model.Booking{}, model.ErrConflict
	}
	b, ok := m.bookings[t.BookingID]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	if b.BookingStatus != t.From {
		return b, model.ErrConflict
	}
	b.BookingStatus = t.To
	if t.PaymentStatus != "" {
		b.PaymentStatus = t.PaymentStatus
	}
	if t.TransactionID != nil {
		b.TransactionID = t.TransactionID
	}
	b.UpdatedAt = t.At
	m.bookings[b.ID] = b
	b.ComputeTotal()
	return b, nil
}

// put stores a booking directly, bypassing the orchestrator.
func (m *memBookings) put(b model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.seq[b.ID] = m.next
	m.bookings[b.ID] = b
}

func (m *memBookings) status(id string) model.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].BookingStatus
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	got  []model.Notification
	fail error
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func (r *recordingNotifier) kinds() []model.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(id string, capacity int) model.Event {
	return model.Event{
		ID:       id,
		Title:    "Concert " + id,
		Venue:    "Main Hall",
		Date:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Time:     "20:00",
		Price:    15,
		Capacity: capacity,
		Status:   model.EventStatusUpcoming,
	}
}

type fixture struct {
	events   *memEvents
	bookings *memBookings
	notifier *recordingNotifier
	svc      *BookingService
}

func newFixture(events ...model.Event) *fixture {
	f := &fixture{
		events:   newMemEvents(events...),
		bookings: newMemBookings(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewBookingService(f.events, f.bookings, f.notifier,
		WithClock(clock.NewManual(testStart, time.Millisecond)),
		WithReleaseRetries(3),
		WithReleaseBackoff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
	)
	return f
}

func (f *fixture) drain() {
	_ = f.svc.Drain(context.Background())
}

var (
	alice = model.Identity{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Role: "user"}
	bob   = model.Identity{ID: "u-bob", Name: "Bob", Email: "bob@example.com", Role: "user"}
	admin = model.Identity{ID: "u-admin", Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin}
)

func waitlisted(id, eventID string, tickets int, at time.Time) model.Booking {
	return model.Booking{
		ID:              id,
		Reference:       "BKG-" + id,
		UserID:          "u-" + id,
		EventID:         eventID,
		NumberOfTickets: tickets,
		PricePerTicket:  15,
		PaymentMethod:   model.PaymentCreditCard,
		PaymentStatus:   model.PaymentPending,
		BookingStatus:   model.BookingWaitlisted,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}
