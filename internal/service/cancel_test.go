package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-booking/internal/clock"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

func TestCancelConfirmedReleasesSeatsOnce(t *testing.T) {
	f := newFixture(testEvent("e1", 10))
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 4})
	require.NoError(t, err)
	require.Equal(t, 6, f.events.available("e1"))

	cancelled, err := f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 10, f.events.available("e1"))

	_, err = f.svc.CancelBooking(ctx, alice, b.ID)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 10, f.events.available("e1"))

	f.drain()
	assert.Equal(t, []model.NotificationKind{model.NotifyConfirmed, model.NotifyCancelled}, f.notifier.kinds())
}

func TestConcurrentCancelsReleaseExactlyOnce(t *testing.T) {
	f := newFixture(testEvent("e1", 10))
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 3})
	require.NoError(t, err)

	var ok, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelBooking(ctx, alice, b.ID)
			if err == nil {
				atomic.AddInt32(&ok, 1)
				return
			}
			assert.ErrorIs(t, err, model.ErrConflict)
			atomic.AddInt32(&conflicts, 1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 7, conflicts)
	assert.Equal(t, 10, f.events.available("e1"))
}

func TestCancelWaitlistedReleasesNothing(t *testing.T) {
	f := newFixture(testEvent("e1", 2))
	f.events.setAvailable("e1", 0)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 2})
	require.NoError(t, err)
	require.Equal(t, model.BookingWaitlisted, b.BookingStatus)

	cancelled, err := f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.BookingStatus)
	assert.Equal(t, model.PaymentPending, cancelled.PaymentStatus)
	assert.Empty(t, f.events.adjustments())
}

func TestCancelRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(testEvent("e1", 10))
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 1})
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, bob, b.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.Equal(t, model.BookingConfirmed, f.bookings.status(b.ID))

	_, err = f.svc.CancelBooking(ctx, model.Identity{}, b.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.svc.CancelBooking(ctx, admin, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.CancelBooking(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.events.available("e1"))
}

func TestCancelIsRevertedWhenSeatReleaseFails(t *testing.T) {
	f := newFixture(testEvent("e1", 10))
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 2})
	require.NoError(t, err)

	f.events.adjustErr = func(_ string, n int) error {
		if n < 0 {
			return model.ErrDownstreamUnavailable
		}
		return nil
	}
	_, err = f.svc.CancelBooking(ctx, alice, b.ID)
	assert.ErrorIs(t, err, model.ErrDownstreamUnavailable)

	got, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.BookingStatus)
	assert.Equal(t, model.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, 8, f.events.available("e1"))

	f.events.adjustErr = nil
	_, err = f.svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.events.available("e1"))
}

func TestCancelAllForEventReleasesNoSeats(t *testing.T) {
	f := newFixture(testEvent("e1", 3), testEvent("e2", 3))
	ctx := context.Background()
	confirmed, err := f.svc.CreateBooking(ctx, alice, CreateBookingInput{EventID: "e1", NumberOfTickets: 3})
	require.NoError(t, err)
	waiting, err := f.svc.CreateBooking(ctx, bob, CreateBookingInput{EventID: "e1", NumberOfTickets: 1})
	require.NoError(t, err)
	require.Equal(t, model.BookingWaitlisted, waiting.BookingStatus)
	other, err := f.svc.CreateBooking(ctx, bob, CreateBookingInput{EventID: "e2", NumberOfTickets: 1})
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, bob, waiting.ID)
	require.NoError(t, err)
	callsBefore := len(f.events.adjustments())

	n, err := f.svc.CancelAllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.bookings.GetByID(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, model.BookingConfirmed, f.bookings.status(other.ID))
	assert.Len(t, f.events.adjustments(), callsBefore)

	_, err = f.svc.CancelAllForEvent(ctx, " ")
	assert.ErrorIs(t, err, model.ErrValidation)
}

// promotingStore runs a promotion right after the booking ledger has been
// read, so the caller acts on a status that is already stale.
type promotingStore struct {
	*memBookings
	once    sync.Once
	promote func()
}

func (p *promotingStore) fire() { p.once.Do(p.promote) }

func (p *promotingStore) GetByID(ctx context.Context, id string) (model.Booking, error) {
	b, err := p.memBookings.GetByID(ctx, id)
	p.fire()
	return b, err
}

func (p *promotingStore) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	list, err := p.memBookings.ListActiveByEvent(ctx, eventID)
	p.fire()
	return list, err
}

func newPromotingFixture(t *testing.T) (*fixture, *promotingStore) {
	t.Helper()
	f := newFixture(testEvent("e1", 2))
	f.bookings.put(waitlisted("w1", "e1", 2, testStart))
	store := &promotingStore{memBookings: f.bookings}
	f.svc = NewBookingService(f.events, store, f.notifier,
		WithClock(clock.NewManual(testStart, time.Millisecond)),
		WithReleaseRetries(3),
		WithReleaseBackoff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
	)
	store.promote = func() {
		n, err := f.svc.PromoteWaitlist(context.Background(), "e1")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	return f, store
}

func TestCancelOfBookingPromotedMeanwhileReleasesItsSeats(t *testing.T) {
	f, _ := newPromotingFixture(t)
	ctx := context.Background()

	cancelled, err := f.svc.CancelBooking(ctx, model.Identity{ID: "u-w1", Role: "user"}, "w1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, model.BookingCancelled, f.bookings.status("w1"))
	assert.Equal(t, 2, f.events.available("e1"))
	assert.Equal(t, []adjustCall{{"e1", 2}, {"e1", -2}}, f.events.adjustments())
}

func TestCancelAllForEventCatchesBookingPromotedMeanwhile(t *testing.T) {
	f, _ := newPromotingFixture(t)

	n, err := f.svc.CancelAllForEvent(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.BookingCancelled, f.bookings.status("w1"))
}
