package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-booking/internal/database"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

var (
	testDB     *sqlx.DB
	testDBOnce sync.Once
	testDBErr  error
)

// getDB connects to MYSQL_TEST_DSN and migrates the schema once.  Tests
// are skipped when the variable is unset.
func getDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	testDBOnce.Do(func() {
		testDB, testDBErr = database.Open(dsn)
		if testDBErr == nil {
			testDBErr = database.Migrate(context.Background(), testDB)
		}
	})
	require.NoError(t, testDBErr)
	return testDB
}

func newEvent(t *testing.T, repo *EventRepo, capacity int) model.Event {
	t.Helper()
	e := model.Event{
		ID:       "evt-" + shortuuid.New(),
		Title:    "Integration gig",
		Venue:    "Hall A",
		Date:     time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Time:     "19:30",
		Price:    25,
		Capacity: capacity,
	}
	require.NoError(t, repo.Create(context.Background(), &e))
	return e
}

func newBooking(eventID, userID string, status model.BookingStatus, at time.Time) *model.Booking {
	return &model.Booking{
		ID:              uuid.NewString(),
		Reference:       "BKG-" + shortuuid.New(),
		UserID:          userID,
		UserName:        "Test User",
		UserEmail:       "user@example.com",
		EventID:         eventID,
		EventTitle:      "Integration gig",
		EventDate:       time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		NumberOfTickets: 2,
		PricePerTicket:  25,
		PaymentMethod:   model.PaymentCreditCard,
		PaymentStatus:   model.PaymentPending,
		BookingStatus:   status,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func TestEventRepoAdjustSeats(t *testing.T) {
	db := getDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()
	e := newEvent(t, repo, 5)

	left, err := repo.AdjustSeats(ctx, e.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = repo.AdjustSeats(ctx, e.ID, 3)
	assert.ErrorIs(t, err, model.ErrInsufficientCapacity)

	left, err = repo.AdjustSeats(ctx, e.ID, -10)
	require.NoError(t, err)
	assert.Equal(t, 5, left, "release is clamped to capacity")

	_, err = repo.AdjustSeats(ctx, "missing-"+shortuuid.New(), 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEventRepoConcurrentReservations(t *testing.T) {
	db := getDB(t)
	repo := NewEventRepo(db)
	e := newEvent(t, repo, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustSeats(context.Background(), e.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, model.ErrInsufficientCapacity), "unexpected error %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	got, err := repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableSeats)
}

func TestBookingRepoTransitionIsCompareAndSet(t *testing.T) {
	db := getDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	b := newBooking("evt-"+shortuuid.New(), "u-1", model.BookingConfirmed, now)
	require.NoError(t, repo.Create(ctx, b))

	tr := model.Transition{
		BookingID:     b.ID,
		From:          model.BookingConfirmed,
		To:            model.BookingCancelled,
		PaymentStatus: model.PaymentRefunded,
		At:            now.Add(time.Second),
	}
	got, err := repo.Transition(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, 50.0, got.TotalAmount)

	_, err = repo.Transition(ctx, tr)
	assert.ErrorIs(t, err, model.ErrConflict)

	tr.BookingID = uuid.NewString()
	_, err = repo.Transition(ctx, tr)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBookingRepoDuplicateReference(t *testing.T) {
	db := getDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	b := newBooking("evt-"+shortuuid.New(), "u-1", model.BookingWaitlisted, now)
	require.NoError(t, repo.Create(ctx, b))

	dup := newBooking(b.EventID, "u-2", model.BookingWaitlisted, now)
	dup.Reference = b.Reference
	assert.ErrorIs(t, repo.Create(ctx, dup), model.ErrDuplicateReference)
}

func TestBookingRepoWaitlistIsFIFO(t *testing.T) {
	db := getDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()
	eventID := "evt-" + shortuuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	second := newBooking(eventID, "u-2", model.BookingWaitlisted, base.Add(time.Second))
	first := newBooking(eventID, "u-1", model.BookingWaitlisted, base)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, newBooking(eventID, "u-3", model.BookingConfirmed, base)))

	list, err := repo.ListWaitlisted(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	ids, err := repo.EventsWithWaitlist(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, eventID)

	active, err := repo.FindActiveForUserEvent(ctx, "u-2", eventID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}
