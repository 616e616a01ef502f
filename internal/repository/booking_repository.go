package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-seat-booking/internal/database"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

const bookingColumns = `id, reference, user_id, user_name, user_email, event_id,
	event_title, event_date, event_venue, event_time, number_of_tickets,
	price_per_ticket, payment_method, transaction_id, payment_status,
	booking_status, created_at, updated_at`

// BookingRepo is the booking ledger.  Every write touches a single row;
// status changes are compare-and-set on booking_status so that a booking
// changes state at most once per expected transition.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create persists a new booking.  A clash on the unique reference index is
// reported as model.ErrDuplicateReference so the caller can regenerate it.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES (:id, :reference, :user_id, :user_name, :user_email, :event_id,
		        :event_title, :event_date, :event_venue, :event_time, :number_of_tickets,
		        :price_per_ticket, :payment_method, :transaction_id, :payment_status,
		        :booking_status, :created_at, :updated_at)`, b)
	if database.IsDuplicateKey(err) {
		return fmt.Errorf("booking %s: %w", b.Reference, model.ErrDuplicateReference)
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.ComputeTotal()
	return nil
}

// GetByID loads one booking.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	if err := r.db.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return model.Booking{}, notFound(err, "booking", id)
	}
	b.ComputeTotal()
	return b, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = ? ORDER BY created_at DESC, seq DESC`, userID)
}

// ListAll returns every booking, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		ORDER BY created_at DESC, seq DESC`)
}

// FindActiveForUserEvent returns the newest non-cancelled booking the user
// holds for the event, or ErrNotFound.
func (r *BookingRepo) FindActiveForUserEvent(ctx context.Context, userID, eventID string) (model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = ? AND event_id = ? AND booking_status <> ?
		ORDER BY created_at DESC, seq DESC LIMIT 1`,
		userID, eventID, model.BookingCancelled)
	if err != nil {
		return model.Booking{}, notFound(err, "active booking for event", eventID)
	}
	b.ComputeTotal()
	return b, nil
}

// ListWaitlisted returns the waitlisted bookings of an event in FIFO order.
// The insertion sequence breaks ties between equal timestamps.
func (r *BookingRepo) ListWaitlisted(ctx context.Context, eventID string) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE event_id = ? AND booking_status = ?
		ORDER BY created_at ASC, seq ASC`, eventID, model.BookingWaitlisted)
}

// ListActiveByEvent returns every non-cancelled booking of an event.
func (r *BookingRepo) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE event_id = ? AND booking_status <> ?
		ORDER BY created_at ASC, seq ASC`, eventID, model.BookingCancelled)
}

// EventsWithWaitlist lists the ids of events that have at least one
// waitlisted booking.
func (r *BookingRepo) EventsWithWaitlist(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT event_id FROM bookings WHERE booking_status = ?`,
		model.BookingWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted events: %w", err)
	}
	return ids, nil
}

// Transition moves a booking from t.From to t.To only if its stored status
// is still t.From.  It returns the updated booking.  When no row matched,
// the booking is reloaded to tell ErrNotFound from ErrConflict.
func (r *BookingRepo) Transition(ctx context.Context, t model.Transition) (model.Booking, error) {
	if !t.Revert && !model.CanTransition(t.From, t.To) {
		return model.Booking{}, fmt.Errorf("%w: %s -> %s is not allowed", model.ErrConflict, t.From, t.To)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE bookings
		SET booking_status = ?,
		    payment_status = COALESCE(NULLIF(?, ''), payment_status),
		    transaction_id = COALESCE(?, transaction_id),
		    updated_at = ?
		WHERE id = ? AND booking_status = ?`,
		t.To, t.PaymentStatus, t.TransactionID, t.At, t.BookingID, t.From)
	if err != nil {
		return model.Booking{}, fmt.Errorf("transition booking %s: %w", t.BookingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, fmt.Errorf("transition booking %s: %w", t.BookingID, err)
	}
	current, err := r.GetByID(ctx, t.BookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if n == 0 {
		return current, fmt.Errorf("booking %s is %s, expected %s: %w",
			t.BookingID, current.BookingStatus, t.From, model.ErrConflict)
	}
	return current, nil
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	var out []model.Booking
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	for i := range out {
		out[i].ComputeTotal()
	}
	return out, nil
}
