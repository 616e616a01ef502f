package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-seat-booking/internal/database"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

const eventColumns = `id, title, venue, event_date, event_time, price, capacity,
	available_seats, status, created_at, updated_at`

// EventRepo is the seat ledger.  It owns the events table and is the only
// writer of available_seats.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new seat record.  AvailableSeats starts at Capacity
// regardless of the value passed in.  A duplicate id yields ErrConflict.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	e.AvailableSeats = e.Capacity
	if e.Status == "" {
		e.Status = model.EventStatusUpcoming
	}
	e.CreatedAt, e.UpdatedAt = now, now
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (:id, :title, :venue, :event_date, :event_time, :price, :capacity,
		        :available_seats, :status, :created_at, :updated_at)`, e)
	if database.IsDuplicateKey(err) {
		return fmt.Errorf("event %s already exists: %w", e.ID, model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns the current snapshot of an event.
func (r *EventRepo) GetByID(ctx context.Context, id string) (model.Event, error) {
	var e model.Event
	err := r.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return model.Event{}, notFound(err, "event", id)
	}
	return e, nil
}

// AdjustSeats applies seatsToBook to the event's available seats and
// returns the new count.  A positive value reserves, a negative one
// releases.  The row is locked with SELECT ... FOR UPDATE so concurrent
// adjustments of the same event are serialized while other events proceed
// independently.  A reservation larger than the available seats fails with
// ErrInsufficientCapacity and leaves the row untouched; a release that
// would overshoot capacity is clamped.
func (r *EventRepo) AdjustSeats(ctx context.Context, id string, seatsToBook int) (int, error) {
	if seatsToBook == 0 {
		return 0, fmt.Errorf("%w: seatsToBook must be non-zero", model.ErrValidation)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seat tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var row struct {
		Capacity  int `db:"capacity"`
		Available int `db:"available_seats"`
	}
	err = tx.GetContext(ctx, &row,
		`SELECT capacity, available_seats FROM events WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lock event %s: %w", id, err)
	}
	if seatsToBook > row.Available {
		return row.Available, fmt.Errorf("event %s has %d seats, %d requested: %w",
			id, row.Available, seatsToBook, model.ErrInsufficientCapacity)
	}

	next := model.ClampSeats(row.Available, row.Capacity, seatsToBook)
	if _, err = tx.ExecContext(ctx,
		`UPDATE events SET available_seats = ?, updated_at = ? WHERE id = ?`,
		next, time.Now().UTC(), id); err != nil {
		return 0, fmt.Errorf("update seats of %s: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seat tx: %w", err)
	}
	committed = true
	return next, nil
}
