// Package service implements the booking orchestrator: seat reservation
// with compensation, status transitions, waitlist promotion and the read
// side used by the HTTP layer.
//
// The seat ledger and the booking ledger are reached through the
// interfaces below and never share a transaction.  Consistency between
// them is kept by compensating actions.
package service

import (
	"context"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// SeatLedger is the event component as seen by the orchestrator.  It is
// implemented locally by SeatService and remotely by client.EventClient.
type SeatLedger interface {
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	// AdjustSeats reserves (seatsToBook > 0) or releases (< 0) seats and
	// returns the new available count.
	AdjustSeats(ctx context.Context, eventID string, seatsToBook int) (int, error)
}

// EventStore persists seat records.  Implemented by repository.EventRepo.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (model.Event, error)
	AdjustSeats(ctx context.Context, id string, seatsToBook int) (int, error)
}

// BookingStore persists bookings.  Implemented by repository.BookingRepo.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)
	FindActiveForUserEvent(ctx context.Context, userID, eventID string) (model.Booking, error)
	ListWaitlisted(ctx context.Context, eventID string) ([]model.Booking, error)
	ListActiveByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
	EventsWithWaitlist(ctx context.Context) ([]string, error)
	Transition(ctx context.Context, t model.Transition) (model.Booking, error)
}

// Notifier is told about committed booking outcomes.  Errors are logged
// by the caller and never undo the booking.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}
