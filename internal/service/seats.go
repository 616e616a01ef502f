package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/metrics"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// SeatService is the local seat ledger backed by an EventStore.
type SeatService struct {
	store   EventStore
	metrics *metrics.Metrics
}

// NewSeatService wraps store.  m may be nil.
func NewSeatService(store EventStore, m *metrics.Metrics) *SeatService {
	return &SeatService{store: store, metrics: m}
}

// DefineEvent creates the seat record for an event owned by the event
// management collaborator.  Available seats start at capacity.
func (s *SeatService) DefineEvent(ctx context.Context, e model.Event) (model.Event, error) {
	e.ID = strings.TrimSpace(e.ID)
	e.AvailableSeats = e.Capacity
	e.Date = e.Date.UTC().Truncate(24 * time.Hour)
	if err := e.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.store.Create(ctx, &e); err != nil {
		return model.Event{}, err
	}
	logging.FromContext(ctx).WithField("event_id", e.ID).WithField("capacity", e.Capacity).Info("event defined")
	return e, nil
}

// GetEvent returns the current seat snapshot.
func (s *SeatService) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return model.Event{}, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	return s.store.GetByID(ctx, eventID)
}

// AdjustSeats applies a reservation or release atomically per event.
func (s *SeatService) AdjustSeats(ctx context.Context, eventID string, seatsToBook int) (int, error) {
	if seatsToBook == 0 {
		return 0, fmt.Errorf("%w: seatsToBook must be non-zero", model.ErrValidation)
	}
	if strings.TrimSpace(eventID) == "" {
		return 0, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	left, err := s.store.AdjustSeats(ctx, eventID, seatsToBook)
	s.metrics.SeatsAdjusted(seatsToBook, err)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).WithField("event_id", eventID).
		WithField("seats_to_book", seatsToBook).
		WithField("available_seats", left).
		Debug("seats adjusted")
	return left, nil
}
