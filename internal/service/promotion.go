package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// PromoteWaitlist confirms waitlisted bookings of an event while seats
// are free.  Bookings are tried oldest first; one that no longer fits is
// skipped so smaller parties behind it can still be served.  Only
// waitlisted bookings are scanned, which makes repeated runs harmless.
// Runs for the same event are serialized in process.
func (s *BookingService) PromoteWaitlist(ctx context.Context, eventID string) (int, error) {
	unlock := s.promotions.Lock(eventID)
	defer unlock()

	ev, err := s.seats.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if ev.AvailableSeats <= 0 {
		return 0, nil
	}
	waiting, err := s.store.ListWaitlisted(ctx, eventID)
	if err != nil {
		return 0, err
	}

	log := logging.FromContext(ctx).WithField("event_id", eventID)
	remaining := ev.AvailableSeats
	promoted := 0
	for _, b := range waiting {
		if remaining <= 0 {
			break
		}
		left, err := s.seats.AdjustSeats(ctx, eventID, b.NumberOfTickets)
		if errors.Is(err, model.ErrInsufficientCapacity) {
			log.WithField("booking_id", b.ID).WithField("tickets", b.NumberOfTickets).
				Debug("waitlisted booking does not fit, skipping")
			continue
		}
		if err != nil {
			return promoted, err
		}
		remaining = left

		txn := newTransactionID()
		confirmed, err := s.store.Transition(ctx, model.Transition{
			BookingID:     b.ID,
			From:          model.BookingWaitlisted,
			To:            model.BookingConfirmed,
			PaymentStatus: model.PaymentCompleted,
			TransactionID: &txn,
			At:            s.clock.Now(),
		})
		if err != nil {
			// the booking changed under us, most likely a concurrent cancel
			if relErr := s.releaseSeats(ctx, eventID, b.NumberOfTickets); relErr != nil {
				log.WithError(relErr).Error("could not release seats of a lost promotion")
			} else {
				remaining += b.NumberOfTickets
			}
			if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrNotFound) {
				continue
			}
			return promoted, err
		}

		promoted++
		s.metrics.Promoted()
		log.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"tickets":    b.NumberOfTickets,
		}).Info("waitlisted booking promoted")
		s.notify(ctx, model.NotifyPromoted, confirmed)
	}
	return promoted, nil
}

// Sweep runs PromoteWaitlist for every event that has a waitlist.  It
// covers promotions lost to restarts or partial failures.
func (s *BookingService) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.EventsWithWaitlist(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	var errs []error
	for _, id := range ids {
		n, err := s.PromoteWaitlist(ctx, id)
		total += n
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// RunSweeper calls Sweep every interval until ctx is done.  A
// non-positive interval disables the sweeper.
func (s *BookingService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	log := logging.FromContext(ctx).WithField("component", "promotion-sweeper")
	log.WithField("interval", interval).Info("sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("sweep failed")
			}
			if n > 0 {
				log.WithField("promoted", n).Info("sweep promoted waitlisted bookings")
			}
		}
	}
}
