package service

import (
	"context"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// notify hands the outcome to the notifier on a tracked goroutine.  The
// booking is already durable, so a failure is only logged.
func (s *BookingService) notify(ctx context.Context, kind model.NotificationKind, b model.Booking) {
	if s.notifier == nil {
		return
	}
	n := model.Notification{Kind: kind, Booking: b, OccurredAt: s.clock.Now()}
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx).WithField("booking_id", b.ID).WithField("kind", kind)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.metrics.NotificationFailed()
			log.WithError(err).Warn("notification failed")
		}
	}()
}

// Drain waits for in-flight notifications or until ctx is done.
func (s *BookingService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
