package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-booking/internal/clock"
	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/metrics"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// maxReferenceAttempts bounds regeneration of a colliding booking reference.
const maxReferenceAttempts = 3

// maxCancelAttempts bounds the compare-and-set retries of a cancellation
// that races a status change.
const maxCancelAttempts = 3

// BookingService is the booking orchestrator.  It coordinates the seat
// ledger and the booking ledger, which share no transaction.
type BookingService struct {
	seats    SeatLedger
	store    BookingStore
	notifier Notifier

	clock          clock.Clock
	metrics        *metrics.Metrics
	notifyTimeout  time.Duration
	releaseRetries int
	releaseBackoff func() backoff.BackOff
	newReference   func() string

	promotions *keyedMutex
	pending    sync.WaitGroup
}

// Option customises a BookingService.
type Option func(*BookingService)

func WithClock(c clock.Clock) Option { return func(s *BookingService) { s.clock = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *BookingService) { s.metrics = m } }

// WithNotifyTimeout bounds a single notifier call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithReleaseRetries bounds the attempts of a compensating seat release.
func WithReleaseRetries(n int) Option {
	return func(s *BookingService) {
		if n > 0 {
			s.releaseRetries = n
		}
	}
}

// WithReleaseBackoff replaces the retry schedule of compensating releases.
func WithReleaseBackoff(f func() backoff.BackOff) Option {
	return func(s *BookingService) { s.releaseBackoff = f }
}

// NewBookingService wires the orchestrator.  notifier may be nil.
func NewBookingService(seats SeatLedger, store BookingStore, notifier Notifier, opts ...Option) *BookingService {
	s := &BookingService{
		seats:          seats,
		store:          store,
		notifier:       notifier,
		clock:          clock.NewSystem(),
		notifyTimeout:  5 * time.Second,
		releaseRetries: 5,
		releaseBackoff: defaultReleaseBackoff,
		newReference:   newReference,
		promotions:     newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func defaultReleaseBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// CreateBookingInput carries the client supplied fields of a booking request.
type CreateBookingInput struct {
	EventID         string `json:"eventId"`
	NumberOfTickets int    `json:"numberOfTickets"`
	PaymentMethod   string `json:"paymentMethod"`
	JoinWaitlist    bool   `json:"joinWaitlist"`
}

// CreateBooking books tickets for who.  When enough seats are free and the
// caller did not ask for the waitlist, the seats are reserved and a
// confirmed booking is stored; losing the race for the last seats falls
// back to the waitlist instead of failing.  A reservation whose booking
// cannot be stored is released again before the error is returned.
func (s *BookingService) CreateBooking(ctx context.Context, who model.Identity, in CreateBookingInput) (model.Booking, error) {
	if who.ID == "" {
		return model.Booking{}, model.ErrUnauthorized
	}
	if err := model.ValidateTickets(in.NumberOfTickets); err != nil {
		return model.Booking{}, err
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return model.Booking{}, fmt.Errorf("%w: eventId is required", model.ErrValidation)
	}
	method, err := model.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return model.Booking{}, err
	}

	ev, err := s.seats.GetEvent(ctx, eventID)
	if err != nil {
		return model.Booking{}, err
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"event_id": eventID,
		"user_id":  who.ID,
		"tickets":  in.NumberOfTickets,
	})

	b := s.draft(who, ev, in.NumberOfTickets, method)
	reserved := false
	if !in.JoinWaitlist && ev.AvailableSeats >= in.NumberOfTickets {
		_, err := s.seats.AdjustSeats(ctx, eventID, in.NumberOfTickets)
		switch {
		case err == nil:
			reserved = true
		case errors.Is(err, model.ErrInsufficientCapacity):
			log.Info("lost the race for seats, joining waitlist")
		default:
			return model.Booking{}, err
		}
	}

	if reserved {
		txn := newTransactionID()
		b.BookingStatus = model.BookingConfirmed
		b.PaymentStatus = model.PaymentCompleted
		b.TransactionID = &txn
	} else {
		b.BookingStatus = model.BookingWaitlisted
		b.PaymentStatus = model.PaymentPending
	}

	if err := s.persist(ctx, &b); err != nil {
		if reserved {
			if relErr := s.releaseSeats(ctx, eventID, in.NumberOfTickets); relErr != nil {
				log.WithError(relErr).Error("compensating seat release failed, seats leaked")
			}
		}
		return model.Booking{}, err
	}

	s.metrics.BookingCreated(string(b.BookingStatus))
	log.WithField("booking_id", b.ID).WithField("status", b.BookingStatus).Info("booking created")

	kind := model.NotifyWaitlisted
	if reserved {
		kind = model.NotifyConfirmed
	}
	s.notify(ctx, kind, b)
	return b, nil
}

// draft builds a pending booking carrying the event snapshot.
func (s *BookingService) draft(who model.Identity, ev model.Event, n int, method model.PaymentMethod) model.Booking {
	now := s.clock.Now()
	b := model.Booking{
		ID:              newBookingID(),
		UserID:          who.ID,
		UserName:        who.Name,
		UserEmail:       who.Email,
		EventID:         ev.ID,
		EventTitle:      ev.Title,
		EventDate:       ev.Date,
		EventVenue:      ev.Venue,
		EventTime:       ev.Time,
		NumberOfTickets: n,
		PricePerTicket:  ev.Price,
		PaymentMethod:   method,
		PaymentStatus:   model.PaymentPending,
		BookingStatus:   model.BookingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.ComputeTotal()
	return b
}

// persist stores b, regenerating the reference on a unique index clash.
func (s *BookingService) persist(ctx context.Context, b *model.Booking) error {
	var err error
	for i := 0; i < maxReferenceAttempts; i++ {
		b.Reference = s.newReference()
		err = s.store.Create(ctx, b)
		if !errors.Is(err, model.ErrDuplicateReference) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("store booking: %w", err)
	}
	b.ComputeTotal()
	return nil
}

// releaseSeats gives n seats back to the ledger, retrying with backoff.
// It survives cancellation of the request context.  A missing event means
// there is nothing left to release.
func (s *BookingService) releaseSeats(ctx context.Context, eventID string, n int) error {
	ctx = context.WithoutCancel(ctx)
	b := backoff.WithContext(
		backoff.WithMaxRetries(s.releaseBackoff(), uint64(s.releaseRetries-1)), ctx)

	err := backoff.Retry(func() error {
		_, err := s.seats.AdjustSeats(ctx, eventID, -n)
		switch {
		case err == nil, errors.Is(err, model.ErrNotFound):
			return nil
		case errors.Is(err, model.ErrValidation):
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil {
		s.metrics.Compensated("failed")
		return fmt.Errorf("release %d seats of %s: %w", n, eventID, err)
	}
	s.metrics.Compensated("ok")
	return nil
}

// CancelBooking cancels a booking owned by who, or any booking when who is
// an administrator.  The status change is a compare-and-set in the
// booking ledger, so concurrent cancels release the seats once.  A seat
// release that cannot be applied reverts the cancellation.
func (s *BookingService) CancelBooking(ctx context.Context, who model.Identity, bookingID string) (model.Booking, error) {
	if who.ID == "" {
		return model.Booking{}, model.ErrUnauthorized
	}
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if !who.CanManage(b.UserID) {
		return model.Booking{}, fmt.Errorf("%w: booking %s belongs to another user", model.ErrForbidden, bookingID)
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": b.ID,
		"event_id":   b.EventID,
	})

	prev, cancelled, err := s.cancelFrom(ctx, b)
	if err != nil {
		return model.Booking{}, err
	}

	if prev.HoldsSeats() {
		if err := s.releaseSeats(ctx, prev.EventID, prev.NumberOfTickets); err != nil {
			log.WithError(err).Error("seat release failed, reverting cancellation")
			if _, rerr := s.store.Transition(context.WithoutCancel(ctx), model.Transition{
				BookingID:     prev.ID,
				From:          model.BookingCancelled,
				To:            prev.BookingStatus,
				PaymentStatus: prev.PaymentStatus,
				At:            s.clock.Now(),
				Revert:        true,
			}); rerr != nil {
				log.WithError(rerr).Error("could not revert cancellation")
			}
			return model.Booking{}, fmt.Errorf("%w: %v", model.ErrDownstreamUnavailable, err)
		}
	}

	s.metrics.BookingCancelled()
	log.Info("booking cancelled")
	s.notify(ctx, model.NotifyCancelled, cancelled)

	if prev.HoldsSeats() {
		if _, err := s.PromoteWaitlist(ctx, prev.EventID); err != nil {
			log.WithError(err).Warn("waitlist promotion after cancellation failed")
		}
	}
	return cancelled, nil
}

// CancelAllForEvent cancels every live booking of a deleted event.  No
// seats are released because the event itself is gone.  It returns the
// number of bookings cancelled.
func (s *BookingService) CancelAllForEvent(ctx context.Context, eventID string) (int, error) {
	if strings.TrimSpace(eventID) == "" {
		return 0, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	active, err := s.store.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	log := logging.FromContext(ctx).WithField("event_id", eventID)
	count := 0
	for _, b := range active {
		_, cancelled, err := s.cancelFrom(ctx, b)
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
		s.metrics.BookingCancelled()
		s.notify(ctx, model.NotifyCancelled, cancelled)
	}
	log.WithField("cancelled", count).Info("bookings cancelled for deleted event")
	return count, nil
}

// cancelFrom moves b to cancelled with a compare-and-set.  When the stored
// status moved on since b was read, typically a promotion confirming a
// waitlisted booking, the write is retried from the fresh status.  It
// returns the booking as it was right before the cancellation, which
// tells the caller whether seats must be released, and the cancelled
// booking.
func (s *BookingService) cancelFrom(ctx context.Context, b model.Booking) (model.Booking, model.Booking, error) {
	for i := 0; i < maxCancelAttempts; i++ {
		if b.BookingStatus == model.BookingCancelled {
			return model.Booking{}, model.Booking{}, fmt.Errorf("%w: booking %s is already cancelled", model.ErrConflict, b.ID)
		}
		cancelled, err := s.store.Transition(ctx, model.Transition{
			BookingID:     b.ID,
			From:          b.BookingStatus,
			To:            model.BookingCancelled,
			PaymentStatus: refundedIfPaid(b.PaymentStatus),
			At:            s.clock.Now(),
		})
		if err == nil {
			return b, cancelled, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return model.Booking{}, model.Booking{}, err
		}
		if b, err = s.store.GetByID(ctx, b.ID); err != nil {
			return model.Booking{}, model.Booking{}, err
		}
	}
	return model.Booking{}, model.Booking{}, fmt.Errorf("%w: booking %s changed while being cancelled", model.ErrConflict, b.ID)
}

func refundedIfPaid(p model.PaymentStatus) model.PaymentStatus {
	if p == model.PaymentCompleted {
		return model.PaymentRefunded
	}
	return p
}
