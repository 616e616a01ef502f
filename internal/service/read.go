package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// ListBookings returns who's bookings, newest first.  Administrators may
// ask for every booking with all set.
func (s *BookingService) ListBookings(ctx context.Context, who model.Identity, all bool) ([]model.Booking, error) {
	if who.ID == "" {
		return nil, model.ErrUnauthorized
	}
	if all {
		if !who.IsAdmin() {
			return nil, fmt.Errorf("%w: listing all bookings requires admin", model.ErrForbidden)
		}
		return s.store.ListAll(ctx)
	}
	return s.store.ListByUser(ctx, who.ID)
}

// GetBooking returns a booking visible to who.
func (s *BookingService) GetBooking(ctx context.Context, who model.Identity, id string) (model.Booking, error) {
	if who.ID == "" {
		return model.Booking{}, model.ErrUnauthorized
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !who.CanManage(b.UserID) {
		return model.Booking{}, fmt.Errorf("%w: booking %s belongs to another user", model.ErrForbidden, id)
	}
	return b, nil
}

// ActiveBookingForEvent tells whether who already holds a live booking
// for the event.
func (s *BookingService) ActiveBookingForEvent(ctx context.Context, who model.Identity, eventID string) (model.ActiveBooking, error) {
	if who.ID == "" {
		return model.ActiveBooking{}, model.ErrUnauthorized
	}
	b, err := s.store.FindActiveForUserEvent(ctx, who.ID, eventID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ActiveBooking{}, nil
	}
	if err != nil {
		return model.ActiveBooking{}, err
	}
	return model.ActiveBooking{HasBooking: true, BookingStatus: b.BookingStatus, BookingID: b.ID}, nil
}

// Ticket returns the QR payload of a confirmed booking.
func (s *BookingService) Ticket(ctx context.Context, who model.Identity, id string) (model.TicketPayload, error) {
	b, err := s.GetBooking(ctx, who, id)
	if err != nil {
		return model.TicketPayload{}, err
	}
	if b.BookingStatus != model.BookingConfirmed {
		return model.TicketPayload{}, fmt.Errorf("%w: booking %s is %s", model.ErrConflict, id, b.BookingStatus)
	}
	return model.TicketPayload{
		BookingReference: b.Reference,
		EventID:          b.EventID,
		EventTitle:       b.EventTitle,
		EventDate:        b.EventDate,
		UserEmail:        b.UserEmail,
	}, nil
}
