package model

import (
	"fmt"
	"strings"
	"time"
)

// Event is the seat record owned by the event component.  Besides the
// seat counters it carries the descriptive fields that bookings copy into
// their snapshot at booking time.
//
// Fields:
//
//	ID             – identifier assigned by the event-management collaborator.
//	Title          – display title.
//	Venue          – where the event happens.
//	Date           – calendar date of the event (UTC).
//	Time           – free-form start time label, e.g. "19:30".
//	Price          – price per ticket.
//	Capacity       – total seats, positive and immutable after creation.
//	AvailableSeats – seats still bookable; 0 <= AvailableSeats <= Capacity.
//	Status         – upcoming, ongoing, completed or cancelled.
type Event struct {
	ID             string    `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	Venue          string    `json:"venue" db:"venue"`
	Date           time.Time `json:"date" db:"event_date"`
	Time           string    `json:"time" db:"event_time"`
	Price          float64   `json:"price" db:"price"`
	Capacity       int       `json:"capacity" db:"capacity"`
	AvailableSeats int       `json:"availableSeats" db:"available_seats"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// EventStatusUpcoming is the status of a freshly defined event.
const EventStatusUpcoming = "upcoming"

// Validate checks the invariants of a seat record.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("%w: event id is required", ErrValidation)
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%w: event title is required", ErrValidation)
	case e.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be at least 1", ErrValidation)
	case e.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	case e.AvailableSeats < 0 || e.AvailableSeats > e.Capacity:
		return fmt.Errorf("%w: available seats must be within [0, capacity]", ErrValidation)
	}
	return nil
}

// ClampSeats applies a seat adjustment to available and keeps the result
// inside [0, capacity].  Reservations are checked by the caller; the clamp
// only matters for releases that would overshoot capacity.
func ClampSeats(available, capacity, seatsToBook int) int {
	next := available - seatsToBook
	if next < 0 {
		return 0
	}
	if next > capacity {
		return capacity
	}
	return next
}
