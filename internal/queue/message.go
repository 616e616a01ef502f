// Package queue carries booking notifications over RabbitMQ: the publisher
// used by the booking server and the consumer run by cmd/notifier.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// DefaultQueue is the durable queue notifications are published to.
const DefaultQueue = "booking.notifications"

// BookingNotification is the message body.  It holds everything the
// delivery side needs so it never queries the booking ledger.
type BookingNotification struct {
	Kind             model.NotificationKind `json:"kind"`
	BookingID        string                 `json:"booking_id"`
	BookingReference string                 `json:"booking_reference"`
	UserID           string                 `json:"user_id"`
	UserName         string                 `json:"user_name"`
	UserEmail        string                 `json:"user_email"`
	EventID          string                 `json:"event_id"`
	EventTitle       string                 `json:"event_title"`
	EventDate        string                 `json:"event_date"`
	EventVenue       string                 `json:"event_venue"`
	EventTime        string                 `json:"event_time"`
	NumberOfTickets  int                    `json:"number_of_tickets"`
	TotalAmount      float64                `json:"total_amount"`
	BookingStatus    model.BookingStatus    `json:"booking_status"`
	PaymentStatus    model.PaymentStatus    `json:"payment_status"`
	OccurredAt       string                 `json:"occurred_at"`
}

// FromNotification flattens a notification into its wire form.
func FromNotification(n model.Notification) BookingNotification {
	b := n.Booking
	b.ComputeTotal()
	return BookingNotification{
		Kind:             n.Kind,
		BookingID:        b.ID,
		BookingReference: b.Reference,
		UserID:           b.UserID,
		UserName:         b.UserName,
		UserEmail:        b.UserEmail,
		EventID:          b.EventID,
		EventTitle:       b.EventTitle,
		EventDate:        b.EventDate.Format("2006-01-02"),
		EventVenue:       b.EventVenue,
		EventTime:        b.EventTime,
		NumberOfTickets:  b.NumberOfTickets,
		TotalAmount:      b.TotalAmount,
		BookingStatus:    b.BookingStatus,
		PaymentStatus:    b.PaymentStatus,
		OccurredAt:       n.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// Subject is the headline a delivery channel would use.
func (m BookingNotification) Subject() string {
	switch m.Kind {
	case model.NotifyConfirmed:
		return "Booking Confirmed - " + m.EventTitle
	case model.NotifyWaitlisted:
		return "Waitlist Confirmation - " + m.EventTitle
	case model.NotifyPromoted:
		return "You're off the waitlist - " + m.EventTitle
	case model.NotifyCancelled:
		return "Booking Cancelled - " + m.EventTitle
	}
	return "Booking update - " + m.EventTitle
}

// Line renders the notification as one log line.
func (m BookingNotification) Line() string {
	return fmt.Sprintf("[%s] %s | to=%s | ref=%s | booking_id=%s | event_id=%s | date=%s %s | venue=%q | tickets=%d | total=%.2f | status=%s | payment=%s",
		m.OccurredAt, m.Subject(), m.UserEmail, m.BookingReference, m.BookingID, m.EventID,
		m.EventDate, m.EventTime, m.EventVenue, m.NumberOfTickets, m.TotalAmount,
		m.BookingStatus, m.PaymentStatus)
}
