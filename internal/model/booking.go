package model

import (
	"fmt"
	"strings"
	"time"
)

// Ticket bounds per booking.
const (
	MinTicketsPerBooking = 1
	MaxTicketsPerBooking = 10
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingWaitlisted BookingStatus = "waitlisted"
	BookingCancelled  BookingStatus = "cancelled"
)

// PaymentStatus is a recorded label only; no payment is processed.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is the payment instrument chosen at booking time.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "net_banking"
	PaymentWallet     PaymentMethod = "wallet"
)

// ParsePaymentMethod normalises a client supplied method.  An empty value
// selects credit_card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return PaymentCreditCard, nil
	case PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentNetBanking, PaymentWallet:
		return m, nil
	}
	return "", fmt.Errorf("%w: unsupported payment method %q", ErrValidation, s)
}

// transitions lists the allowed booking status moves.  Cancelled is
// terminal and confirmed is only reachable through a seat reservation.
var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingWaitlisted},
	BookingConfirmed:  {BookingCancelled},
	BookingWaitlisted: {BookingConfirmed, BookingCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Booking is a request by one user for N tickets to one event.  The
// event fields are a snapshot taken at booking time and are never
// refreshed.
type Booking struct {
	ID        string `json:"id" db:"id"`
	Reference string `json:"bookingReference" db:"reference"`

	UserID    string `json:"userId" db:"user_id"`
	UserName  string `json:"userName" db:"user_name"`
	UserEmail string `json:"userEmail" db:"user_email"`

	EventID    string    `json:"eventId" db:"event_id"`
	EventTitle string    `json:"eventTitle" db:"event_title"`
	EventDate  time.Time `json:"eventDate" db:"event_date"`
	EventVenue string    `json:"eventVenue" db:"event_venue"`
	EventTime  string    `json:"eventTime" db:"event_time"`

	NumberOfTickets int     `json:"numberOfTickets" db:"number_of_tickets"`
	PricePerTicket  float64 `json:"pricePerTicket" db:"price_per_ticket"`
	// TotalAmount is derived and never stored.
	TotalAmount float64 `json:"totalAmount" db:"-"`

	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`
	TransactionID *string       `json:"transactionId,omitempty" db:"transaction_id"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	BookingStatus BookingStatus `json:"bookingStatus" db:"booking_status"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ComputeTotal refreshes TotalAmount from the ticket count and unit price.
func (b *Booking) ComputeTotal() {
	b.TotalAmount = float64(b.NumberOfTickets) * b.PricePerTicket
}

// HoldsSeats reports whether the booking currently owns reserved seats.
func (b *Booking) HoldsSeats() bool { return b.BookingStatus == BookingConfirmed }

// ValidateTickets checks the per booking ticket bounds.
func ValidateTickets(n int) error {
	if n < MinTicketsPerBooking || n > MaxTicketsPerBooking {
		return fmt.Errorf("%w: number of tickets must be between %d and %d",
			ErrValidation, MinTicketsPerBooking, MaxTicketsPerBooking)
	}
	return nil
}

// Transition describes a compare-and-set status change applied by the
// booking ledger.  The change only happens while the stored status still
// equals From.
type Transition struct {
	BookingID     string
	From          BookingStatus
	To            BookingStatus
	PaymentStatus PaymentStatus
	// TransactionID is written only when non-nil.
	TransactionID *string
	At            time.Time
	// Revert undoes a transition applied moments earlier by the same
	// caller, e.g. a cancellation whose seat release failed.  It skips the
	// lifecycle check because cancelled is otherwise terminal.
	Revert bool
}

// TicketPayload is the data encoded into a ticket QR code.
type TicketPayload struct {
	BookingReference string    `json:"bookingReference"`
	EventID          string    `json:"eventId"`
	EventTitle       string    `json:"eventTitle"`
	EventDate        time.Time `json:"eventDate"`
	UserEmail        string    `json:"userEmail"`
}

// ActiveBooking answers whether a user already holds a live booking for an event.
type ActiveBooking struct {
	HasBooking    bool          `json:"hasBooking"`
	BookingStatus BookingStatus `json:"bookingStatus,omitempty"`
	BookingID     string        `json:"bookingId,omitempty"`
}
