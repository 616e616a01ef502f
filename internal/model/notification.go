package model

import "time"

// NotificationKind names the booking outcome a notification reports.
type NotificationKind string

const (
	NotifyConfirmed  NotificationKind = "booking.confirmed"
	NotifyWaitlisted NotificationKind = "booking.waitlisted"
	NotifyPromoted   NotificationKind = "booking.promoted"
	NotifyCancelled  NotificationKind = "booking.cancelled"
)

// Notification is handed to the notifier after a booking change has been
// committed.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	Booking    Booking          `json:"booking"`
	OccurredAt time.Time        `json:"occurredAt"`
}
