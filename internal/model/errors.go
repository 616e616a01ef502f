package model

import "errors"

// Error taxonomy shared by the seat ledger, the booking ledger and the
// orchestrator.  Callers wrap these with fmt.Errorf("...: %w") and the HTTP
// layer matches them with errors.Is to pick a status code.
var (
	// ErrValidation rejects malformed input before any state change.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized covers missing or invalid credentials and an
	// unreachable identity verifier.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated caller does not own
	// the resource and is not an administrator.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound covers unknown events and bookings.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientCapacity means a reservation asked for more seats than
	// are currently available.  The ledger is left unchanged.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrConflict signals a duplicate or out-of-order action, e.g.
	// cancelling an already cancelled booking.
	ErrConflict = errors.New("conflict")
	// ErrDownstreamUnavailable marks a collaborator that could not be
	// reached.  Seat adjustments failing this way may be retried.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

// ErrDuplicateReference is returned by the booking ledger when a generated
// reference collides with an existing one.
var ErrDuplicateReference = errors.New("duplicate booking reference")
