package service

import (
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

func newBookingID() string { return uuid.NewString() }

// newReference returns the externally visible ticket identifier.
func newReference() string { return "BKG-" + shortuuid.New() }

func newTransactionID() string { return "TXN-" + shortuuid.New() }
