package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged is returned by a conditional status write when another
	// request moved the booking first.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrLockHeld = errors.New("car is locked by another booking request")
)
