package errors

import "errors"

var (
	ErrDuplicate = errors.New("payment already recorded")

	ErrInvalidPayload = errors.New("invalid payment payload")

	// ErrIgnored marks gateway events that do not settle a booking, such as a failed attempt.
	ErrIgnored = errors.New("payment event ignored")
)
