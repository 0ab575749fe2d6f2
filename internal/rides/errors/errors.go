package errors

import "errors"

var (
	ErrNotFound = errors.New("ride not found")

	ErrInvalidID = errors.New("invalid ride ID format")

	// ErrNotApplied means a conditional update matched nothing because the ride
	// changed underneath it. Callers re-read the ride to find out why.
	ErrNotApplied = errors.New("ride changed concurrently")
)
