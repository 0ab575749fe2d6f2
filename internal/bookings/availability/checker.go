// Package availability decides whether a date range can be booked on a car,
// given the car's availability window and the bookings already on record.
package availability

import (
	"fmt"
	"time"

	apperrors "wheelaway/pkg/errors"
	httputil "wheelaway/pkg/http"
	"wheelaway/pkg/model"
)

const (
	ReasonInvalidRange = "invalid_range"
	ReasonOutOfWindow  = "out_of_window"
	ReasonConflict     = "conflict"
)

// Window is a car's availability window. Both ends are calendar days and To
// is the last bookable day.
type Window struct {
	From time.Time
	To   time.Time
}

func WindowOf(car *model.Car) Window {
	return Window{From: car.AvailableFrom, To: car.AvailableTo}
}

// End is the exclusive upper bound of the window.
func (w Window) End() time.Time {
	return w.To.AddDate(0, 0, 1)
}

func (w Window) Contains(r Range) bool {
	return !r.Start.Before(w.From) && !r.End.After(w.End())
}

// Range is a half-open [Start, End) rental period.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Valid() bool {
	return r.Start.Before(r.End)
}

// Overlaps uses half-open ranges: a booking ending on day N does not collide
// with one starting on day N.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// RangeOf returns the period a booking occupies.
func RangeOf(b *model.Booking) Range {
	return Range{Start: b.StartDate, End: b.EndDate}
}

type Result struct {
	Available bool
	Reason    string
	Conflicts []*model.Booking
}

// IsBlocking reports whether a booking in this status holds its dates.
func IsBlocking(status string) bool {
	return status == model.BookingStatusPending || status == model.BookingStatusConfirmed
}

// Check runs the range, window and overlap tests in that order. The first two
// stop the check; the overlap test collects every blocking booking it hits.
func Check(window Window, existing []*model.Booking, candidate Range) Result {
	if !candidate.Valid() {
		return Result{Reason: ReasonInvalidRange}
	}
	if !window.Contains(candidate) {
		return Result{Reason: ReasonOutOfWindow}
	}

	var conflicts []*model.Booking
	for _, b := range existing {
		if b == nil || !IsBlocking(b.Status) {
			continue
		}
		if candidate.Overlaps(RangeOf(b)) {
			conflicts = append(conflicts, b)
		}
	}
	if len(conflicts) > 0 {
		return Result{Reason: ReasonConflict, Conflicts: conflicts}
	}

	return Result{Available: true}
}

// CanBook is Check reduced to the first failure, as an application error.
func CanBook(window Window, existing []*model.Booking, candidate Range) error {
	res := Check(window, existing, candidate)
	if res.Available {
		return nil
	}
	return res.Err(window)
}

// Err converts a negative result into the matching application error.
func (res Result) Err(window Window) error {
	switch res.Reason {
	case "":
		return nil
	case ReasonInvalidRange:
		return apperrors.InvalidRange("start_date must be before end_date")
	case ReasonOutOfWindow:
		return apperrors.OutOfWindow(fmt.Sprintf(
			"Car is only available from %s to %s",
			window.From.Format(httputil.DateLayout),
			window.To.Format(httputil.DateLayout),
		)).WithDetails(map[string]any{
			"available_from": window.From.Format(httputil.DateLayout),
			"available_to":   window.To.Format(httputil.DateLayout),
		})
	default:
		first := res.Conflicts[0]
		return apperrors.Conflict(fmt.Sprintf(
			"Car is already booked from %s to %s",
			first.StartDate.Format(httputil.DateLayout),
			first.EndDate.Format(httputil.DateLayout),
		)).WithDetails(map[string]any{
			"booking_id": first.ID,
			"start_date": first.StartDate.Format(httputil.DateLayout),
			"end_date":   first.EndDate.Format(httputil.DateLayout),
		})
	}
}

// Slots maps conflicting bookings to their public shape.
func (res Result) Slots() []model.BookingSlot {
	slots := make([]model.BookingSlot, 0, len(res.Conflicts))
	for _, b := range res.Conflicts {
		slots = append(slots, model.BookingSlot{
			ID:        b.ID,
			StartDate: b.StartDate,
			EndDate:   b.EndDate,
			Status:    b.Status,
		})
	}
	return slots
}
