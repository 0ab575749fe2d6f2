package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "wheelaway/internal/bookings/errors"
	"wheelaway/pkg/auth"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/model"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const staleBatchSize = 100

func (s *bookingService) Confirm(ctx context.Context, id string, actor auth.Actor) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Confirm", trace.WithAttributes(attribute.String("booking_id", id)))
	defer func() { endSpan(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(current.OwnerID) {
		return nil, apperrors.Forbidden("Only the car owner can confirm this booking")
	}
	if current.Status != model.BookingStatusPending {
		return nil, apperrors.InvalidTransition(current.Status, model.BookingStatusConfirmed)
	}

	booking, err = s.transition(ctx, id, model.BookingStatusPending, model.BookingStatusConfirmed, actor)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.FromContext(ctx).Info("Booking confirmed", "id", id, "actor", actor.UserID)
	s.publish(ctx, model.EventBookingConfirmed, booking, actor.UserID)
	return booking, nil
}

// Cancel frees the booked dates. The requester may withdraw a pending
// request; the owner or an admin may cancel while pending or confirmed.
func (s *bookingService) Cancel(ctx context.Context, id string, actor auth.Actor) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Cancel", trace.WithAttributes(attribute.String("booking_id", id)))
	defer func() { endSpan(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	isOwner := actor.Owns(current.OwnerID)
	isRequester := actor.UserID == current.UserID
	switch {
	case !isOwner && !isRequester:
		return nil, apperrors.Forbidden("You cannot cancel this booking")
	case current.Status == model.BookingStatusCancelled:
		return nil, apperrors.InvalidTransition(current.Status, model.BookingStatusCancelled)
	case !isOwner && current.Status != model.BookingStatusPending:
		return nil, apperrors.Forbidden("Only the car owner can cancel a confirmed booking")
	}

	booking, err = s.transition(ctx, id, current.Status, model.BookingStatusCancelled, actor)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.FromContext(ctx).Info("Booking cancelled",
		"id", id,
		"previous_status", current.Status,
		"actor", actor.UserID,
	)
	s.publish(ctx, model.EventBookingCancelled, booking, actor.UserID)
	return booking, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, id, status string, actor auth.Actor) (*model.Booking, error) {
	if err := s.validator.ValidateStatus(&model.StatusUpdate{Status: status}); err != nil {
		return nil, apperrors.InvalidInput("status must be one of: confirmed, cancelled")
	}

	switch status {
	case model.BookingStatusConfirmed:
		return s.Confirm(ctx, id, actor)
	default:
		return s.Cancel(ctx, id, actor)
	}
}

// MarkPaid records a completed payment. Repeated calls return the booking as
// it stands and emit no second event.
func (s *bookingService) MarkPaid(ctx context.Context, id string) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.MarkPaid", trace.WithAttributes(attribute.String("booking_id", id)))
	defer func() { endSpan(span, err) }()

	paidAt := s.now().Truncate(time.Millisecond)
	booking, changed, err := s.repo.MarkPaid(ctx, id, paidAt)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to mark booking paid")
	}

	if booking.Status == model.BookingStatusCancelled && booking.PaymentStatus != model.PaymentStatusPaid {
		return nil, apperrors.InvalidTransition(booking.Status, model.PaymentStatusPaid)
	}

	if changed {
		s.cfg.Log.FromContext(ctx).Info("Booking marked paid", "id", id)
		s.publish(ctx, model.EventBookingPaid, booking, auth.RoleSystem)
	} else {
		s.cfg.Log.FromContext(ctx).Debug("Booking already paid", "id", id)
	}

	s.attachReceipt(booking)
	return booking, nil
}

// ExpireStalePending cancels pending bookings created more than olderThan ago
// and returns how many it released.
func (s *bookingService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}

	stale, err := s.repo.FindStalePending(ctx, s.now().Add(-olderThan), staleBatchSize)
	if err != nil {
		s.cfg.Log.Error("Failed to load stale pending bookings", "error", err)
		return 0, apperrors.Internal("Failed to load stale bookings", err)
	}

	expired := 0
	for _, b := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		updated, err := s.repo.UpdateStatus(ctx, b.ID, model.BookingStatusPending, model.BookingStatusCancelled, model.CancelledBySystem, s.now())
		if err != nil {
			if errors.Is(err, bookingserrors.ErrStatusChanged) || errors.Is(err, bookingserrors.ErrNotFound) {
				continue
			}
			s.cfg.Log.Error("Failed to expire booking", "id", b.ID, "error", err)
			continue
		}

		expired++
		s.publish(ctx, model.EventBookingExpired, updated, model.CancelledBySystem)
	}

	if expired > 0 {
		s.cfg.Log.Info("Expired stale pending bookings", "count", expired, "older_than", olderThan)
	}
	return expired, nil
}

// transition applies a conditional status write. Losing the race to another
// writer is reported against the status that writer left behind.
func (s *bookingService) transition(ctx context.Context, id, from, to string, actor auth.Actor) (*model.Booking, error) {
	booking, err := s.repo.UpdateStatus(ctx, id, from, to, actor.UserID, s.now().Truncate(time.Millisecond))
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, bookingserrors.ErrStatusChanged) {
		return nil, s.mapRepoError(err, id, "Failed to update booking status")
	}

	latest, loadErr := s.load(ctx, id)
	if loadErr != nil {
		return nil, loadErr
	}
	return nil, apperrors.InvalidTransition(latest.Status, to)
}
