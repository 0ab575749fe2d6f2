// Package consumer turns booking events into e-mails.
package consumer

import (
	"context"
	"errors"

	"wheelaway/internal/notifications/dedupe"
	notificationserrors "wheelaway/internal/notifications/errors"
	"wheelaway/pkg/kafka"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
)

type Notifier interface {
	Notify(ctx context.Context, ev model.BookingEvent) (int, error)
}

// NewHandler returns the booking-events message handler. Each event id is
// claimed before sending; a failed send releases the claim so the retry can
// send again.
func NewHandler(notifier Notifier, store dedupe.Store, log *logger.Logger) kafka.MessageHandler {
	log = log.Component("booking-events")

	return func(ctx context.Context, msg kafka.Message) error {
		var ev model.BookingEvent
		if err := msg.DecodeValue(&ev); err != nil {
			return kafka.NewPermanentError("undecodable booking event", err).
				WithDetail("offset", msg.Offset)
		}
		if ev.BookingID == "" || ev.Type == "" {
			return kafka.NewPermanentError("booking event without id or type", kafka.ErrInvalidMessage)
		}

		eventID := msg.GetEventID()
		if eventID == "" {
			eventID = ev.BookingID + ":" + ev.Type
		}

		first, err := store.Claim(ctx, eventID)
		if err != nil {
			return kafka.NewTransientError("dedupe store unavailable", err)
		}
		if !first {
			log.Debug("Duplicate booking event skipped", "event_id", eventID)
			return nil
		}

		if _, err := notifier.Notify(ctx, ev); err != nil {
			if relErr := store.Release(context.WithoutCancel(ctx), eventID); relErr != nil {
				log.Warn("Failed to release event claim", "event_id", eventID, "error", relErr)
			}
			if errors.Is(err, notificationserrors.ErrUserNotFound) {
				return kafka.NewBusinessError("notification recipient unknown", err).
					WithDetail("booking_id", ev.BookingID)
			}
			return kafka.NewTransientError("notification delivery failed", err).
				WithDetail("booking_id", ev.BookingID)
		}
		return nil
	}
}
