// Package consumer settles bookings from payment completion events.
package consumer

import (
	"context"
	"errors"
	"net/http"

	paymentserrors "wheelaway/internal/payments/errors"
	"wheelaway/internal/payments/parser"
	apperrors "wheelaway/pkg/errors"
	"wheelaway/pkg/kafka"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
)

type Settler interface {
	Settle(ctx context.Context, bookingID string, update *model.PaymentUpdate) (*model.Booking, error)
}

// NewHandler returns the payment-events message handler. Malformed payloads
// and domain rejections are permanent and end up in the DLQ; storage failures
// are retried.
func NewHandler(settler Settler, log *logger.Logger) kafka.MessageHandler {
	log = log.Component("payment-events")

	return func(ctx context.Context, msg kafka.Message) error {
		ev, err := parser.Parse(msg.Value)
		if err != nil {
			if errors.Is(err, paymentserrors.ErrIgnored) {
				log.Debug("Skipping payment event", "offset", msg.Offset, "reason", err)
				return nil
			}
			return kafka.NewPermanentError("unreadable payment event", err).
				WithDetail("offset", msg.Offset)
		}

		if _, err := settler.Settle(ctx, ev.BookingID, &ev.Update); err != nil {
			return classify(err, ev)
		}

		log.Info("Booking settled from payment event",
			"booking_id", ev.BookingID,
			"payment_id", ev.Update.PaymentID,
		)
		return nil
	}
}

func classify(err error, ev *parser.Event) error {
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		return kafka.NewTransientError("payment settlement failed", err).
			WithDetail("booking_id", ev.BookingID)
	}
	return kafka.NewBusinessError("payment rejected", err).
		WithDetail("booking_id", ev.BookingID).
		WithDetail("code", appErr.Code)
}
