// Package parser reads payment completion events from the gateways WheelAway
// accepts. Two payload shapes are understood: the flat form posted by the
// checkout callback and the nested webhook form where the booking reference
// travels in the payment metadata.
package parser

import (
	"fmt"
	"strings"

	paymentserrors "wheelaway/internal/payments/errors"
	"wheelaway/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const ProviderGateway = "gateway"

var settledStatuses = map[string]bool{
	"":          true,
	"captured":  true,
	"succeeded": true,
	"paid":      true,
	"completed": true,
}

// Event is a parsed payment completion.
type Event struct {
	BookingID string
	Update    model.PaymentUpdate
}

func Parse(payload []byte) (*Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: not valid JSON", paymentserrors.ErrInvalidPayload)
	}

	doc := gjson.ParseBytes(payload)
	if doc.Get("data.object").Exists() {
		return parseWebhook(doc)
	}
	return parseFlat(doc)
}

// parseFlat handles {"booking_id", "payment_id", "order_id", "amount", ...}
// with the amount in major units.
func parseFlat(doc gjson.Result) (*Event, error) {
	bookingID := firstString(doc, "booking_id", "bookingId")
	paymentID := firstString(doc, "payment_id", "paymentId", "razorpayPaymentId")
	if bookingID == "" || paymentID == "" {
		return nil, fmt.Errorf("%w: booking_id and payment_id are required", paymentserrors.ErrInvalidPayload)
	}
	if status := strings.ToLower(doc.Get("status").String()); !settledStatuses[status] {
		return nil, fmt.Errorf("%w: status %s", paymentserrors.ErrIgnored, status)
	}

	amount, err := amountOf(doc.Get("amount"), 0)
	if err != nil {
		return nil, err
	}

	provider := doc.Get("provider").String()
	if provider == "" {
		provider = model.ProviderManual
	}

	return &Event{
		BookingID: bookingID,
		Update: model.PaymentUpdate{
			Provider:  provider,
			OrderID:   firstString(doc, "order_id", "orderId", "razorpayOrderId"),
			PaymentID: paymentID,
			Amount:    amount,
			Currency:  strings.ToUpper(doc.Get("currency").String()),
			Method:    firstString(doc, "method", "paymentMethod"),
		},
	}, nil
}

// parseWebhook handles {"type", "data": {"object": {...}}} where the amount is
// in minor units and the booking id sits under metadata.
func parseWebhook(doc gjson.Result) (*Event, error) {
	obj := doc.Get("data.object")

	bookingID := firstString(obj, "metadata.booking_id", "notes.booking_id")
	paymentID := obj.Get("id").String()
	if bookingID == "" || paymentID == "" {
		return nil, fmt.Errorf("%w: data.object.id and metadata.booking_id are required", paymentserrors.ErrInvalidPayload)
	}
	if status := strings.ToLower(obj.Get("status").String()); !settledStatuses[status] {
		return nil, fmt.Errorf("%w: status %s", paymentserrors.ErrIgnored, status)
	}

	amount, err := amountOf(obj.Get("amount"), 2)
	if err != nil {
		return nil, err
	}

	provider := doc.Get("provider").String()
	if provider == "" {
		provider = ProviderGateway
	}

	return &Event{
		BookingID: bookingID,
		Update: model.PaymentUpdate{
			Provider:  provider,
			OrderID:   obj.Get("order_id").String(),
			PaymentID: paymentID,
			Amount:    amount,
			Currency:  strings.ToUpper(obj.Get("currency").String()),
			Method:    firstString(obj, "method", "payment_method_types.0"),
		},
	}, nil
}

// amountOf reads a number or numeric string and shifts it down by minorDigits.
// A missing amount is nil.
func amountOf(v gjson.Result, minorDigits int32) (*decimal.Decimal, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}

	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", paymentserrors.ErrInvalidPayload, v.String())
	}
	d = d.Shift(-minorDigits)
	return &d, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
