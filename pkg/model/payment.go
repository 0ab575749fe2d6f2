package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentRecordCaptured = "captured"
	ProviderManual        = "manual"
)

type Payment struct {
	ID        string          `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID string          `json:"booking_id" bson:"booking_id"`
	Provider  string          `json:"provider" bson:"provider"`
	OrderID   string          `json:"order_id,omitempty" bson:"order_id,omitempty"`
	PaymentID string          `json:"payment_id" bson:"payment_id"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Currency  string          `json:"currency" bson:"currency"`
	Method    string          `json:"method,omitempty" bson:"method,omitempty"`
	Status    string          `json:"status" bson:"status"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}
