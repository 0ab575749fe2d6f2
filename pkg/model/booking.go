package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"

	CancelledBySystem = "system"
)

type Booking struct {
	ID            string          `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	CarID         string          `json:"car_id" bson:"car_id" validate:"required,mongodb"`
	UserID        string          `json:"user_id" bson:"user_id" validate:"required,max=64"`
	OwnerID       string          `json:"owner_id" bson:"owner_id" validate:"required,max=64"`
	StartDate     time.Time       `json:"start_date" bson:"start_date" validate:"required"`
	EndDate       time.Time       `json:"end_date" bson:"end_date" validate:"required,gtfield=StartDate"`
	Days          int             `json:"days" bson:"days" validate:"min=1"`
	PricePerDay   decimal.Decimal `json:"price_per_day" bson:"price_per_day"`
	TotalPrice    decimal.Decimal `json:"total_price" bson:"total_price"`
	Currency      string          `json:"currency" bson:"currency" validate:"required,len=3"`
	Status        string          `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled"`
	PaymentStatus string          `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending paid"`
	CancelledBy   string          `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
	ReceiptToken  string          `json:"receipt_token,omitempty" bson:"-"`
}

type BookingRequest struct {
	CarID     string `json:"car_id" validate:"required,mongodb"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type StatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=confirmed cancelled"`
}

type PaymentUpdate struct {
	Provider  string           `json:"provider,omitempty" validate:"omitempty,min=2,max=30"`
	OrderID   string           `json:"order_id,omitempty" validate:"omitempty,max=100"`
	PaymentID string           `json:"payment_id" validate:"required,max=100"`
	Amount    *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Currency  string           `json:"currency,omitempty" validate:"omitempty,len=3,currency"`
	Method    string           `json:"method,omitempty" validate:"omitempty,max=30"`
}

type BookingSlot struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}

type AvailabilityResult struct {
	CarID     string        `json:"car_id"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Available bool          `json:"available"`
	Reason    string        `json:"reason,omitempty"`
	Conflicts []BookingSlot `json:"conflicts,omitempty"`
}

type Receipt struct {
	BookingID     string          `json:"booking_id"`
	CarID         string          `json:"car_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Days          int             `json:"days"`
	PricePerDay   decimal.Decimal `json:"price_per_day"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}
