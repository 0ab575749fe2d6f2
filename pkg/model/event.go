package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingPaid      = "booking.paid"
	EventBookingExpired   = "booking.expired"
)

type BookingEvent struct {
	Type          string          `json:"type"`
	BookingID     string          `json:"booking_id"`
	CarID         string          `json:"car_id"`
	UserID        string          `json:"user_id"`
	OwnerID       string          `json:"owner_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	Actor         string          `json:"actor,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *Booking, actor string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		CarID:         b.CarID,
		UserID:        b.UserID,
		OwnerID:       b.OwnerID,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalPrice:    b.TotalPrice,
		Currency:      b.Currency,
		Actor:         actor,
		OccurredAt:    at,
	}
}
