package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newTestValidator() *validator.Validate {
	v := validator.New()
	RegisterDecimal(v)
	return v
}

func validCarCreate() CarCreate {
	return CarCreate{
		Make:          "Maruti",
		Model:         "Swift",
		Year:          2022,
		Category:      CategoryCompact,
		PricePerDay:   decimal.NewFromInt(1000),
		Location:      "Bengaluru",
		AvailableFrom: "2024-06-01",
		AvailableTo:   "2024-06-30",
	}
}

func TestCarCreate_Validation(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name        string
		mutate      func(c *CarCreate)
		expectValid bool
	}{
		{"valid car", func(c *CarCreate) {}, true},
		{"missing make", func(c *CarCreate) { c.Make = "" }, false},
		{"unknown category", func(c *CarCreate) { c.Category = "Truck" }, false},
		{"zero price", func(c *CarCreate) { c.PricePerDay = decimal.Zero }, false},
		{"negative price", func(c *CarCreate) { c.PricePerDay = decimal.NewFromInt(-5) }, false},
		{"fractional price", func(c *CarCreate) { c.PricePerDay = decimal.RequireFromString("999.50") }, true},
		{"year too old", func(c *CarCreate) { c.Year = 1950 }, false},
		{"bad date format", func(c *CarCreate) { c.AvailableFrom = "01/06/2024" }, false},
		{"bad image url", func(c *CarCreate) { c.Images = []string{"not a url"} }, false},
		{"empty feature", func(c *CarCreate) { c.Features = []string{""} }, false},
		{"bad document type", func(c *CarCreate) {
			c.Documents = []CarDocument{{Type: "passport", Reference: "ABCD1234"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCarCreate()
			tt.mutate(&c)
			err := v.Struct(c)
			if tt.expectValid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.expectValid && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestBookingRequest_Validation(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name        string
		req         BookingRequest
		expectValid bool
	}{
		{
			name:        "valid request",
			req:         BookingRequest{CarID: "507f1f77bcf86cd799439011", StartDate: "2024-06-05", EndDate: "2024-06-08"},
			expectValid: true,
		},
		{
			name:        "car id not an object id",
			req:         BookingRequest{CarID: "car-1", StartDate: "2024-06-05", EndDate: "2024-06-08"},
			expectValid: false,
		},
		{
			name:        "missing end date",
			req:         BookingRequest{CarID: "507f1f77bcf86cd799439011", StartDate: "2024-06-05"},
			expectValid: false,
		},
		{
			name:        "timestamp instead of date",
			req:         BookingRequest{CarID: "507f1f77bcf86cd799439011", StartDate: "2024-06-05T10:00:00Z", EndDate: "2024-06-08"},
			expectValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.expectValid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.expectValid && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestStatusUpdate_Validation(t *testing.T) {
	v := newTestValidator()

	for _, status := range []string{BookingStatusConfirmed, BookingStatusCancelled} {
		if err := v.Struct(StatusUpdate{Status: status}); err != nil {
			t.Errorf("status %q should be accepted: %v", status, err)
		}
	}
	for _, status := range []string{"", BookingStatusPending, "paid", "CONFIRMED"} {
		if err := v.Struct(StatusUpdate{Status: status}); err == nil {
			t.Errorf("status %q should be rejected", status)
		}
	}
}

func TestCar_WindowEnd(t *testing.T) {
	car := &Car{
		AvailableFrom: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		AvailableTo:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := car.WindowEnd(); !got.Equal(want) {
		t.Errorf("WindowEnd() = %v, want %v", got, want)
	}
}

func TestNewBookingEvent(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{
		ID:            "b1",
		CarID:         "c1",
		UserID:        "u1",
		OwnerID:       "o1",
		Status:        BookingStatusConfirmed,
		PaymentStatus: PaymentStatusPending,
		TotalPrice:    decimal.NewFromInt(3000),
		Currency:      "INR",
	}

	ev := NewBookingEvent(EventBookingConfirmed, b, "o1", at)

	if ev.Type != EventBookingConfirmed || ev.BookingID != "b1" || ev.OwnerID != "o1" {
		t.Errorf("unexpected event %+v", ev)
	}
	if !ev.TotalPrice.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("expected total 3000, got %s", ev.TotalPrice)
	}
	if !ev.OccurredAt.Equal(at) {
		t.Errorf("expected occurred_at %v, got %v", at, ev.OccurredAt)
	}
}
