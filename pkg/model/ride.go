package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RideStatusScheduled  = "scheduled"
	RideStatusInProgress = "in_progress"
	RideStatusCompleted  = "completed"
	RideStatusCancelled  = "cancelled"

	PassengerStatusPending  = "pending"
	PassengerStatusAccepted = "accepted"
	PassengerStatusRejected = "rejected"

	DefaultRideSeats = 3
	MaxRideSeats     = 8
)

type Ride struct {
	ID            string          `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	DriverID      string          `json:"driver_id" bson:"driver_id" validate:"required,max=64"`
	CarID         string          `json:"car_id,omitempty" bson:"car_id,omitempty" validate:"omitempty,mongodb"`
	Source        string          `json:"source" bson:"source" validate:"required,min=2,max=200"`
	Destination   string          `json:"destination" bson:"destination" validate:"required,min=2,max=200"`
	DepartureTime time.Time       `json:"departure_time" bson:"departure_time" validate:"required"`
	Seats         int             `json:"seats" bson:"seats" validate:"required,min=1,max=8"`
	SeatsClaimed  int             `json:"seats_claimed" bson:"seats_claimed" validate:"min=0,ltefield=Seats"`
	Price         decimal.Decimal `json:"price" bson:"price" validate:"gte=0"`
	Currency      string          `json:"currency" bson:"currency" validate:"required,len=3,uppercase"`
	Status        string          `json:"status" bson:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
	Passengers    []Passenger     `json:"passengers" bson:"passengers" validate:"dive"`
	CancelledBy   string          `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
}

type Passenger struct {
	ID           string    `json:"id" bson:"_id" validate:"required,mongodb"`
	UserID       string    `json:"user_id" bson:"user_id" validate:"required,max=64"`
	Status       string    `json:"status" bson:"status" validate:"required,oneof=pending accepted rejected"`
	JoinLocation string    `json:"join_location,omitempty" bson:"join_location,omitempty" validate:"omitempty,max=200"`
	RequestedAt  time.Time `json:"requested_at" bson:"requested_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// SeatsLeft is how many more passengers can still ask to join.
func (r *Ride) SeatsLeft() int {
	if left := r.Seats - r.SeatsClaimed; left > 0 {
		return left
	}
	return 0
}

// Passenger returns the passenger entry with the given id, or nil.
func (r *Ride) Passenger(id string) *Passenger {
	for i := range r.Passengers {
		if r.Passengers[i].ID == id {
			return &r.Passengers[i]
		}
	}
	return nil
}

// HasPassenger reports whether userID already asked to join, whatever the answer was.
func (r *Ride) HasPassenger(userID string) bool {
	for _, p := range r.Passengers {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type RideCreate struct {
	Source        string          `json:"source" validate:"required,min=2,max=200"`
	Destination   string          `json:"destination" validate:"required,min=2,max=200"`
	DepartureTime string          `json:"departure_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Seats         int             `json:"seats,omitempty" validate:"omitempty,min=1,max=8"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,max=3"`
	CarID         string          `json:"car_id,omitempty" validate:"omitempty,mongodb"`
}

type JoinRequest struct {
	JoinLocation string `json:"join_location,omitempty" validate:"omitempty,max=200"`
}

type PassengerUpdate struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

type RideStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed cancelled"`
}

type RideFilter struct {
	Source      string
	Destination string
	Date        *time.Time
	DriverID    string
	// AnyStatus lifts the scheduled-only restriction of public search.
	AnyStatus bool
	Limit     int
	Offset    int64
}
