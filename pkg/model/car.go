package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryEconomy  = "Economy"
	CategoryCompact  = "Compact"
	CategoryMidsize  = "Midsize"
	CategorySUV      = "SUV"
	CategoryVan      = "Van"
	CategoryLuxury   = "Luxury"
	DocTypeRC        = "rc"
	DocTypeInsurance = "insurance"
	DocTypePUC       = "puc"
)

type Car struct {
	ID            string          `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID       string          `json:"owner_id" bson:"owner_id" validate:"required,max=64"`
	Make          string          `json:"make" bson:"make" validate:"required,min=2,max=50"`
	Model         string          `json:"model" bson:"model" validate:"required,min=1,max=50"`
	Year          int             `json:"year" bson:"year" validate:"required,min=1990,max=2100"`
	Category      string          `json:"category" bson:"category" validate:"required,oneof=Economy Compact Midsize SUV Van Luxury"`
	PricePerDay   decimal.Decimal `json:"price_per_day" bson:"price_per_day" validate:"gt=0"`
	Currency      string          `json:"currency" bson:"currency" validate:"required,len=3,uppercase"`
	Location      string          `json:"location" bson:"location" validate:"required,min=2,max=200"`
	Images        []string        `json:"images,omitempty" bson:"images,omitempty" validate:"omitempty,max=10,dive,url"`
	Description   string          `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Features      []string        `json:"features,omitempty" bson:"features,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Documents     []CarDocument   `json:"documents,omitempty" bson:"documents,omitempty" validate:"omitempty,max=5,dive"`
	AvailableFrom time.Time       `json:"available_from" bson:"available_from" validate:"required"`
	AvailableTo   time.Time       `json:"available_to" bson:"available_to" validate:"required,gtfield=AvailableFrom"`
	IsVerified    bool            `json:"is_verified" bson:"is_verified"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	Ratings       Ratings         `json:"ratings" bson:"ratings"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
}

type CarDocument struct {
	Type      string `json:"type" bson:"type" validate:"required,oneof=rc insurance puc"`
	Reference string `json:"reference" bson:"reference" validate:"required,min=4,max=100"`
	Verified  bool   `json:"verified" bson:"verified"`
}

type Ratings struct {
	Average float64 `json:"average" bson:"average"`
	Count   int     `json:"count" bson:"count"`
}

// WindowEnd is the exclusive end of the availability window. AvailableTo is the
// last bookable day, so a rental may end on the following morning.
func (c *Car) WindowEnd() time.Time {
	return c.AvailableTo.AddDate(0, 0, 1)
}

type CarCreate struct {
	Make          string          `json:"make" validate:"required,min=2,max=50"`
	Model         string          `json:"model" validate:"required,min=1,max=50"`
	Year          int             `json:"year" validate:"required,min=1990,max=2100"`
	Category      string          `json:"category" validate:"required,oneof=Economy Compact Midsize SUV Van Luxury"`
	PricePerDay   decimal.Decimal `json:"price_per_day" validate:"gt=0"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,max=3"`
	Location      string          `json:"location" validate:"required,min=2,max=200"`
	Images        []string        `json:"images,omitempty" validate:"omitempty,max=10,dive,url"`
	Description   string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Features      []string        `json:"features,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Documents     []CarDocument   `json:"documents,omitempty" validate:"omitempty,max=5,dive"`
	AvailableFrom string          `json:"available_from" validate:"required,datetime=2006-01-02"`
	AvailableTo   string          `json:"available_to" validate:"required,datetime=2006-01-02"`
}

type CarUpdate struct {
	PricePerDay *decimal.Decimal `json:"price_per_day,omitempty" validate:"omitempty,gt=0"`
	Location    *string          `json:"location,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Features    []string         `json:"features,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Images      []string         `json:"images,omitempty" validate:"omitempty,max=10,dive,url"`
}

type WindowUpdate struct {
	AvailableFrom string `json:"available_from" validate:"required,datetime=2006-01-02"`
	AvailableTo   string `json:"available_to" validate:"required,datetime=2006-01-02"`
}

type AvailabilityWindow struct {
	CarID         string          `json:"car_id"`
	AvailableFrom time.Time       `json:"available_from"`
	AvailableTo   time.Time       `json:"available_to"`
	PricePerDay   decimal.Decimal `json:"price_per_day"`
	Currency      string          `json:"currency"`
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
)

type CarFilter struct {
	Category string
	Location string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	From     *time.Time
	To       *time.Time
	OwnerID  string
	Verified *bool
	Sort     string
	Limit    int
	Offset   int64
}
