package pricing

import (
	"math"
	"time"

	"wheelaway/pkg/sanitizer"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Days is the number of rental days in [start, end), rounded up. A partial day
// is charged as a full one.
func Days(start, end time.Time) int {
	if !start.Before(end) {
		return 0
	}
	return int(math.Ceil(float64(end.Sub(start)) / float64(day)))
}

type Quote struct {
	Days        int
	PricePerDay decimal.Decimal
	Total       decimal.Decimal
}

// QuoteFor prices a rental from the car's daily rate. Nothing the client sends
// takes part in the calculation.
func QuoteFor(pricePerDay decimal.Decimal, start, end time.Time) Quote {
	days := Days(start, end)
	rate := sanitizer.NormalizePrice(pricePerDay)
	return Quote{
		Days:        days,
		PricePerDay: rate,
		Total:       sanitizer.NormalizePrice(rate.Mul(decimal.NewFromInt(int64(days)))),
	}
}
