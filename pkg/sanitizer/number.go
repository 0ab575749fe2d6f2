package sanitizer

import "github.com/shopspring/decimal"

const PricePlaces = 2

func NormalizePrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(PricePlaces)
}

// ClampYear keeps a model year inside [min, max].
func ClampYear(year, min, max int) int {
	if year < min {
		return min
	}
	if year > max {
		return max
	}
	return year
}
