package locale

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code    string // ISO 4217
	Symbol  string
	Name    string
	Country string // ISO 3166-1 alpha-2 of the home market
}

var Currencies = map[string]Currency{
	"INR": {Code: "INR", Symbol: "₹", Name: "Indian Rupee", Country: "IN"},
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", Country: "US"},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", Country: "DE"},
	"GBP": {Code: "GBP", Symbol: "£", Name: "Pound Sterling", Country: "GB"},
}

var symbols = map[string]string{
	"₹":  "INR",
	"RS": "INR",
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
}

// NormalizeCurrency maps a code or symbol to a supported ISO code. An empty
// input yields fallback.
func NormalizeCurrency(input, fallback string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(input))
	if v == "" {
		v = strings.ToUpper(strings.TrimSpace(fallback))
	}
	v = strings.TrimSuffix(v, ".")

	if code, ok := symbols[v]; ok {
		return code, nil
	}
	if _, ok := Currencies[v]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unsupported currency %q", input)
}

func Supported(code string) bool {
	_, ok := Currencies[code]
	return ok
}

// FormatAmount renders an amount with its currency symbol and two decimals,
// e.g. "₹3000.00". Unknown codes fall back to "3000.00 XYZ".
func FormatAmount(amount decimal.Decimal, code string) string {
	if c, ok := Currencies[code]; ok {
		return c.Symbol + amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + code
}
