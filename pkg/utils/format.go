// Package utils provides small helpers shared across packages.
package utils

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// FormatPrice renders a price with precision that suits its magnitude,
// so 97000 and 0.00001234 both stay readable.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(price)
	abs := math.Abs(price)
	switch {
	case abs >= 1000:
		return d.StringFixed(2)
	case abs >= 1:
		return d.StringFixed(4)
	case abs == 0:
		return "0"
	default:
		return d.Round(8).String()
	}
}

// FormatNullable renders a nullable value with the given precision.
func FormatNullable(v null.Float, places int32) string {
	if !v.Valid {
		return "n/a"
	}
	return decimal.NewFromFloat(v.Float64).StringFixed(places)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatCompact formats a number in compact form (K/M/B).
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	}
	return fmt.Sprintf("%.2f", amount)
}
