package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"crypto-analyst/pkg/utils"
)

// FormatUSD formats an amount with thousands separators, e.g. $97,000.00.
// Prices below one dollar keep more precision.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	decimals := 2
	if amount > 0 && amount < 1 {
		decimals = 6
	}
	str := fmt.Sprintf("%.*f", decimals, amount)
	intPart, decPart, _ := strings.Cut(str, ".")

	result := "$" + groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatConfidence formats a 0-100 confidence.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf)
}

// FormatValue renders an indicator value, or "n/a" when absent.
func FormatValue(v null.Float) string {
	if !v.Valid || math.IsNaN(v.Float64) {
		return "n/a"
	}
	switch abs := math.Abs(v.Float64); {
	case abs >= 1e6:
		return utils.FormatCompact(v.Float64)
	case abs >= 100:
		return utils.FormatNullable(v, 2)
	}
	return utils.FormatNullable(v, 4)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to max runes with an ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
