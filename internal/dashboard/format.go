package dashboard

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatAmount formats a money amount rounded to whole units, e.g.
// "12,345 USD".
func FormatAmount(v float64, currency string) string {
	return FormatInt(int(math.Round(v))) + " " + currency
}

// FormatSigned formats a signed whole amount, e.g. "+1,200" or "-350".
func FormatSigned(v float64) string {
	n := int(math.Round(v))
	if n >= 0 {
		return "+" + FormatInt(n)
	}
	return FormatInt(n)
}

// FormatPercent formats a percentage with one decimal and explicit sign.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}

// FormatCompact formats a value with B/M/K suffixes.
func FormatCompact(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
