package normalize

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// cleanAmount drops everything but ASCII digits and the two separators
func cleanAmount(text string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, text)
}

// LooksNumeric reports whether a cleaned fragment can be handed to the decimal parser
func LooksNumeric(cleaned string) bool {
	return strings.ContainsAny(cleaned, "0123456789")
}

// normalizeSeparators rewrites a cleaned fragment so that "." is the only
// decimal separator and thousands separators are gone.
func normalizeSeparators(cleaned string) string {
	commas := strings.Count(cleaned, ",")
	switch {
	case commas == 0:
		return cleaned
	case strings.Contains(cleaned, "."):
		return strings.ReplaceAll(cleaned, ",", "")
	case commas == 1 && len(cleaned)-strings.Index(cleaned, ",")-1 == 2:
		// "12,34": comma as decimal separator
		return strings.Replace(cleaned, ",", ".", 1)
	default:
		return strings.ReplaceAll(cleaned, ",", "")
	}
}

// ParseAmount converts a free-form monetary fragment such as "$1,234.56" or
// "12,34 ₪" into an exact decimal. ok is false when the fragment holds no
// usable number.
func ParseAmount(text string) (amount decimal.Decimal, ok bool) {
	cleaned := cleanAmount(text)
	if cleaned == "" {
		return decimal.Zero, false
	}
	if !LooksNumeric(cleaned) {
		slog.Warn("Could not parse amount", "text", text)
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		slog.Warn("Could not parse amount", "text", text, "error", err)
		return decimal.Zero, false
	}
	return d, true
}
