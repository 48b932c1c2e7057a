package normalize

import (
	"strconv"
	"strings"
)

// ParseQuantity extracts an item count from noisy text. It always returns a
// positive integer and falls back to 1.
func ParseQuantity(text string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	if digits == "" {
		return 1
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
