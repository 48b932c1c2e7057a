package normalize

import (
	"strings"
	"time"
)

// isoDate is the canonical output layout
const isoDate = "2006-01-02"

// dateLayouts are tried in order; an ambiguous "03/04/2024" is day/month/year
var dateLayouts = []string{
	"2/1/2006",
	"1/2/2006",
	"2006-1-2",
	"2-1-2006",
}

// NormalizeDate returns the date as YYYY-MM-DD when one of the supported
// layouts matches, and the trimmed input unchanged otherwise.
func NormalizeDate(text string) string {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format(isoDate)
		}
	}
	return text
}

// IsISODate reports whether s is already a canonical YYYY-MM-DD date
func IsISODate(s string) bool {
	_, err := time.Parse(isoDate, s)
	return err == nil
}
