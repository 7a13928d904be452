// Package mbdate handles the partial dates MusicBrainz reports: "YYYY",
// "YYYY-MM", or "YYYY-MM-DD". Raw strings are stored verbatim; a normalized
// date is derived by start-of-period fill (missing month or day becomes 01).
package mbdate

import "time"

// Precision levels by how much of the date is present.
const (
	PrecisionYear  = 0
	PrecisionMonth = 1
	PrecisionDay   = 2
)

var layouts = []string{"2006", "2006-01", "2006-01-02"}

// Normalize derives the start-of-period date for a raw partial date string.
// Returns nil for empty or unparseable input.
func Normalize(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Precision reports how specific a raw date string is, or -1 when it does
// not parse.
func Precision(raw string) int {
	switch {
	case raw == "":
		return -1
	case len(raw) == 4:
		if Normalize(raw) == nil {
			return -1
		}
		return PrecisionYear
	case len(raw) == 7:
		if Normalize(raw) == nil {
			return -1
		}
		return PrecisionMonth
	case len(raw) == 10:
		if Normalize(raw) == nil {
			return -1
		}
		return PrecisionDay
	default:
		return -1
	}
}
