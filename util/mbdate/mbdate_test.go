package mbdate

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	date := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{
			name: "year only fills month and day",
			raw:  "2001",
			want: date(2001, time.January, 1),
		},
		{
			name: "year and month fills day",
			raw:  "2001-06",
			want: date(2001, time.June, 1),
		},
		{
			name: "full date",
			raw:  "2001-06-15",
			want: date(2001, time.June, 15),
		},
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
		{
			name: "garbage",
			raw:  "sometime in the 90s",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			case !got.Equal(*tt.want):
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPrecision(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "year", raw: "1999", want: PrecisionYear},
		{name: "month", raw: "1999-04", want: PrecisionMonth},
		{name: "day", raw: "1999-04-23", want: PrecisionDay},
		{name: "empty", raw: "", want: -1},
		{name: "malformed", raw: "99-4", want: -1},
		{name: "right length wrong content", raw: "abcd", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Precision(tt.raw)
			if got != tt.want {
				t.Errorf("Precision(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
