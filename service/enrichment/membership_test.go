package enrichment

import "testing"

func TestPrefixCompatible(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{
			name: "year refines to full date",
			a:    "2001",
			b:    "2001-06-15",
			want: true,
		},
		{
			name: "full date against its year",
			a:    "2001-06-15",
			b:    "2001",
			want: true,
		},
		{
			name: "equal strings",
			a:    "1999-04",
			b:    "1999-04",
			want: true,
		},
		{
			name: "different years",
			a:    "2001",
			b:    "2002-06",
			want: false,
		},
		{
			name: "empty side is always compatible",
			a:    "",
			b:    "2010-01-01",
			want: true,
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: true,
		},
		{
			name: "same year different month",
			a:    "2001-06",
			b:    "2001-07",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prefixCompatible(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("prefixCompatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRefines(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		stored    string
		want      bool
	}{
		{
			name:      "more precise date refines",
			candidate: "2001-06-15",
			stored:    "2001",
			want:      true,
		},
		{
			name:      "equal precision does not",
			candidate: "2001",
			stored:    "2001",
			want:      false,
		},
		{
			name:      "less precise does not",
			candidate: "2001",
			stored:    "2001-06",
			want:      false,
		},
		{
			name:      "anything refines empty",
			candidate: "1987",
			stored:    "",
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refines(tt.candidate, tt.stored)
			if got != tt.want {
				t.Errorf("refines(%q, %q) = %v, want %v", tt.candidate, tt.stored, got, tt.want)
			}
		})
	}
}
