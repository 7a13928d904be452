package musicbrainz

import "testing"

func TestCleanTitle(t *testing.T) {
	cleaner := NewCleaner()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain title untouched",
			in:   "Karma Police",
			want: "Karma Police",
		},
		{
			name: "remaster suffix stripped",
			in:   "Karma Police (Remastered 2009)",
			want: "Karma Police",
		},
		{
			name: "featuring credit stripped",
			in:   "Empire State of Mind feat. Alicia Keys",
			want: "Empire State of Mind",
		},
		{
			name: "bracketed featuring credit stripped",
			in:   "No Problem (feat. Lil Wayne & 2 Chainz)",
			want: "No Problem",
		},
		{
			name: "dashed radio edit stripped",
			in:   "Blue Monday - Radio Edit",
			want: "Blue Monday",
		},
		{
			name: "stacked decoration peeled fully",
			in:   "One (Deluxe Edition) [2011 Remaster]",
			want: "One",
		},
		{
			name: "majority vote strips taylor's version",
			in:   "All Too Well (Taylor's Version)",
			want: "All Too Well",
		},
		{
			name: "meaningful parenthetical kept",
			in:   "Time (You and I)",
			want: "Time (You and I)",
		},
		{
			name: "venue suffix loses the vote and stays",
			in:   "Hey Jude (Live at Wembley Stadium)",
			want: "Hey Jude (Live at Wembley Stadium)",
		},
		{
			name: "unclosed bracket untouched",
			in:   "Broken (Title",
			want: "Broken (Title",
		},
		{
			name: "hyphenated word untouched",
			in:   "Anti-Hero",
			want: "Anti-Hero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleaner.CleanTitle(tt.in)
			if got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsEditionText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "pure vocabulary", in: "Radio Edit", want: true},
		{name: "vocabulary plus year", in: "Remastered 2009", want: true},
		{name: "no recognized tokens", in: "You and I", want: false},
		{name: "recognized minority", in: "Live at Wembley Stadium", want: false},
		{name: "split vote strips", in: "Taylor's Version", want: true},
		{name: "empty", in: "", want: false},
		{name: "numbers alone", in: "2011", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isEditionText(tt.in)
			if got != tt.want {
				t.Errorf("isEditionText(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanArtist(t *testing.T) {
	cleaner := NewCleaner()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single artist untouched",
			in:   "Radiohead",
			want: "Radiohead",
		},
		{
			name: "comma join reduced to lead",
			in:   "Silk Sonic, Bruno Mars, Anderson .Paak",
			want: "Silk Sonic",
		},
		{
			name: "ampersand join reduced to lead",
			in:   "Simon & Garfunkel",
			want: "Simon",
		},
		{
			name: "featuring join reduced to lead",
			in:   "Kendrick Lamar feat. SZA",
			want: "Kendrick Lamar",
		},
		{
			name: "and is not treated as a separator",
			in:   "Florence and the Machine",
			want: "Florence and the Machine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleaner.CleanArtist(tt.in)
			if got != tt.want {
				t.Errorf("CleanArtist(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
