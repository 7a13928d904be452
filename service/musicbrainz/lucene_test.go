package musicbrainz

import "testing"

func TestEscapeLucene(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "plain text untouched",
			value: "Paranoid Android",
			want:  "Paranoid Android",
		},
		{
			name:  "slash and brackets",
			value: "AC/DC [Live]",
			want:  `AC\/DC \[Live\]`,
		},
		{
			name:  "quotes and colon",
			value: `Album: "Title"`,
			want:  `Album\: \"Title\"`,
		},
		{
			name:  "boolean operators",
			value: "this AND that + more",
			want:  `this AND that \+ more`,
		},
		{
			name:  "empty string",
			value: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeLucene(tt.value)
			if got != tt.want {
				t.Errorf("EscapeLucene(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
