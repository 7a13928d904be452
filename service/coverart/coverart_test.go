package coverart

import "testing"

func TestPickImage(t *testing.T) {
	tests := []struct {
		name   string
		images []coverImage
		want   string
	}{
		{
			name:   "no images",
			images: nil,
			want:   "",
		},
		{
			name: "front cover with large thumbnail preferred",
			images: []coverImage{
				{Front: false, Image: "back.jpg"},
				{Front: true, Image: "front.jpg", Thumbnails: map[string]string{
					"1200": "front-1200.jpg",
					"500":  "front-500.jpg",
				}},
			},
			want: "front-1200.jpg",
		},
		{
			name: "falls through thumbnail sizes",
			images: []coverImage{
				{Front: true, Image: "front.jpg", Thumbnails: map[string]string{
					"250": "front-250.jpg",
				}},
			},
			want: "front-250.jpg",
		},
		{
			name: "no thumbnails falls back to full image",
			images: []coverImage{
				{Front: true, Image: "front.jpg"},
			},
			want: "front.jpg",
		},
		{
			name: "no front cover uses first image",
			images: []coverImage{
				{Front: false, Image: "whatever.jpg", Thumbnails: map[string]string{"500": "whatever-500.jpg"}},
			},
			want: "whatever-500.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickImage(tt.images)
			if got != tt.want {
				t.Errorf("pickImage() = %q, want %q", got, tt.want)
			}
		})
	}
}
