package db

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	base := 60 * time.Second
	cap := time.Hour

	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{
			name:     "first retry is exactly base",
			attempts: 1,
			want:     60 * time.Second,
		},
		{
			name:     "second retry doubles",
			attempts: 2,
			want:     120 * time.Second,
		},
		{
			name:     "fifth retry",
			attempts: 5,
			want:     16 * time.Minute,
		},
		{
			name:     "seventh retry hits the cap",
			attempts: 7,
			want:     time.Hour,
		},
		{
			name:     "far past the cap stays capped",
			attempts: 50,
			want:     time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Backoff(tt.attempts, base, 2, cap)
			if got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
			}
		})
	}
}
