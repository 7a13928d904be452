package models

import (
	"testing"
	"time"
)

func TestAccountExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	margin := 60 * time.Second

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{
			name:      "fresh token",
			expiresAt: now.Add(time.Hour).Unix(),
			want:      false,
		},
		{
			name:      "already expired",
			expiresAt: now.Add(-time.Minute).Unix(),
			want:      true,
		},
		{
			name:      "inside the safety margin",
			expiresAt: now.Add(30 * time.Second).Unix(),
			want:      true,
		},
		{
			name:      "just outside the safety margin",
			expiresAt: now.Add(61 * time.Second).Unix(),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{ExpiresAt: tt.expiresAt}
			got := a.Expired(now, margin)
			if got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
