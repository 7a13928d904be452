package history

import (
	"testing"
	"time"

	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/spotify"
)

func testConfig() Config {
	return Config{
		Interval:             time.Minute,
		FetchLimit:           50,
		MinPlaySeconds:       30,
		MinPlayPercent:       50,
		SkipThresholdPercent: 90,
	}
}

func playedItem(title string, durationMs int64, playedAt time.Time) spotify.PlayedItem {
	return spotify.PlayedItem{
		Track: models.TrackMetadata{
			Title:      title,
			DurationMs: durationMs,
		},
		PlayedAt: playedAt,
	}
}

func TestEstimateDuration(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Service{cfg: testConfig()}

	items := []spotify.PlayedItem{
		playedItem("a", 200000, base),                      // gap to next: 150 s
		playedItem("b", 180000, base.Add(150*time.Second)), // gap to next: 500 s, capped at duration
		playedItem("c", 0, base.Add(650*time.Second)),      // unknown duration, gap to next: 300 s
		playedItem("d", 240000, base.Add(950*time.Second)), // last item
	}

	tests := []struct {
		name string
		i    int
		want int64
	}{
		{
			name: "gap shorter than track",
			i:    0,
			want: 150000,
		},
		{
			name: "gap capped at track duration",
			i:    1,
			want: 180000,
		},
		{
			name: "unknown duration estimates to zero, not the gap",
			i:    2,
			want: 0,
		},
		{
			name: "last item gets full duration",
			i:    3,
			want: 240000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.estimateDuration(items, tt.i)
			if got != tt.want {
				t.Errorf("estimateDuration(items, %d) = %d, want %d", tt.i, got, tt.want)
			}
		})
	}
}

func TestThresholdMet(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name       string
		playedMs   int64
		durationMs int64
		want       bool
	}{
		{
			name:       "above absolute floor",
			playedMs:   31000,
			durationMs: 300000,
			want:       true,
		},
		{
			name:       "below both bounds",
			playedMs:   10000,
			durationMs: 300000,
			want:       false,
		},
		{
			name:       "short track via percent",
			playedMs:   25000,
			durationMs: 40000,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.thresholdMet(tt.playedMs, tt.durationMs)
			if got != tt.want {
				t.Errorf("thresholdMet(%d, %d) = %v, want %v", tt.playedMs, tt.durationMs, got, tt.want)
			}
		})
	}
}
