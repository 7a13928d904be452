package tracker

import (
	"testing"
	"time"
)

func defaultConfig() Config {
	return Config{
		PollInterval:         8 * time.Second,
		MinPlaySeconds:       30,
		MinPlayPercent:       50,
		WrapMinToleranceMs:   15000,
		WrapThresholdPercent: 35,
		MaxDeltaMs:           30000,
		StaleSessionMs:       1800000,
		SkipThresholdPercent: 90,
		EndMarginMs:          15000,
	}
}

func TestThresholdMet(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		name          string
		accumulatedMs int64
		durationMs    int64
		want          bool
	}{
		{
			name:          "meets absolute floor",
			accumulatedMs: 30000,
			durationMs:    600000,
			want:          true,
		},
		{
			name:          "just under absolute floor on long track",
			accumulatedMs: 29999,
			durationMs:    240000, // 4 min; 50% = 120000, so percent does not rescue it
			want:          false,
		},
		{
			name:          "short track qualifies via percent",
			accumulatedMs: 48000,
			durationMs:    90000, // 50% = 45000
			want:          true,
		},
		{
			name:          "short track under both bounds",
			accumulatedMs: 20000,
			durationMs:    90000,
			want:          false,
		},
		{
			name:          "zero duration relies on absolute floor",
			accumulatedMs: 29000,
			durationMs:    0,
			want:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.thresholdMet(tt.accumulatedMs, tt.durationMs)
			if got != tt.want {
				t.Errorf("thresholdMet(%d, %d) = %v, want %v", tt.accumulatedMs, tt.durationMs, got, tt.want)
			}
		})
	}
}

func TestWrapThreshold(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		name       string
		durationMs int64
		want       int64
	}{
		{
			name:       "long track uses percentage",
			durationMs: 200000, // 35% = 70000
			want:       70000,
		},
		{
			name:       "short track floored at tolerance",
			durationMs: 30000, // 35% = 10500 < 15000
			want:       15000,
		},
		{
			name:       "zero duration floored at tolerance",
			durationMs: 0,
			want:       15000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.wrapThreshold(tt.durationMs)
			if got != tt.want {
				t.Errorf("wrapThreshold(%d) = %d, want %d", tt.durationMs, got, tt.want)
			}
		})
	}
}

func TestEffectiveDuration(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		name          string
		accumulatedMs int64
		durationMs    int64
		want          int64
	}{
		{
			name:          "just short of the margin keeps accumulated",
			accumulatedMs: 180000,
			durationMs:    200000, // 180000 + 15000 = 195000 < 200000
			want:          180000,
		},
		{
			name:          "within margin rounds up",
			accumulatedMs: 186000,
			durationMs:    200000, // 186000 + 15000 >= 200000
			want:          200000,
		},
		{
			name:          "partial play keeps accumulated",
			accumulatedMs: 48000,
			durationMs:    90000,
			want:          48000,
		},
		{
			name:          "exact boundary",
			accumulatedMs: 185000,
			durationMs:    200000,
			want:          200000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.effectiveDuration(tt.accumulatedMs, tt.durationMs)
			if got != tt.want {
				t.Errorf("effectiveDuration(%d, %d) = %d, want %d", tt.accumulatedMs, tt.durationMs, got, tt.want)
			}
		})
	}
}

func TestIsSkipped(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		name        string
		effectiveMs int64
		durationMs  int64
		want        bool
	}{
		{
			name:        "partial play below skip threshold",
			effectiveMs: 48000,
			durationMs:  90000, // 90% = 81000
			want:        true,
		},
		{
			name:        "full play",
			effectiveMs: 200000,
			durationMs:  200000,
			want:        false,
		},
		{
			name:        "exactly at threshold is not skipped",
			effectiveMs: 81000,
			durationMs:  90000,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.isSkipped(tt.effectiveMs, tt.durationMs)
			if got != tt.want {
				t.Errorf("isSkipped(%d, %d) = %v, want %v", tt.effectiveMs, tt.durationMs, got, tt.want)
			}
		})
	}
}

// TestLoopDetection covers the wrap scenario end to end on the pure helpers:
// a track near its end jumping back to the start finalizes as one full play.
func TestLoopDetection(t *testing.T) {
	cfg := defaultConfig()

	durationMs := int64(200000)
	lastProgress := int64(180000)
	newProgress := int64(5000)
	delta := newProgress - lastProgress

	threshold := cfg.wrapThreshold(durationMs)
	if threshold != 70000 {
		t.Fatalf("wrapThreshold = %d, want 70000", threshold)
	}
	if !(delta < -threshold) {
		t.Fatalf("delta %d should trip the wrap threshold %d", delta, threshold)
	}

	// The finished pass accumulated the whole run-through.
	effective := cfg.effectiveDuration(186000, durationMs)
	if effective != durationMs {
		t.Errorf("effectiveDuration = %d, want full duration %d", effective, durationMs)
	}
	if cfg.isSkipped(effective, durationMs) {
		t.Errorf("a full play must not be marked skipped")
	}
}

func TestJitterStaysInBand(t *testing.T) {
	base := 8 * time.Second
	for i := 0; i < 100; i++ {
		got := jitter(base)
		if got < time.Duration(float64(base)*0.9) || got > time.Duration(float64(base)*1.1) {
			t.Fatalf("jitter(%v) = %v outside ±10%% band", base, got)
		}
	}
}
