// Package history is the recently-played reconciler: a slower safety net
// that pulls the provider's play history, estimates durations from
// inter-arrival times, and backfills scrobbles the session engine missed.
package history

import (
	"context"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/catalog"
	"github.com/Ulo03/playbacc/service/spotify"
)

// reconcileDedupeWindow is deliberately much wider than the session engine's:
// the provider's played_at marks the end of a play while the session engine
// records the start, so the bracket must cover a full track plus clock skew
// and API latency.
const reconcileDedupeWindow = 10 * time.Minute

type Config struct {
	Interval             time.Duration
	FetchLimit           int
	MinPlaySeconds       int64
	MinPlayPercent       int64
	SkipThresholdPercent int64
}

func ConfigFromViper() Config {
	return Config{
		Interval:             time.Duration(viper.GetInt("history.interval_ms")) * time.Millisecond,
		FetchLimit:           viper.GetInt("history.fetch_limit"),
		MinPlaySeconds:       viper.GetInt64("tracker.min_play_seconds"),
		MinPlayPercent:       viper.GetInt64("tracker.min_play_percent"),
		SkipThresholdPercent: viper.GetInt64("tracker.skip_threshold_percent"),
	}
}

func (c Config) thresholdMet(playedMs, durationMs int64) bool {
	if playedMs >= c.MinPlaySeconds*1000 {
		return true
	}
	return durationMs > 0 && playedMs >= durationMs*c.MinPlayPercent/100
}

type Service struct {
	DB      *db.DB
	spotify *spotify.Service
	catalog *catalog.Service
	cfg     Config
	logger  *log.Logger
}

func NewService(database *db.DB, spotifyService *spotify.Service, catalogService *catalog.Service, cfg Config) *Service {
	return &Service{
		DB:      database,
		spotify: spotifyService,
		catalog: catalogService,
		cfg:     cfg,
		logger:  log.New(os.Stdout, "history: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Run drives the slow loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Printf("reconciler started, syncing every %s", s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("reconciler stopped")
			return
		case <-time.After(jitter(s.cfg.Interval)):
		}

		if err := s.Tick(ctx); err != nil {
			s.logger.Printf("reconcile cycle error: %v", err)
		}
	}
}

// Tick reconciles every linked account once.
func (s *Service) Tick(ctx context.Context) error {
	accounts, err := s.DB.ListAccounts(ctx, spotify.Provider)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcileAccount(ctx, account); err != nil {
			s.logger.Printf("reconcile failed for account %s: %v", account.ID, err)
		}
	}
	return nil
}

func (s *Service) reconcileAccount(ctx context.Context, account *models.Account) error {
	token, err := s.spotify.GetValidAccessToken(ctx, account)
	if err != nil {
		s.logger.Printf("skipping account %s this cycle: %v", account.ID, err)
		return nil
	}

	var after time.Time
	cursor, err := s.DB.GetScrobbleCursor(ctx, account.UserID, account.Provider)
	if err != nil {
		return err
	}
	if cursor != nil {
		after = cursor.LastPlayedAt
	}

	items, err := s.spotify.RecentlyPlayed(ctx, token, after, s.cfg.FetchLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	// The provider returns newest first; processing must be in played order
	// so duration estimation can use the gap to the next play.
	sort.Slice(items, func(i, j int) bool {
		return items[i].PlayedAt.Before(items[j].PlayedAt)
	})

	maxPlayedAt := after
	for i := range items {
		item := &items[i]
		if item.PlayedAt.After(maxPlayedAt) {
			maxPlayedAt = item.PlayedAt
		}

		estimated := s.estimateDuration(items, i)
		if !s.cfg.thresholdMet(estimated, item.Track.DurationMs) {
			continue
		}

		if err := s.backfill(ctx, account, item, estimated); err != nil {
			s.logger.Printf("backfill of %q for user %s failed: %v", item.Track.Title, account.UserID, err)
		}
	}

	// The cursor advances over the whole batch, below-threshold plays
	// included; they are not reconsidered later.
	return s.DB.AdvanceScrobbleCursor(ctx, account.UserID, account.Provider, maxPlayedAt)
}

// estimateDuration guesses how long play i actually ran:
// min(track duration, gap to the next play). The final item has no successor
// and gets the full track length. A missing duration estimates to zero —
// never to the raw inter-arrival gap, which can span hours of silence — so
// the threshold filter drops the play instead of recording a bogus length.
func (s *Service) estimateDuration(items []spotify.PlayedItem, i int) int64 {
	duration := items[i].Track.DurationMs
	if duration <= 0 {
		return 0
	}
	if i == len(items)-1 {
		return duration
	}

	gap := items[i+1].PlayedAt.Sub(items[i].PlayedAt).Milliseconds()
	if gap > duration {
		return duration
	}
	return gap
}

func (s *Service) backfill(ctx context.Context, account *models.Account, item *spotify.PlayedItem, estimatedMs int64) error {
	// Upsert and link first: even a deduped play must leave the track with
	// its artist and album links in place.
	stored, err := s.catalog.ResolveAndStore(ctx, &item.Track)
	if err != nil {
		return err
	}

	exists, err := s.DB.HasScrobbleForTrackNear(ctx, account.UserID, stored.TrackID, item.PlayedAt, reconcileDedupeWindow)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	skipped := false
	if d := item.Track.DurationMs; d > 0 {
		skipped = estimatedMs < d*s.cfg.SkipThresholdPercent/100
	}

	inserted, err := s.DB.InsertScrobble(ctx, &models.Scrobble{
		UserID:           account.UserID,
		TrackID:          stored.TrackID,
		AlbumID:          stored.AlbumID,
		PlayedAt:         item.PlayedAt,
		PlayedDurationMs: estimatedMs,
		Skipped:          skipped,
		Provider:         account.Provider,
	})
	if err != nil {
		return err
	}
	if inserted {
		s.logger.Printf("backfilled %q for user %s at %s", item.Track.Title, account.UserID, item.PlayedAt)
	}
	return nil
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
