// Package tracker is the playback session engine: a per-(user, provider)
// state machine driven by short-interval polls of the provider's
// currently-playing endpoint. It accumulates listening time across pauses,
// seeks, and loops, and emits scrobbles on transitions.
package tracker

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/catalog"
	"github.com/Ulo03/playbacc/service/spotify"
)

type Config struct {
	PollInterval         time.Duration
	MinPlaySeconds       int64
	MinPlayPercent       int64
	WrapMinToleranceMs   int64
	WrapThresholdPercent int64
	MaxDeltaMs           int64
	StaleSessionMs       int64
	SkipThresholdPercent int64
	EndMarginMs          int64
}

func ConfigFromViper() Config {
	return Config{
		PollInterval:         time.Duration(viper.GetInt("tracker.poll_interval_ms")) * time.Millisecond,
		MinPlaySeconds:       viper.GetInt64("tracker.min_play_seconds"),
		MinPlayPercent:       viper.GetInt64("tracker.min_play_percent"),
		WrapMinToleranceMs:   viper.GetInt64("tracker.wrap_min_tolerance_ms"),
		WrapThresholdPercent: viper.GetInt64("tracker.wrap_threshold_percent"),
		MaxDeltaMs:           viper.GetInt64("tracker.max_delta_ms"),
		StaleSessionMs:       viper.GetInt64("tracker.stale_session_ms"),
		SkipThresholdPercent: viper.GetInt64("tracker.skip_threshold_percent"),
		EndMarginMs:          viper.GetInt64("tracker.end_margin_ms"),
	}
}

// thresholdMet is the scrobble eligibility predicate. The disjunction keeps
// very short tracks scrobblable: either the absolute floor or the percentage
// of the track's duration qualifies a play.
func (c Config) thresholdMet(accumulatedMs, durationMs int64) bool {
	if accumulatedMs >= c.MinPlaySeconds*1000 {
		return true
	}
	return durationMs > 0 && accumulatedMs >= durationMs*c.MinPlayPercent/100
}

// wrapThreshold is how far progress must jump backward to count as the track
// restarting rather than a small seek.
func (c Config) wrapThreshold(durationMs int64) int64 {
	t := durationMs * c.WrapThresholdPercent / 100
	if t < c.WrapMinToleranceMs {
		return c.WrapMinToleranceMs
	}
	return t
}

// effectiveDuration treats a play that got within the end margin of the full
// track as a complete play.
func (c Config) effectiveDuration(accumulatedMs, durationMs int64) int64 {
	if durationMs > 0 && accumulatedMs+c.EndMarginMs >= durationMs {
		return durationMs
	}
	return accumulatedMs
}

func (c Config) isSkipped(effectiveMs, durationMs int64) bool {
	if durationMs <= 0 {
		return false
	}
	return effectiveMs < durationMs*c.SkipThresholdPercent/100
}

// sessionDedupeWindow brackets a session's started_at; an existing scrobble
// inside it means this play was already recorded.
const sessionDedupeWindow = 5 * time.Second

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
		logger:  log.New(os.Stdout, "tracker: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Run drives the fast loop until the context is cancelled. Accounts are
// processed sequentially per cycle; the serialized metadata client is the
// bottleneck, so parallelism would buy nothing.
func (s *Service) Run(ctx context.Context) {
	s.logger.Printf("session engine started, polling every %s", s.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("session engine stopped")
			return
		case <-time.After(jitter(s.cfg.PollInterval)):
		}

		if err := s.Tick(ctx); err != nil {
			s.logger.Printf("poll cycle error: %v", err)
		}
	}
}

// Tick runs one poll cycle over every linked account.
func (s *Service) Tick(ctx context.Context) error {
	accounts, err := s.DB.ListAccounts(ctx, spotify.Provider)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		token, err := s.spotify.GetValidAccessToken(ctx, account)
		if err != nil {
			s.logger.Printf("skipping account %s this cycle: %v", account.ID, err)
			continue
		}

		poll, err := s.spotify.CurrentlyPlaying(ctx, token)
		if err != nil {
			s.logger.Printf("currently-playing poll failed for account %s: %v", account.ID, err)
			continue
		}

		if err := s.observe(ctx, account, poll, time.Now().UTC()); err != nil {
			s.logger.Printf("session update failed for account %s: %v", account.ID, err)
		}
	}
	return nil
}

// observe advances the state machine for one account with one poll result.
func (s *Service) observe(ctx context.Context, account *models.Account, poll *spotify.Poll, now time.Time) error {
	sess, err := s.DB.GetPlaybackSession(ctx, account.UserID, account.Provider)
	if err != nil {
		return err
	}

	if poll.Kind != spotify.PollTrack {
		if sess == nil {
			return nil
		}
		if !s.stale(sess, now) {
			// The user may resume; keep the session as-is.
			return nil
		}
		s.finalize(ctx, sess)
		return s.DB.DeletePlaybackSession(ctx, account.UserID, account.Provider)
	}

	if sess == nil {
		return s.DB.SavePlaybackSession(ctx, s.fresh(account, poll, now))
	}

	if sess.TrackURI == poll.Track.URI {
		return s.continueSession(ctx, account, sess, poll, now)
	}

	// Track change: close out the previous play and start over.
	s.finalize(ctx, sess)
	return s.DB.SavePlaybackSession(ctx, s.fresh(account, poll, now))
}

func (s *Service) stale(sess *models.PlaybackSession, now time.Time) bool {
	return now.Sub(sess.LastSeenAt) > time.Duration(s.cfg.StaleSessionMs)*time.Millisecond
}

func (s *Service) fresh(account *models.Account, poll *spotify.Poll, now time.Time) *models.PlaybackSession {
	return &models.PlaybackSession{
		UserID:         account.UserID,
		Provider:       account.Provider,
		TrackURI:       poll.Track.URI,
		StartedAt:      now,
		LastSeenAt:     now,
		LastProgressMs: poll.ProgressMs,
		AccumulatedMs:  0,
		IsPlaying:      poll.IsPlaying,
		DurationMs:     poll.Track.DurationMs,
		Metadata:       poll.Track,
	}
}

// continueSession handles a poll reporting the same track URI as the stored
// session. Accumulation only happens when the previous poll saw the track
// playing; a large backward jump means the track wrapped and the previous
// pass counts as a finished play.
func (s *Service) continueSession(ctx context.Context, account *models.Account, sess *models.PlaybackSession, poll *spotify.Poll, now time.Time) error {
	delta := poll.ProgressMs - sess.LastProgressMs
	duration := sess.DurationMs
	if duration == 0 && sess.Metadata != nil {
		duration = sess.Metadata.DurationMs
	}

	if sess.IsPlaying {
		switch {
		case delta < -s.cfg.wrapThreshold(duration):
			s.finalize(ctx, sess)
			return s.DB.SavePlaybackSession(ctx, s.fresh(account, poll, now))
		case delta > 0 && delta <= s.cfg.MaxDeltaMs:
			sess.AccumulatedMs += delta
		case delta > s.cfg.MaxDeltaMs:
			// Forward seek: cap what one poll may contribute.
			sess.AccumulatedMs += s.cfg.MaxDeltaMs
		}
		// Small negative or zero delta: position update only.
	}

	sess.LastSeenAt = now
	sess.LastProgressMs = poll.ProgressMs
	sess.IsPlaying = poll.IsPlaying
	// started_at and the metadata snapshot survive untouched.

	return s.DB.SavePlaybackSession(ctx, sess)
}

// finalize turns a session into a scrobble if it qualifies. It never fails
// the caller: a finalization problem is logged and the loop moves on, because
// the session is about to be replaced or deleted either way.
func (s *Service) finalize(ctx context.Context, sess *models.PlaybackSession) {
	if sess.Scrobbled {
		return
	}
	if sess.Metadata == nil {
		s.logger.Printf("session for user %s has no metadata snapshot, skipping scrobble", sess.UserID)
		return
	}

	duration := sess.DurationMs
	if duration == 0 {
		duration = sess.Metadata.DurationMs
	}

	if !s.cfg.thresholdMet(sess.AccumulatedMs, duration) {
		return
	}

	effective := s.cfg.effectiveDuration(sess.AccumulatedMs, duration)
	skipped := s.cfg.isSkipped(effective, duration)

	exists, err := s.DB.HasScrobbleNear(ctx, sess.UserID, sess.Provider, sess.StartedAt, sessionDedupeWindow)
	if err != nil {
		s.logger.Printf("dedupe check failed for user %s: %v", sess.UserID, err)
		return
	}
	if exists {
		s.logger.Printf("similar scrobble already exists for user %s at %s, skipping", sess.UserID, sess.StartedAt)
		return
	}

	stored, err := s.catalog.ResolveAndStore(ctx, sess.Metadata)
	if err != nil {
		s.logger.Printf("failed to store track %q for user %s: %v", sess.Metadata.Title, sess.UserID, err)
		return
	}

	inserted, err := s.DB.InsertScrobble(ctx, &models.Scrobble{
		UserID:           sess.UserID,
		TrackID:          stored.TrackID,
		AlbumID:          stored.AlbumID,
		PlayedAt:         sess.StartedAt,
		PlayedDurationMs: effective,
		Skipped:          skipped,
		Provider:         sess.Provider,
	})
	if err != nil {
		s.logger.Printf("failed to insert scrobble for user %s: %v", sess.UserID, err)
		return
	}

	if inserted {
		s.logger.Printf("scrobbled %q for user %s (%d ms, skipped=%t)", sess.Metadata.Title, sess.UserID, effective, skipped)
	}

	// Latch the flag so a continuing row cannot emit this play twice.
	sess.Scrobbled = true
	if err := s.DB.MarkSessionScrobbled(ctx, sess.UserID, sess.Provider); err != nil {
		s.logger.Printf("failed to latch scrobbled flag for user %s: %v", sess.UserID, err)
	}
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
