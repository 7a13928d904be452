package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Ulo03/playbacc/models"
)

// GetPlaybackSession loads the singleton session row for (user, provider).
func (db *DB) GetPlaybackSession(ctx context.Context, userID uuid.UUID, provider string) (*models.PlaybackSession, error) {
	s := &models.PlaybackSession{}
	var metadata []byte

	err := db.QueryRow(ctx, `
	SELECT user_id, provider, track_uri, started_at, last_seen_at, last_progress_ms,
	       accumulated_ms, is_playing, duration_ms, metadata, scrobbled
	FROM playback_sessions WHERE user_id = $1 AND provider = $2`,
		userID, provider).Scan(
		&s.UserID, &s.Provider, &s.TrackURI, &s.StartedAt, &s.LastSeenAt, &s.LastProgressMs,
		&s.AccumulatedMs, &s.IsPlaying, &s.DurationMs, &metadata, &s.Scrobbled)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		meta := &models.TrackMetadata{}
		if err := json.Unmarshal(metadata, meta); err != nil {
			db.logger.Printf("dropping unreadable session metadata for user %s: %v", userID, err)
		} else {
			s.Metadata = meta
		}
	}

	return s, nil
}

// SavePlaybackSession writes the whole session row, creating or replacing the
// singleton for (user, provider).
func (db *DB) SavePlaybackSession(ctx context.Context, s *models.PlaybackSession) error {
	var metadata []byte
	if s.Metadata != nil {
		b, err := json.Marshal(s.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}

	_, err := db.Exec(ctx, `
	INSERT INTO playback_sessions (user_id, provider, track_uri, started_at, last_seen_at, last_progress_ms,
	                               accumulated_ms, is_playing, duration_ms, metadata, scrobbled)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (user_id, provider) DO UPDATE SET
		track_uri = EXCLUDED.track_uri,
		started_at = EXCLUDED.started_at,
		last_seen_at = EXCLUDED.last_seen_at,
		last_progress_ms = EXCLUDED.last_progress_ms,
		accumulated_ms = EXCLUDED.accumulated_ms,
		is_playing = EXCLUDED.is_playing,
		duration_ms = EXCLUDED.duration_ms,
		metadata = EXCLUDED.metadata,
		scrobbled = EXCLUDED.scrobbled`,
		s.UserID, s.Provider, s.TrackURI, s.StartedAt, s.LastSeenAt, s.LastProgressMs,
		s.AccumulatedMs, s.IsPlaying, s.DurationMs, metadata, s.Scrobbled)
	return err
}

// DeletePlaybackSession clears the session; this is the only way to reset it.
func (db *DB) DeletePlaybackSession(ctx context.Context, userID uuid.UUID, provider string) error {
	_, err := db.Exec(ctx, `
	DELETE FROM playback_sessions WHERE user_id = $1 AND provider = $2`, userID, provider)
	return err
}

// MarkSessionScrobbled latches the scrobbled flag on a continuing session so
// a later pause/resume cannot emit the same play twice.
func (db *DB) MarkSessionScrobbled(ctx context.Context, userID uuid.UUID, provider string) error {
	_, err := db.Exec(ctx, `
	UPDATE playback_sessions SET scrobbled = true WHERE user_id = $1 AND provider = $2`, userID, provider)
	return err
}
