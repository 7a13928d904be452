package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Ulo03/playbacc/models"
)

// InsertScrobble records a play. A conflict on the (user, track, played_at)
// dedupe key is absorbed silently; the return value reports whether a row was
// actually written.
func (db *DB) InsertScrobble(ctx context.Context, s *models.Scrobble) (bool, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	tag, err := db.Exec(ctx, `
	INSERT INTO scrobbles (id, user_id, track_id, album_id, played_at, played_duration_ms, skipped, provider, import_batch_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id, track_id, played_at) DO NOTHING`,
		s.ID, s.UserID, s.TrackID, s.AlbumID, s.PlayedAt,
		s.PlayedDurationMs, s.Skipped, s.Provider, s.ImportBatchID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasScrobbleNear reports whether any scrobble for (user, provider) has a
// played_at inside [at-window, at+window]. The session engine uses it with a
// 5 s window keyed on session start times.
func (db *DB) HasScrobbleNear(ctx context.Context, userID uuid.UUID, provider string, at time.Time, window time.Duration) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM scrobbles
		WHERE user_id = $1 AND provider = $2 AND played_at BETWEEN $3 AND $4
	)`, userID, provider, at.Add(-window), at.Add(window)).Scan(&exists)
	return exists, err
}

// HasScrobbleForTrackNear is the reconciler's window: same (user, track)
// within [at-window, at+window]. The window must exceed typical track length
// because the reconciler's played_at marks the end of the play while the
// session engine's marks the start.
func (db *DB) HasScrobbleForTrackNear(ctx context.Context, userID, trackID uuid.UUID, at time.Time, window time.Duration) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM scrobbles
		WHERE user_id = $1 AND track_id = $2 AND played_at BETWEEN $3 AND $4
	)`, userID, trackID, at.Add(-window), at.Add(window)).Scan(&exists)
	return exists, err
}

func (db *DB) GetScrobbleCursor(ctx context.Context, userID uuid.UUID, provider string) (*models.ScrobbleCursor, error) {
	c := &models.ScrobbleCursor{}
	err := db.QueryRow(ctx, `
	SELECT user_id, provider, last_played_at, updated_at
	FROM scrobble_cursors WHERE user_id = $1 AND provider = $2`,
		userID, provider).Scan(&c.UserID, &c.Provider, &c.LastPlayedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AdvanceScrobbleCursor moves the cursor forward; GREATEST keeps it monotonic
// even if a stale batch is replayed.
func (db *DB) AdvanceScrobbleCursor(ctx context.Context, userID uuid.UUID, provider string, playedAt time.Time) error {
	_, err := db.Exec(ctx, `
	INSERT INTO scrobble_cursors (user_id, provider, last_played_at, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (user_id, provider) DO UPDATE SET
		last_played_at = GREATEST(scrobble_cursors.last_played_at, EXCLUDED.last_played_at),
		updated_at = now()`,
		userID, provider, playedAt)
	return err
}

// ScrobbleEntry is a scrobble joined with its track, credited artists, and
// album for listing endpoints.
type ScrobbleEntry struct {
	Scrobble *models.Scrobble `json:"scrobble"`
	Track    *models.Track    `json:"track"`
	Artists  []string         `json:"artists"`
	Album    *string          `json:"album,omitempty"`
}

func (db *DB) ListRecentScrobbles(ctx context.Context, userID uuid.UUID, limit int) ([]*ScrobbleEntry, error) {
	rows, err := db.Query(ctx, `
	SELECT s.id, s.user_id, s.track_id, s.album_id, s.played_at, s.played_duration_ms, s.skipped, s.provider, s.import_batch_id, s.created_at,
	       t.id, t.title, t.duration_ms, t.mbid, t.isrc, t.explicit, t.last_enriched_at,
	       al.title,
	       COALESCE((
	           SELECT array_agg(a.name ORDER BY ta.position)
	           FROM track_artists ta JOIN artists a ON a.id = ta.artist_id
	           WHERE ta.track_id = t.id
	       ), '{}')
	FROM scrobbles s
	JOIN tracks t ON t.id = s.track_id
	LEFT JOIN albums al ON al.id = s.album_id
	WHERE s.user_id = $1
	ORDER BY s.played_at DESC
	LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ScrobbleEntry
	for rows.Next() {
		s := &models.Scrobble{}
		t := &models.Track{}
		e := &ScrobbleEntry{Scrobble: s, Track: t}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.TrackID, &s.AlbumID, &s.PlayedAt, &s.PlayedDurationMs, &s.Skipped, &s.Provider, &s.ImportBatchID, &s.CreatedAt,
			&t.ID, &t.Title, &t.DurationMs, &t.MBID, &t.ISRC, &t.Explicit, &t.LastEnrichedAt,
			&e.Album, &e.Artists,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
