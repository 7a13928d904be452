package db

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	*pgxpool.Pool
	logger *log.Logger
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	// All timestamps are written and read in UTC.
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger := log.New(os.Stdout, "db: ", log.LstdFlags|log.Lmsgprefix)

	return &DB{pool, logger}, nil
}

func (db *DB) Initialize(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT UNIQUE,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at BIGINT NOT NULL,          -- absolute epoch seconds
			scope TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, provider),
			UNIQUE (provider, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS artists (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			mbid TEXT UNIQUE,
			type TEXT,
			gender TEXT,
			begin_date_raw TEXT,
			end_date_raw TEXT,
			image_url TEXT,
			last_enriched_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artists_name ON artists(name)`,

		`CREATE TABLE IF NOT EXISTS artist_group_memberships (
			id UUID PRIMARY KEY,
			member_id UUID NOT NULL REFERENCES artists(id),
			group_id UUID NOT NULL REFERENCES artists(id),
			begin_date DATE,
			end_date DATE,
			begin_date_raw TEXT NOT NULL DEFAULT '',
			end_date_raw TEXT NOT NULL DEFAULT '',
			ended BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (member_id, group_id, begin_date_raw, end_date_raw)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_member ON artist_group_memberships(member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_group ON artist_group_memberships(group_id)`,

		`CREATE TABLE IF NOT EXISTS albums (
			id UUID PRIMARY KEY,
			artist_id UUID NOT NULL REFERENCES artists(id),
			title TEXT NOT NULL,
			release_date DATE,
			mbid TEXT UNIQUE,
			image_url TEXT,
			last_enriched_at TIMESTAMPTZ,
			UNIQUE (artist_id, title)
		)`,

		`CREATE TABLE IF NOT EXISTS tracks (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			duration_ms BIGINT,
			mbid TEXT UNIQUE,
			isrc TEXT UNIQUE,
			explicit BOOLEAN NOT NULL DEFAULT false,
			last_enriched_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS track_artists (
			track_id UUID NOT NULL REFERENCES tracks(id),
			artist_id UUID NOT NULL REFERENCES artists(id),
			is_primary BOOLEAN NOT NULL DEFAULT false,
			position INTEGER NOT NULL DEFAULT 0,
			join_phrase TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (track_id, artist_id)
		)`,

		`CREATE TABLE IF NOT EXISTS track_albums (
			track_id UUID NOT NULL REFERENCES tracks(id),
			album_id UUID NOT NULL REFERENCES albums(id),
			disc_number INTEGER,
			position INTEGER,
			PRIMARY KEY (track_id, album_id)
		)`,

		`CREATE TABLE IF NOT EXISTS scrobbles (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			track_id UUID NOT NULL REFERENCES tracks(id),
			album_id UUID REFERENCES albums(id),
			played_at TIMESTAMPTZ NOT NULL,
			played_duration_ms BIGINT NOT NULL DEFAULT 0,
			skipped BOOLEAN NOT NULL DEFAULT false,
			provider TEXT NOT NULL,
			import_batch_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, track_id, played_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scrobbles_user_played_at ON scrobbles(user_id, played_at DESC)`,

		`CREATE TABLE IF NOT EXISTS scrobble_cursors (
			user_id UUID NOT NULL REFERENCES users(id),
			provider TEXT NOT NULL,
			last_played_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, provider)
		)`,

		`CREATE TABLE IF NOT EXISTS playback_sessions (
			user_id UUID NOT NULL REFERENCES users(id),
			provider TEXT NOT NULL,
			track_uri TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			last_progress_ms BIGINT NOT NULL DEFAULT 0,
			accumulated_ms BIGINT NOT NULL DEFAULT 0,
			is_playing BOOLEAN NOT NULL DEFAULT false,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			metadata JSONB,
			scrobbled BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (user_id, provider)
		)`,

		`CREATE TABLE IF NOT EXISTS enrichment_jobs (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			entity_kind TEXT NOT NULL,
			entity_id UUID NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			priority INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 5,
			run_after TIMESTAMPTZ NOT NULL DEFAULT now(),
			locked_at TIMESTAMPTZ,
			locked_by TEXT,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// one active job per (kind, entity); terminal jobs do not count
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active ON enrichment_jobs(kind, entity_kind, entity_id)
			WHERE status IN ('pending', 'running')`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_claim ON enrichment_jobs(status, run_after, priority)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_reap ON enrichment_jobs(status, updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
