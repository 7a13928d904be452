package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Ulo03/playbacc/models"
)

// --- artists ---

const artistColumns = `id, name, mbid, type, gender, begin_date_raw, end_date_raw, image_url, last_enriched_at`

func scanArtist(row pgx.Row) (*models.Artist, error) {
	a := &models.Artist{}
	err := row.Scan(
		&a.ID, &a.Name, &a.MBID, &a.Type, &a.Gender,
		&a.BeginDateRaw, &a.EndDateRaw, &a.ImageURL, &a.LastEnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (db *DB) GetArtistByID(ctx context.Context, id uuid.UUID) (*models.Artist, error) {
	return scanArtist(db.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, id))
}

func (db *DB) GetArtistByMBID(ctx context.Context, mbid string) (*models.Artist, error) {
	return scanArtist(db.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE mbid = $1`, mbid))
}

func (db *DB) GetArtistByName(ctx context.Context, name string) (*models.Artist, error) {
	return scanArtist(db.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE name = $1 LIMIT 1`, name))
}

func (db *DB) InsertArtist(ctx context.Context, artist *models.Artist) error {
	if artist.ID == uuid.Nil {
		artist.ID = uuid.New()
	}
	_, err := db.Exec(ctx, `
	INSERT INTO artists (id, name, mbid, type, gender, begin_date_raw, end_date_raw, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		artist.ID, artist.Name, artist.MBID, artist.Type, artist.Gender,
		artist.BeginDateRaw, artist.EndDateRaw, artist.ImageURL)
	return err
}

func (db *DB) AttachArtistMBID(ctx context.Context, id uuid.UUID, mbid string) error {
	_, err := db.Exec(ctx, `UPDATE artists SET mbid = $1 WHERE id = $2 AND mbid IS NULL`, mbid, id)
	return err
}

// UpdateArtistDetails overwrites the metadata-source attributes after an
// enrichment fetch. Name is left alone; display names come from the provider.
func (db *DB) UpdateArtistDetails(ctx context.Context, artist *models.Artist) error {
	_, err := db.Exec(ctx, `
	UPDATE artists
	SET type = $1, gender = $2, begin_date_raw = $3, end_date_raw = $4
	WHERE id = $5`,
		artist.Type, artist.Gender, artist.BeginDateRaw, artist.EndDateRaw, artist.ID)
	return err
}

func (db *DB) SetArtistImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	_, err := db.Exec(ctx, `UPDATE artists SET image_url = $1 WHERE id = $2`, imageURL, id)
	return err
}

// --- group memberships ---

const membershipColumns = `id, member_id, group_id, begin_date, end_date, begin_date_raw, end_date_raw, ended`

func (db *DB) ListMembershipStints(ctx context.Context, memberID, groupID uuid.UUID) ([]*models.GroupMembership, error) {
	rows, err := db.Query(ctx, `
	SELECT `+membershipColumns+`
	FROM artist_group_memberships
	WHERE member_id = $1 AND group_id = $2
	ORDER BY begin_date_raw`, memberID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemberships(rows)
}

func scanMemberships(rows pgx.Rows) ([]*models.GroupMembership, error) {
	var stints []*models.GroupMembership
	for rows.Next() {
		m := &models.GroupMembership{}
		if err := rows.Scan(
			&m.ID, &m.MemberID, &m.GroupID, &m.BeginDate, &m.EndDate,
			&m.BeginDateRaw, &m.EndDateRaw, &m.Ended,
		); err != nil {
			return nil, err
		}
		stints = append(stints, m)
	}
	return stints, rows.Err()
}

func (db *DB) InsertMembership(ctx context.Context, m *models.GroupMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := db.Exec(ctx, `
	INSERT INTO artist_group_memberships (id, member_id, group_id, begin_date, end_date, begin_date_raw, end_date_raw, ended)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (member_id, group_id, begin_date_raw, end_date_raw) DO NOTHING`,
		m.ID, m.MemberID, m.GroupID, m.BeginDate, m.EndDate,
		m.BeginDateRaw, m.EndDateRaw, m.Ended)
	return err
}

func (db *DB) UpdateMembership(ctx context.Context, m *models.GroupMembership) error {
	_, err := db.Exec(ctx, `
	UPDATE artist_group_memberships
	SET begin_date = $1, end_date = $2, begin_date_raw = $3, end_date_raw = $4, ended = $5
	WHERE id = $6`,
		m.BeginDate, m.EndDate, m.BeginDateRaw, m.EndDateRaw, m.Ended, m.ID)
	return err
}

// MembershipDetail pairs a stint with the artist on the far side of the edge.
type MembershipDetail struct {
	Artist *models.Artist          `json:"artist"`
	Stint  *models.GroupMembership `json:"stint"`
}

func (db *DB) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]*MembershipDetail, error) {
	return db.listMembershipDetails(ctx, `
	SELECT a.id, a.name, a.mbid, a.type, a.gender, a.begin_date_raw, a.end_date_raw, a.image_url, a.last_enriched_at,
	       m.id, m.member_id, m.group_id, m.begin_date, m.end_date, m.begin_date_raw, m.end_date_raw, m.ended
	FROM artist_group_memberships m
	JOIN artists a ON a.id = m.member_id
	WHERE m.group_id = $1
	ORDER BY m.begin_date NULLS FIRST, a.name`, groupID)
}

func (db *DB) ListArtistGroups(ctx context.Context, memberID uuid.UUID) ([]*MembershipDetail, error) {
	return db.listMembershipDetails(ctx, `
	SELECT a.id, a.name, a.mbid, a.type, a.gender, a.begin_date_raw, a.end_date_raw, a.image_url, a.last_enriched_at,
	       m.id, m.member_id, m.group_id, m.begin_date, m.end_date, m.begin_date_raw, m.end_date_raw, m.ended
	FROM artist_group_memberships m
	JOIN artists a ON a.id = m.group_id
	WHERE m.member_id = $1
	ORDER BY m.begin_date NULLS FIRST, a.name`, memberID)
}

func (db *DB) listMembershipDetails(ctx context.Context, query string, arg any) ([]*MembershipDetail, error) {
	rows, err := db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []*MembershipDetail
	for rows.Next() {
		a := &models.Artist{}
		m := &models.GroupMembership{}
		if err := rows.Scan(
			&a.ID, &a.Name, &a.MBID, &a.Type, &a.Gender, &a.BeginDateRaw, &a.EndDateRaw, &a.ImageURL, &a.LastEnrichedAt,
			&m.ID, &m.MemberID, &m.GroupID, &m.BeginDate, &m.EndDate, &m.BeginDateRaw, &m.EndDateRaw, &m.Ended,
		); err != nil {
			return nil, err
		}
		details = append(details, &MembershipDetail{Artist: a, Stint: m})
	}
	return details, rows.Err()
}

// --- albums ---

const albumColumns = `id, artist_id, title, release_date, mbid, image_url, last_enriched_at`

func scanAlbum(row pgx.Row) (*models.Album, error) {
	a := &models.Album{}
	err := row.Scan(&a.ID, &a.ArtistID, &a.Title, &a.ReleaseDate, &a.MBID, &a.ImageURL, &a.LastEnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (db *DB) GetAlbumByID(ctx context.Context, id uuid.UUID) (*models.Album, error) {
	return scanAlbum(db.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1`, id))
}

func (db *DB) GetAlbumByMBID(ctx context.Context, mbid string) (*models.Album, error) {
	return scanAlbum(db.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE mbid = $1`, mbid))
}

func (db *DB) GetAlbumByArtistAndTitle(ctx context.Context, artistID uuid.UUID, title string) (*models.Album, error) {
	return scanAlbum(db.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE artist_id = $1 AND title = $2`, artistID, title))
}

func (db *DB) InsertAlbum(ctx context.Context, album *models.Album) error {
	if album.ID == uuid.Nil {
		album.ID = uuid.New()
	}
	_, err := db.Exec(ctx, `
	INSERT INTO albums (id, artist_id, title, release_date, mbid, image_url)
	VALUES ($1, $2, $3, $4, $5, $6)`,
		album.ID, album.ArtistID, album.Title, album.ReleaseDate, album.MBID, album.ImageURL)
	return err
}

func (db *DB) AttachAlbumMBID(ctx context.Context, id uuid.UUID, mbid string) error {
	_, err := db.Exec(ctx, `UPDATE albums SET mbid = $1 WHERE id = $2 AND mbid IS NULL`, mbid, id)
	return err
}

func (db *DB) UpdateAlbum(ctx context.Context, id uuid.UUID, title string, releaseDate *time.Time) error {
	_, err := db.Exec(ctx, `UPDATE albums SET title = $1, release_date = $2 WHERE id = $3`, title, releaseDate, id)
	return err
}

func (db *DB) SetAlbumImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	_, err := db.Exec(ctx, `UPDATE albums SET image_url = $1 WHERE id = $2`, imageURL, id)
	return err
}

// --- tracks ---

const trackColumns = `id, title, duration_ms, mbid, isrc, explicit, last_enriched_at`

func scanTrack(row pgx.Row) (*models.Track, error) {
	t := &models.Track{}
	err := row.Scan(&t.ID, &t.Title, &t.DurationMs, &t.MBID, &t.ISRC, &t.Explicit, &t.LastEnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) GetTrackByID(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	return scanTrack(db.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = $1`, id))
}

func (db *DB) GetTrackByISRC(ctx context.Context, isrc string) (*models.Track, error) {
	return scanTrack(db.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE isrc = $1`, isrc))
}

func (db *DB) GetTrackByMBID(ctx context.Context, mbid string) (*models.Track, error) {
	return scanTrack(db.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE mbid = $1`, mbid))
}

// GetTrackByTitleAndArtist is the last-resort match for tracks the provider
// reports without an ISRC.
func (db *DB) GetTrackByTitleAndArtist(ctx context.Context, title, artistName string) (*models.Track, error) {
	return scanTrack(db.QueryRow(ctx, `
	SELECT t.id, t.title, t.duration_ms, t.mbid, t.isrc, t.explicit, t.last_enriched_at
	FROM tracks t
	JOIN track_artists ta ON ta.track_id = t.id AND ta.is_primary
	JOIN artists a ON a.id = ta.artist_id
	WHERE t.title = $1 AND a.name = $2
	LIMIT 1`, title, artistName))
}

func (db *DB) InsertTrack(ctx context.Context, track *models.Track) error {
	if track.ID == uuid.Nil {
		track.ID = uuid.New()
	}
	_, err := db.Exec(ctx, `
	INSERT INTO tracks (id, title, duration_ms, mbid, isrc, explicit)
	VALUES ($1, $2, $3, $4, $5, $6)`,
		track.ID, track.Title, track.DurationMs, track.MBID, track.ISRC, track.Explicit)
	return err
}

func (db *DB) AttachTrackMBID(ctx context.Context, id uuid.UUID, mbid string) error {
	_, err := db.Exec(ctx, `UPDATE tracks SET mbid = $1 WHERE id = $2 AND mbid IS NULL`, mbid, id)
	return err
}

func (db *DB) UpdateTrackDetails(ctx context.Context, track *models.Track) error {
	_, err := db.Exec(ctx, `
	UPDATE tracks SET title = $1, duration_ms = $2, isrc = $3 WHERE id = $4`,
		track.Title, track.DurationMs, track.ISRC, track.ID)
	return err
}

// --- links ---

func (db *DB) LinkTrackArtist(ctx context.Context, link *models.TrackArtist) error {
	_, err := db.Exec(ctx, `
	INSERT INTO track_artists (track_id, artist_id, is_primary, position, join_phrase)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (track_id, artist_id) DO NOTHING`,
		link.TrackID, link.ArtistID, link.IsPrimary, link.Position, link.JoinPhrase)
	return err
}

func (db *DB) LinkTrackAlbum(ctx context.Context, link *models.TrackAlbum) error {
	_, err := db.Exec(ctx, `
	INSERT INTO track_albums (track_id, album_id, disc_number, position)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (track_id, album_id) DO NOTHING`,
		link.TrackID, link.AlbumID, link.DiscNumber, link.Position)
	return err
}

func (db *DB) GetPrimaryArtistForTrack(ctx context.Context, trackID uuid.UUID) (*models.Artist, error) {
	return scanArtist(db.QueryRow(ctx, `
	SELECT a.id, a.name, a.mbid, a.type, a.gender, a.begin_date_raw, a.end_date_raw, a.image_url, a.last_enriched_at
	FROM track_artists ta
	JOIN artists a ON a.id = ta.artist_id
	WHERE ta.track_id = $1 AND ta.is_primary
	LIMIT 1`, trackID))
}

// --- enrichment bookkeeping ---

// TouchLastEnriched stamps the entity's last_enriched_at when a job for it
// completes. The entity kind doubles as the table name.
func (db *DB) TouchLastEnriched(ctx context.Context, entityKind string, entityID uuid.UUID) error {
	var query string
	switch entityKind {
	case "artist":
		query = `UPDATE artists SET last_enriched_at = now() WHERE id = $1`
	case "album":
		query = `UPDATE albums SET last_enriched_at = now() WHERE id = $1`
	case "track":
		query = `UPDATE tracks SET last_enriched_at = now() WHERE id = $1`
	default:
		return nil
	}
	_, err := db.Exec(ctx, query, entityID)
	return err
}

// ListEntityIDsForBulkSync returns ids for a bulk enqueue, least recently
// enriched first so stale entities cycle to the front.
func (db *DB) ListEntityIDsForBulkSync(ctx context.Context, entityKind string, requireMBID bool, limit int) ([]uuid.UUID, error) {
	var table string
	switch entityKind {
	case "artist":
		table = "artists"
	case "album":
		table = "albums"
	case "track":
		table = "tracks"
	default:
		return nil, errors.New("unknown entity kind: " + entityKind)
	}

	query := `SELECT id FROM ` + table
	if requireMBID {
		query += ` WHERE mbid IS NOT NULL`
	} else {
		query += ` WHERE mbid IS NULL`
	}
	query += ` ORDER BY last_enriched_at ASC NULLS FIRST LIMIT $1`

	rows, err := db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
