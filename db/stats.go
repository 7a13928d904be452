package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ulo03/playbacc/models"
)

// ArtistPlayCount is one row of a top-artists listing.
type ArtistPlayCount struct {
	Artist    *models.Artist `json:"artist"`
	PlayCount int64          `json:"playCount"`
}

// TopGroups ranks group-typed artists by the user's play counts.
func (db *DB) TopGroups(ctx context.Context, userID uuid.UUID, limit int) ([]*ArtistPlayCount, error) {
	return db.topArtists(ctx, `
	SELECT a.id, a.name, a.mbid, a.type, a.gender, a.begin_date_raw, a.end_date_raw, a.image_url, a.last_enriched_at,
	       count(*) AS plays
	FROM scrobbles s
	JOIN track_artists ta ON ta.track_id = s.track_id AND ta.is_primary
	JOIN artists a ON a.id = ta.artist_id
	WHERE s.user_id = $1 AND a.type = 'group'
	GROUP BY a.id
	ORDER BY plays DESC, a.name
	LIMIT $2`, userID, limit)
}

// TopSoloArtists ranks person-typed artists that belong to no group.
func (db *DB) TopSoloArtists(ctx context.Context, userID uuid.UUID, limit int) ([]*ArtistPlayCount, error) {
	return db.topArtists(ctx, `
	SELECT a.id, a.name, a.mbid, a.type, a.gender, a.begin_date_raw, a.end_date_raw, a.image_url, a.last_enriched_at,
	       count(*) AS plays
	FROM scrobbles s
	JOIN track_artists ta ON ta.track_id = s.track_id AND ta.is_primary
	JOIN artists a ON a.id = ta.artist_id
	WHERE s.user_id = $1 AND a.type = 'person'
	  AND NOT EXISTS (SELECT 1 FROM artist_group_memberships m WHERE m.member_id = a.id)
	GROUP BY a.id
	ORDER BY plays DESC, a.name
	LIMIT $2`, userID, limit)
}

func (db *DB) topArtists(ctx context.Context, query string, userID uuid.UUID, limit int) ([]*ArtistPlayCount, error) {
	rows, err := db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*ArtistPlayCount
	for rows.Next() {
		a := &models.Artist{}
		r := &ArtistPlayCount{Artist: a}
		if err := rows.Scan(
			&a.ID, &a.Name, &a.MBID, &a.Type, &a.Gender, &a.BeginDateRaw, &a.EndDateRaw,
			&a.ImageURL, &a.LastEnrichedAt, &r.PlayCount,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ArtistDetail is the artist page payload: groups get their member roster,
// persons get the groups they have played in.
type ArtistDetail struct {
	Artist  *models.Artist      `json:"artist"`
	Members []*MembershipDetail `json:"members,omitempty"`
	Groups  []*MembershipDetail `json:"groups,omitempty"`
}

func (db *DB) GetArtistDetail(ctx context.Context, id uuid.UUID) (*ArtistDetail, error) {
	artist, err := db.GetArtistByID(ctx, id)
	if err != nil || artist == nil {
		return nil, err
	}

	detail := &ArtistDetail{Artist: artist}

	if artist.Type != nil && *artist.Type == models.ArtistTypeGroup {
		detail.Members, err = db.ListGroupMembers(ctx, id)
	} else {
		detail.Groups, err = db.ListArtistGroups(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	return detail, nil
}
