package models

import (
	"time"

	"github.com/google/uuid"
)

// Artist types as MusicBrainz reports them, lowercased.
const (
	ArtistTypePerson    = "person"
	ArtistTypeGroup     = "group"
	ArtistTypeOrchestra = "orchestra"
	ArtistTypeChoir     = "choir"
	ArtistTypeCharacter = "character"
	ArtistTypeOther     = "other"
)

type Artist struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	MBID           *string    `json:"mbid,omitempty"`
	Type           *string    `json:"type,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	BeginDateRaw   *string    `json:"beginDate,omitempty"`
	EndDateRaw     *string    `json:"endDate,omitempty"`
	ImageURL       *string    `json:"imageUrl,omitempty"`
	LastEnrichedAt *time.Time `json:"lastEnrichedAt,omitempty"`
}

// GroupMembership is one stint of a member artist in a group artist. A
// (member, group) pair may have several stints; raw date strings are kept
// verbatim ("" when MusicBrainz reports none) and the normalized dates are
// derived by start-of-period fill.
type GroupMembership struct {
	ID           uuid.UUID  `json:"id"`
	MemberID     uuid.UUID  `json:"memberId"`
	GroupID      uuid.UUID  `json:"groupId"`
	BeginDate    *time.Time `json:"beginDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	BeginDateRaw string     `json:"beginDateRaw"`
	EndDateRaw   string     `json:"endDateRaw"`
	Ended        bool       `json:"ended"`
}

type Album struct {
	ID             uuid.UUID  `json:"id"`
	ArtistID       uuid.UUID  `json:"artistId"`
	Title          string     `json:"title"`
	ReleaseDate    *time.Time `json:"releaseDate,omitempty"`
	MBID           *string    `json:"mbid,omitempty"`
	ImageURL       *string    `json:"imageUrl,omitempty"`
	LastEnrichedAt *time.Time `json:"lastEnrichedAt,omitempty"`
}

type Track struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	DurationMs     *int64     `json:"durationMs,omitempty"`
	MBID           *string    `json:"mbid,omitempty"`
	ISRC           *string    `json:"isrc,omitempty"`
	Explicit       bool       `json:"explicit"`
	LastEnrichedAt *time.Time `json:"lastEnrichedAt,omitempty"`
}

// TrackArtist links a track to one credited artist.
type TrackArtist struct {
	TrackID    uuid.UUID `json:"trackId"`
	ArtistID   uuid.UUID `json:"artistId"`
	IsPrimary  bool      `json:"isPrimary"`
	Position   int       `json:"position"`
	JoinPhrase string    `json:"joinPhrase"`
}

type TrackAlbum struct {
	TrackID    uuid.UUID `json:"trackId"`
	AlbumID    uuid.UUID `json:"albumId"`
	DiscNumber *int      `json:"discNumber,omitempty"`
	Position   *int      `json:"position,omitempty"`
}
