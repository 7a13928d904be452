package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackMetadata is the provider-reported shape of a playing track, captured
// when a playback session begins. Finalization works entirely off this
// snapshot; by the time a track change is observed the previous item is
// already gone from the provider's endpoint.
type TrackMetadata struct {
	URI        string         `json:"uri"`
	ExternalID string         `json:"externalId"`
	Title      string         `json:"title"`
	DurationMs int64          `json:"durationMs"`
	Explicit   bool           `json:"explicit"`
	ISRC       string         `json:"isrc,omitempty"`
	Artists    []ArtistCredit `json:"artists"`
	Album      AlbumRef       `json:"album"`
}

type ArtistCredit struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId,omitempty"`
}

type AlbumRef struct {
	Title       string `json:"title"`
	ExternalID  string `json:"externalId,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

// PlaybackSession is the singleton per (user, provider) row the session
// engine drives. AccumulatedMs only grows while the provider reports the
// track as playing; Scrobbled latches once a scrobble has been emitted so a
// pause/resume cannot double-scrobble.
type PlaybackSession struct {
	UserID         uuid.UUID
	Provider       string
	TrackURI       string
	StartedAt      time.Time
	LastSeenAt     time.Time
	LastProgressMs int64
	AccumulatedMs  int64
	IsPlaying      bool
	DurationMs     int64
	Metadata       *TrackMetadata
	Scrobbled      bool
}
