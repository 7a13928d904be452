package spotify

import (
	"time"

	"github.com/Ulo03/playbacc/models"
)

// PollKind tags the three outcomes of a currently-playing poll. The provider
// payload is heterogeneous (tracks, episodes, ads); anything that is not a
// track is rejected at this boundary.
type PollKind int

const (
	PollNoContent PollKind = iota
	PollNotATrack
	PollTrack
)

// Poll is one observation of the currently-playing endpoint.
type Poll struct {
	Kind       PollKind
	ProgressMs int64
	IsPlaying  bool
	Timestamp  int64 // provider-reported, Unix ms
	Track      *models.TrackMetadata
}

// PlayedItem is one entry of the recently-played history. PlayedAt marks the
// end of the play, not the start.
type PlayedItem struct {
	Track    models.TrackMetadata
	PlayedAt time.Time
}

// Profile is the provider-side identity used for account linking.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// --- provider wire shapes ---

type apiArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	Images      []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

type apiTrack struct {
	ID          string      `json:"id"`
	URI         string      `json:"uri"`
	Name        string      `json:"name"`
	DurationMs  int64       `json:"duration_ms"`
	Explicit    bool        `json:"explicit"`
	Artists     []apiArtist `json:"artists"`
	Album       apiAlbum    `json:"album"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

type currentlyPlayingResponse struct {
	Item                 *apiTrack `json:"item"`
	ProgressMs           int64     `json:"progress_ms"`
	IsPlaying            bool      `json:"is_playing"`
	CurrentlyPlayingType string    `json:"currently_playing_type"`
	Timestamp            int64     `json:"timestamp"`
}

type recentlyPlayedResponse struct {
	Items []struct {
		Track    apiTrack `json:"track"`
		PlayedAt string   `json:"played_at"`
	} `json:"items"`
}

func (t *apiTrack) toMetadata() *models.TrackMetadata {
	meta := &models.TrackMetadata{
		URI:        t.URI,
		ExternalID: t.ID,
		Title:      t.Name,
		DurationMs: t.DurationMs,
		Explicit:   t.Explicit,
		ISRC:       t.ExternalIDs.ISRC,
		Album: models.AlbumRef{
			Title:       t.Album.Name,
			ExternalID:  t.Album.ID,
			ReleaseDate: t.Album.ReleaseDate,
		},
	}
	if len(t.Album.Images) > 0 {
		meta.Album.ImageURL = t.Album.Images[0].URL
	}
	for _, a := range t.Artists {
		meta.Artists = append(meta.Artists, models.ArtistCredit{
			Name:       a.Name,
			ExternalID: a.ID,
		})
	}
	return meta
}
