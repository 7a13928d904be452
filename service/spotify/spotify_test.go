package spotify

import (
	"encoding/json"
	"testing"
)

const currentlyPlayingTrackJSON = `{
	"timestamp": 1719400000000,
	"progress_ms": 12345,
	"is_playing": true,
	"currently_playing_type": "track",
	"item": {
		"id": "11dFghVXANMlKmJXsNCbNl",
		"uri": "spotify:track:11dFghVXANMlKmJXsNCbNl",
		"name": "Cut To The Feeling",
		"duration_ms": 207959,
		"explicit": false,
		"artists": [
			{"id": "6sFIWsNpZYqfjUpaCgueju", "name": "Carly Rae Jepsen"}
		],
		"album": {
			"id": "0tGPJ0bkWOUmH7MEOR77qc",
			"name": "Cut To The Feeling",
			"release_date": "2017-05-26",
			"images": [{"url": "https://i.scdn.co/image/ab67616d0000b273", "width": 640, "height": 640}]
		},
		"external_ids": {"isrc": "USUM71703861"}
	}
}`

func TestCurrentlyPlayingDecoding(t *testing.T) {
	var response currentlyPlayingResponse
	if err := json.Unmarshal([]byte(currentlyPlayingTrackJSON), &response); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if response.CurrentlyPlayingType != "track" {
		t.Fatalf("currently_playing_type = %q, want track", response.CurrentlyPlayingType)
	}
	if !response.IsPlaying {
		t.Errorf("is_playing = false, want true")
	}
	if response.ProgressMs != 12345 {
		t.Errorf("progress_ms = %d, want 12345", response.ProgressMs)
	}

	meta := response.Item.toMetadata()
	if meta.URI != "spotify:track:11dFghVXANMlKmJXsNCbNl" {
		t.Errorf("URI = %q", meta.URI)
	}
	if meta.Title != "Cut To The Feeling" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.DurationMs != 207959 {
		t.Errorf("DurationMs = %d", meta.DurationMs)
	}
	if meta.ISRC != "USUM71703861" {
		t.Errorf("ISRC = %q", meta.ISRC)
	}
	if len(meta.Artists) != 1 || meta.Artists[0].Name != "Carly Rae Jepsen" {
		t.Errorf("Artists = %+v", meta.Artists)
	}
	if meta.Album.Title != "Cut To The Feeling" {
		t.Errorf("Album.Title = %q", meta.Album.Title)
	}
	if meta.Album.ImageURL == "" {
		t.Errorf("Album.ImageURL empty, want first image")
	}
	if meta.Album.ReleaseDate != "2017-05-26" {
		t.Errorf("Album.ReleaseDate = %q", meta.Album.ReleaseDate)
	}
}

func TestNonTrackItemsRejected(t *testing.T) {
	payloads := []struct {
		name string
		body string
	}{
		{
			name: "episode",
			body: `{"currently_playing_type": "episode", "is_playing": true, "progress_ms": 100, "item": null}`,
		},
		{
			name: "ad",
			body: `{"currently_playing_type": "ad", "is_playing": true, "progress_ms": 0, "item": null}`,
		},
		{
			name: "unknown with null item",
			body: `{"currently_playing_type": "unknown", "is_playing": false, "item": null}`,
		},
	}

	for _, tt := range payloads {
		t.Run(tt.name, func(t *testing.T) {
			var response currentlyPlayingResponse
			if err := json.Unmarshal([]byte(tt.body), &response); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if response.CurrentlyPlayingType == "track" && response.Item != nil {
				t.Fatalf("payload should not model a track")
			}
		})
	}
}
