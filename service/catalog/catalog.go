// Package catalog is the canonical upsert layer. Artists, albums, and tracks
// are shared across users, created when first observed and never deleted;
// every upsert is idempotent and matches by external id before natural key.
package catalog

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/musicbrainz"
	"github.com/Ulo03/playbacc/util/mbdate"
)

type Service struct {
	DB     *db.DB
	mb     *musicbrainz.Service
	logger *log.Logger
}

func NewService(database *db.DB, mb *musicbrainz.Service) *Service {
	return &Service{
		DB:     database,
		mb:     mb,
		logger: log.New(os.Stdout, "catalog: ", log.LstdFlags|log.Lmsgprefix),
	}
}

func (s *Service) maxAttempts() int {
	n := viper.GetInt("enrichment.max_attempts")
	if n <= 0 {
		n = 5
	}
	return n
}

// enqueue fires an enrichment job without caring whether one already exists.
func (s *Service) enqueue(ctx context.Context, kind, entityKind string, entityID uuid.UUID) {
	if _, _, err := s.DB.EnqueueJob(ctx, kind, entityKind, entityID, 0, s.maxAttempts()); err != nil {
		s.logger.Printf("failed to enqueue %s for %s %s: %v", kind, entityKind, entityID, err)
	}
}

// UpsertArtist matches by MBID when provided, else by exact name. When an
// existing row gains an MBID, the id is attached and a relationships sync is
// queued; artists created without one get a resolve job instead.
func (s *Service) UpsertArtist(ctx context.Context, name string, mbid *string) (*models.Artist, error) {
	if mbid != nil && *mbid != "" {
		artist, err := s.DB.GetArtistByMBID(ctx, *mbid)
		if err != nil {
			return nil, err
		}
		if artist != nil {
			return artist, nil
		}
	}

	artist, err := s.DB.GetArtistByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if artist != nil {
		if artist.MBID == nil && mbid != nil && *mbid != "" {
			if err := s.DB.AttachArtistMBID(ctx, artist.ID, *mbid); err != nil {
				return nil, err
			}
			artist.MBID = mbid
			s.enqueue(ctx, models.JobArtistSyncRelationships, models.EntityArtist, artist.ID)
		}
		return artist, nil
	}

	artist = &models.Artist{Name: name}
	if mbid != nil && *mbid != "" {
		artist.MBID = mbid
	}
	if err := s.DB.InsertArtist(ctx, artist); err != nil {
		return nil, err
	}

	if artist.MBID != nil {
		s.enqueue(ctx, models.JobArtistSyncRelationships, models.EntityArtist, artist.ID)
	} else {
		s.enqueue(ctx, models.JobArtistResolveMBID, models.EntityArtist, artist.ID)
	}
	return artist, nil
}

// UpsertAlbum matches by MBID, else by (primary artist, title).
func (s *Service) UpsertAlbum(ctx context.Context, title string, artistID uuid.UUID, mbid *string, releaseDate *time.Time, imageURL *string) (*models.Album, error) {
	if mbid != nil && *mbid != "" {
		album, err := s.DB.GetAlbumByMBID(ctx, *mbid)
		if err != nil {
			return nil, err
		}
		if album != nil {
			return album, nil
		}
	}

	album, err := s.DB.GetAlbumByArtistAndTitle(ctx, artistID, title)
	if err != nil {
		return nil, err
	}

	if album != nil {
		if album.MBID == nil && mbid != nil && *mbid != "" {
			if err := s.DB.AttachAlbumMBID(ctx, album.ID, *mbid); err != nil {
				return nil, err
			}
			album.MBID = mbid
		}
		return album, nil
	}

	album = &models.Album{
		ArtistID:    artistID,
		Title:       title,
		ReleaseDate: releaseDate,
		ImageURL:    imageURL,
	}
	if mbid != nil && *mbid != "" {
		album.MBID = mbid
	}
	if err := s.DB.InsertAlbum(ctx, album); err != nil {
		return nil, err
	}

	if album.MBID != nil {
		s.enqueue(ctx, models.JobAlbumSync, models.EntityAlbum, album.ID)
	} else {
		s.enqueue(ctx, models.JobAlbumResolveMBID, models.EntityAlbum, album.ID)
	}
	return album, nil
}

// TrackInput is what UpsertTrack needs to canonicalize a track.
type TrackInput struct {
	Title             string
	DurationMs        *int64
	MBID              *string
	ISRC              *string
	Explicit          bool
	PrimaryArtistName string // last-resort natural key when no ISRC is given and no MBID matched
}

// UpsertTrack matches by ISRC, then by MBID, then, only when no ISRC is
// given, by (title, primary artist). A newly available MBID is back-attached.
func (s *Service) UpsertTrack(ctx context.Context, in TrackInput) (*models.Track, error) {
	var track *models.Track
	var err error

	if in.ISRC != nil && *in.ISRC != "" {
		track, err = s.DB.GetTrackByISRC(ctx, *in.ISRC)
		if err != nil {
			return nil, err
		}
	}
	if track == nil && in.MBID != nil && *in.MBID != "" {
		track, err = s.DB.GetTrackByMBID(ctx, *in.MBID)
		if err != nil {
			return nil, err
		}
	}
	if track == nil && (in.ISRC == nil || *in.ISRC == "") && in.PrimaryArtistName != "" {
		track, err = s.DB.GetTrackByTitleAndArtist(ctx, in.Title, in.PrimaryArtistName)
		if err != nil {
			return nil, err
		}
	}

	if track != nil {
		if track.MBID == nil && in.MBID != nil && *in.MBID != "" {
			if err := s.DB.AttachTrackMBID(ctx, track.ID, *in.MBID); err != nil {
				return nil, err
			}
			track.MBID = in.MBID
		}
		return track, nil
	}

	track = &models.Track{
		Title:      in.Title,
		DurationMs: in.DurationMs,
		Explicit:   in.Explicit,
	}
	if in.MBID != nil && *in.MBID != "" {
		track.MBID = in.MBID
	}
	if in.ISRC != nil && *in.ISRC != "" {
		track.ISRC = in.ISRC
	}
	if err := s.DB.InsertTrack(ctx, track); err != nil {
		return nil, err
	}

	if track.MBID != nil {
		s.enqueue(ctx, models.JobTrackSync, models.EntityTrack, track.ID)
	} else {
		s.enqueue(ctx, models.JobTrackResolveMBID, models.EntityTrack, track.ID)
	}
	return track, nil
}

// Credit is one artist credit to link to a track.
type Credit struct {
	Name       string
	MBID       *string
	IsPrimary  bool
	Position   int
	JoinPhrase string
}

// LinkTrackArtists upserts each credited artist and inserts the missing
// links.
func (s *Service) LinkTrackArtists(ctx context.Context, trackID uuid.UUID, credits []Credit) error {
	for _, credit := range credits {
		artist, err := s.UpsertArtist(ctx, credit.Name, credit.MBID)
		if err != nil {
			return err
		}
		err = s.DB.LinkTrackArtist(ctx, &models.TrackArtist{
			TrackID:    trackID,
			ArtistID:   artist.ID,
			IsPrimary:  credit.IsPrimary,
			Position:   credit.Position,
			JoinPhrase: credit.JoinPhrase,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) LinkTrackAlbum(ctx context.Context, trackID, albumID uuid.UUID) error {
	return s.DB.LinkTrackAlbum(ctx, &models.TrackAlbum{TrackID: trackID, AlbumID: albumID})
}

// StoredTrack is the outcome of resolving and persisting one played track.
type StoredTrack struct {
	TrackID uuid.UUID
	AlbumID *uuid.UUID
}

// ResolveAndStore runs the full ingest path for a provider track snapshot:
// resolve against the metadata service (ISRC first, then search), merge the
// result with the provider's view, then upsert and link everything. A failed
// or low-confidence resolution falls back to provider data alone.
func (s *Service) ResolveAndStore(ctx context.Context, meta *models.TrackMetadata) (*StoredTrack, error) {
	var recording *musicbrainz.Recording

	if s.mb != nil {
		var err error
		recording, err = s.resolveRecording(ctx, meta)
		if err != nil {
			// Resolution errors degrade to provider-only data; the sync jobs
			// queued on insert will try again later.
			s.logger.Printf("metadata resolution for %q failed: %v", meta.Title, err)
			recording = nil
		}
	}

	credits := buildCredits(meta, recording)

	// Primary artist first; the album hangs off it.
	primary, err := s.UpsertArtist(ctx, credits[0].Name, credits[0].MBID)
	if err != nil {
		return nil, err
	}

	trackIn := TrackInput{
		Title:             meta.Title,
		Explicit:          meta.Explicit,
		PrimaryArtistName: credits[0].Name,
	}
	if meta.DurationMs > 0 {
		d := meta.DurationMs
		trackIn.DurationMs = &d
	}
	if meta.ISRC != "" {
		isrc := meta.ISRC
		trackIn.ISRC = &isrc
	}
	if recording != nil {
		mbid := recording.ID
		trackIn.MBID = &mbid
		if trackIn.ISRC == nil && len(recording.ISRCs) > 0 {
			isrc := recording.ISRCs[0]
			trackIn.ISRC = &isrc
		}
		if trackIn.DurationMs == nil && recording.Length > 0 {
			d := recording.Length
			trackIn.DurationMs = &d
		}
	}

	track, err := s.UpsertTrack(ctx, trackIn)
	if err != nil {
		return nil, err
	}

	if err := s.LinkTrackArtists(ctx, track.ID, credits); err != nil {
		return nil, err
	}

	stored := &StoredTrack{TrackID: track.ID}

	if meta.Album.Title != "" {
		var albumMBID *string
		if recording != nil && len(recording.Releases) > 0 {
			id := recording.Releases[0].ID
			albumMBID = &id
		}
		var imageURL *string
		if meta.Album.ImageURL != "" {
			u := meta.Album.ImageURL
			imageURL = &u
		}
		album, err := s.UpsertAlbum(ctx, meta.Album.Title, primary.ID, albumMBID, mbdate.Normalize(meta.Album.ReleaseDate), imageURL)
		if err != nil {
			return nil, err
		}
		if err := s.LinkTrackAlbum(ctx, track.ID, album.ID); err != nil {
			return nil, err
		}
		stored.AlbumID = &album.ID
	}

	return stored, nil
}

func (s *Service) resolveRecording(ctx context.Context, meta *models.TrackMetadata) (*musicbrainz.Recording, error) {
	if meta.ISRC != "" {
		rec, err := s.mb.LookupRecordingByISRC(ctx, meta.ISRC)
		if err != nil || rec != nil {
			return rec, err
		}
	}

	artistName := ""
	if len(meta.Artists) > 0 {
		artistName = meta.Artists[0].Name
	}
	return s.mb.SearchRecording(ctx, meta.Title, artistName, meta.Album.Title)
}

// buildCredits prefers the metadata service's credit list (it carries MBIDs
// and join phrases) and falls back to the provider's artists. The result is
// never empty.
func buildCredits(meta *models.TrackMetadata, recording *musicbrainz.Recording) []Credit {
	if recording != nil && len(recording.ArtistCredit) > 0 {
		credits := make([]Credit, 0, len(recording.ArtistCredit))
		for i, ac := range recording.ArtistCredit {
			mbid := ac.Artist.ID
			name := ac.Name
			if name == "" {
				name = ac.Artist.Name
			}
			credits = append(credits, Credit{
				Name:       name,
				MBID:       &mbid,
				IsPrimary:  i == 0,
				Position:   i,
				JoinPhrase: ac.JoinPhrase,
			})
		}
		return credits
	}

	credits := make([]Credit, 0, len(meta.Artists))
	for i, a := range meta.Artists {
		credits = append(credits, Credit{
			Name:      a.Name,
			IsPrimary: i == 0,
			Position:  i,
		})
	}
	if len(credits) == 0 {
		credits = append(credits, Credit{Name: "Unknown Artist", IsPrimary: true})
	}
	return credits
}
