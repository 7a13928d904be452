// Package enrichment drains the database-backed job queue: resolving
// external identifiers, syncing metadata, and deriving group memberships
// through the rate-limited metadata client.
package enrichment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/catalog"
	"github.com/Ulo03/playbacc/service/coverart"
	"github.com/Ulo03/playbacc/service/musicbrainz"
	"github.com/Ulo03/playbacc/util/mbdate"
)

type Config struct {
	BatchSize         int
	MaxAttempts       int
	LeaseTimeout      time.Duration
	BackoffBase       time.Duration
	BackoffMultiplier float64
	BackoffCap        time.Duration
	JobDelay          time.Duration
	PollInterval      time.Duration
	ReapInterval      time.Duration
	JobTTL            time.Duration
}

func ConfigFromViper() Config {
	return Config{
		BatchSize:         viper.GetInt("enrichment.batch_size"),
		MaxAttempts:       viper.GetInt("enrichment.max_attempts"),
		LeaseTimeout:      time.Duration(viper.GetInt("enrichment.lease_timeout_ms")) * time.Millisecond,
		BackoffBase:       time.Duration(viper.GetInt("enrichment.backoff_base_ms")) * time.Millisecond,
		BackoffMultiplier: viper.GetFloat64("enrichment.backoff_multiplier"),
		BackoffCap:        time.Duration(viper.GetInt("enrichment.backoff_cap_ms")) * time.Millisecond,
		JobDelay:          time.Duration(viper.GetInt("enrichment.job_delay_ms")) * time.Millisecond,
		PollInterval:      time.Duration(viper.GetInt("enrichment.poll_interval_ms")) * time.Millisecond,
		ReapInterval:      time.Duration(viper.GetInt("enrichment.reap_interval_ms")) * time.Millisecond,
		JobTTL:            time.Duration(viper.GetInt("enrichment.job_ttl_ms")) * time.Millisecond,
	}
}

type Worker struct {
	DB      *db.DB
	mb      *musicbrainz.Service
	covers  *coverart.Client
	catalog *catalog.Service
	cfg     Config
	id      string
	logger  *log.Logger
}

func NewWorker(database *db.DB, mb *musicbrainz.Service, covers *coverart.Client, catalogService *catalog.Service, cfg Config) *Worker {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}

	return &Worker{
		DB:      database,
		mb:      mb,
		covers:  covers,
		catalog: catalogService,
		cfg:     cfg,
		id:      fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		logger:  log.New(os.Stdout, "enrichment: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Run claims and drains job batches until the context is cancelled. The
// inter-job delay keeps the aggregate request rate comfortably inside the
// upstream limit even with several workers running.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Printf("worker %s started (batch=%d)", w.id, w.cfg.BatchSize)
	for {
		if ctx.Err() != nil {
			w.logger.Printf("worker %s stopped", w.id)
			return
		}

		// Memoized lookups live for exactly one cycle.
		w.mb.Cache().Reset()
		w.covers.Reset()

		jobs, err := w.DB.ClaimJobs(ctx, w.id, w.cfg.BatchSize, w.cfg.LeaseTimeout)
		if err != nil {
			w.logger.Printf("claim failed: %v", err)
			jobs = nil
		}

		if len(jobs) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(jitter(w.cfg.PollInterval)):
			}
			continue
		}

		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}

			w.process(ctx, job)

			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(w.cfg.JobDelay)):
			}
		}
	}
}

// RunReaper periodically deletes terminal jobs past their TTL.
func (w *Worker) RunReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(w.cfg.ReapInterval)):
		}

		reaped, err := w.DB.ReapJobs(ctx, w.cfg.JobTTL)
		if err != nil {
			w.logger.Printf("reap failed: %v", err)
			continue
		}
		if reaped > 0 {
			w.logger.Printf("reaped %d terminal jobs", reaped)
		}
	}
}

func (w *Worker) process(ctx context.Context, job *models.EnrichmentJob) {
	var err error
	switch job.Kind {
	case models.JobArtistResolveMBID:
		err = w.artistResolveMBID(ctx, job.EntityID)
	case models.JobArtistSyncRelationships:
		err = w.artistSyncRelationships(ctx, job.EntityID)
	case models.JobAlbumResolveMBID:
		err = w.albumResolveMBID(ctx, job.EntityID)
	case models.JobAlbumSync:
		err = w.albumSync(ctx, job.EntityID)
	case models.JobTrackResolveMBID:
		err = w.trackResolveMBID(ctx, job.EntityID)
	case models.JobTrackSync:
		err = w.trackSync(ctx, job.EntityID)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if err != nil {
		w.logger.Printf("job %s (%s) attempt %d failed: %v", job.ID, job.Kind, job.Attempts+1, err)
		if failErr := w.DB.FailJob(ctx, job, err.Error(), w.cfg.BackoffBase, w.cfg.BackoffMultiplier, w.cfg.BackoffCap); failErr != nil {
			w.logger.Printf("failed to record job failure for %s: %v", job.ID, failErr)
		}
		return
	}

	if err := w.DB.CompleteJob(ctx, job); err != nil {
		w.logger.Printf("failed to complete job %s: %v", job.ID, err)
	}
}

// --- artist jobs ---

func (w *Worker) artistResolveMBID(ctx context.Context, artistID uuid.UUID) error {
	artist, err := w.DB.GetArtistByID(ctx, artistID)
	if err != nil {
		return err
	}
	if artist == nil {
		return fmt.Errorf("artist %s not found", artistID)
	}
	if artist.MBID != nil {
		return nil // already resolved
	}

	match, err := w.mb.SearchArtist(ctx, artist.Name)
	if err != nil {
		return err
	}
	if match == nil {
		return fmt.Errorf("no match for artist %q", artist.Name)
	}

	if err := w.DB.AttachArtistMBID(ctx, artist.ID, match.ID); err != nil {
		return err
	}

	// A freshly attached mbid makes the relationships graph reachable.
	_, _, err = w.DB.EnqueueJob(ctx, models.JobArtistSyncRelationships, models.EntityArtist, artist.ID, 0, w.cfg.MaxAttempts)
	return err
}

func (w *Worker) artistSyncRelationships(ctx context.Context, artistID uuid.UUID) error {
	artist, err := w.DB.GetArtistByID(ctx, artistID)
	if err != nil {
		return err
	}
	if artist == nil {
		return fmt.Errorf("artist %s not found", artistID)
	}
	if artist.MBID == nil {
		return fmt.Errorf("artist %q has no mbid", artist.Name)
	}

	remote, err := w.mb.GetArtist(ctx, *artist.MBID)
	if err != nil {
		return err
	}
	if remote == nil {
		return fmt.Errorf("artist %s not found upstream", *artist.MBID)
	}

	applyArtistDetails(artist, remote)
	if err := w.DB.UpdateArtistDetails(ctx, artist); err != nil {
		return err
	}

	isGroup := artist.Type != nil && *artist.Type == models.ArtistTypeGroup

	for _, rel := range remote.Relations {
		if rel.Type != musicbrainz.RelationMemberOfBand || rel.Artist == nil {
			continue
		}

		// Both endpoints of the edge must exist before the edge itself.
		counterpart, err := w.catalog.UpsertArtist(ctx, rel.Artist.Name, &rel.Artist.ID)
		if err != nil {
			return err
		}

		memberID, groupID := artist.ID, counterpart.ID
		if isGroup {
			memberID, groupID = counterpart.ID, artist.ID
		}

		if err := w.upsertMembershipStint(ctx, memberID, groupID, rel.Begin, rel.End, rel.Ended); err != nil {
			return err
		}
	}

	return nil
}

func applyArtistDetails(artist *models.Artist, remote *musicbrainz.Artist) {
	if remote.Type != "" {
		t := strings.ToLower(remote.Type)
		artist.Type = &t
	}
	if remote.Gender != "" {
		g := strings.ToLower(remote.Gender)
		artist.Gender = &g
	}
	if remote.LifeSpan != nil {
		if remote.LifeSpan.Begin != "" {
			b := remote.LifeSpan.Begin
			artist.BeginDateRaw = &b
		}
		if remote.LifeSpan.End != "" {
			e := remote.LifeSpan.End
			artist.EndDateRaw = &e
		}
	}
}

// --- album jobs ---

func (w *Worker) albumResolveMBID(ctx context.Context, albumID uuid.UUID) error {
	album, err := w.DB.GetAlbumByID(ctx, albumID)
	if err != nil {
		return err
	}
	if album == nil {
		return fmt.Errorf("album %s not found", albumID)
	}
	if album.MBID != nil {
		return nil
	}

	artist, err := w.DB.GetArtistByID(ctx, album.ArtistID)
	if err != nil {
		return err
	}
	artistName := ""
	if artist != nil {
		artistName = artist.Name
	}

	match, err := w.mb.SearchRelease(ctx, album.Title, artistName)
	if err != nil {
		return err
	}
	if match == nil {
		return fmt.Errorf("no match for album %q by %q", album.Title, artistName)
	}

	if err := w.DB.AttachAlbumMBID(ctx, album.ID, match.ID); err != nil {
		return err
	}

	_, _, err = w.DB.EnqueueJob(ctx, models.JobAlbumSync, models.EntityAlbum, album.ID, 0, w.cfg.MaxAttempts)
	return err
}

func (w *Worker) albumSync(ctx context.Context, albumID uuid.UUID) error {
	album, err := w.DB.GetAlbumByID(ctx, albumID)
	if err != nil {
		return err
	}
	if album == nil {
		return fmt.Errorf("album %s not found", albumID)
	}
	if album.MBID == nil {
		return fmt.Errorf("album %q has no mbid", album.Title)
	}

	release, err := w.mb.GetRelease(ctx, *album.MBID)
	if err != nil {
		return err
	}
	if release == nil {
		return fmt.Errorf("release %s not found upstream", *album.MBID)
	}

	releaseDate := mbdate.Normalize(release.Date)
	titleChanged := release.Title != "" && release.Title != album.Title
	dateChanged := releaseDate != nil && (album.ReleaseDate == nil || !album.ReleaseDate.Equal(*releaseDate))
	if titleChanged || dateChanged {
		title := album.Title
		if titleChanged {
			title = release.Title
		}
		date := album.ReleaseDate
		if dateChanged {
			date = releaseDate
		}
		if err := w.DB.UpdateAlbum(ctx, album.ID, title, date); err != nil {
			return err
		}
	}

	if album.ImageURL == nil {
		if url := w.covers.FrontCoverURL(ctx, *album.MBID); url != "" {
			if err := w.DB.SetAlbumImage(ctx, album.ID, url); err != nil {
				return err
			}
		}
	}

	return nil
}

// --- track jobs ---

func (w *Worker) trackResolveMBID(ctx context.Context, trackID uuid.UUID) error {
	track, err := w.DB.GetTrackByID(ctx, trackID)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("track %s not found", trackID)
	}
	if track.MBID != nil {
		return nil
	}

	var recording *musicbrainz.Recording
	if track.ISRC != nil {
		recording, err = w.mb.LookupRecordingByISRC(ctx, *track.ISRC)
		if err != nil {
			return err
		}
	}
	if recording == nil {
		artist, err := w.DB.GetPrimaryArtistForTrack(ctx, track.ID)
		if err != nil {
			return err
		}
		artistName := ""
		if artist != nil {
			artistName = artist.Name
		}
		recording, err = w.mb.SearchRecording(ctx, track.Title, artistName, "")
		if err != nil {
			return err
		}
	}
	if recording == nil {
		return fmt.Errorf("no match for track %q", track.Title)
	}

	if err := w.DB.AttachTrackMBID(ctx, track.ID, recording.ID); err != nil {
		return err
	}

	_, _, err = w.DB.EnqueueJob(ctx, models.JobTrackSync, models.EntityTrack, track.ID, 0, w.cfg.MaxAttempts)
	return err
}

func (w *Worker) trackSync(ctx context.Context, trackID uuid.UUID) error {
	track, err := w.DB.GetTrackByID(ctx, trackID)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("track %s not found", trackID)
	}
	if track.MBID == nil {
		return fmt.Errorf("track %q has no mbid", track.Title)
	}

	recording, err := w.mb.GetRecording(ctx, *track.MBID)
	if err != nil {
		return err
	}
	if recording == nil {
		return fmt.Errorf("recording %s not found upstream", *track.MBID)
	}

	changed := false
	if recording.Title != "" && recording.Title != track.Title {
		track.Title = recording.Title
		changed = true
	}
	if recording.Length > 0 && (track.DurationMs == nil || *track.DurationMs != recording.Length) {
		length := recording.Length
		track.DurationMs = &length
		changed = true
	}
	if track.ISRC == nil && len(recording.ISRCs) > 0 {
		isrc := recording.ISRCs[0]
		track.ISRC = &isrc
		changed = true
	}

	if changed {
		return w.DB.UpdateTrackDetails(ctx, track)
	}
	return nil
}

func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + rand.Float64()*0.2))
}
