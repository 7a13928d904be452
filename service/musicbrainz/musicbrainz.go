package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
)

// --- API wire types ---

type LifeSpan struct {
	Begin string `json:"begin,omitempty"` // YYYY, YYYY-MM, or YYYY-MM-DD
	End   string `json:"end,omitempty"`
	Ended bool   `json:"ended,omitempty"`
}

type Artist struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	SortName string    `json:"sort-name,omitempty"`
	Type     string    `json:"type,omitempty"` // Person, Group, Orchestra, ...
	Gender   string    `json:"gender,omitempty"`
	LifeSpan *LifeSpan `json:"life-span,omitempty"`
	// Relations is populated only with inc=artist-rels.
	Relations []Relation `json:"relations,omitempty"`
	Score     int        `json:"score,omitempty"` // search results only
}

// Relation is one edge of the artist relations graph. Membership edges carry
// type "member of band"; direction "backward" on a group means the target is
// a member, direction "forward" on a person means the target is a group.
type Relation struct {
	Type      string  `json:"type"`
	Direction string  `json:"direction"`
	Begin     string  `json:"begin,omitempty"`
	End       string  `json:"end,omitempty"`
	Ended     bool    `json:"ended,omitempty"`
	Artist    *Artist `json:"artist,omitempty"`
}

const RelationMemberOfBand = "member of band"

type ArtistCredit struct {
	Artist     Artist `json:"artist"`
	JoinPhrase string `json:"joinphrase,omitempty"`
	Name       string `json:"name"`
}

type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status,omitempty"`
	Date         string         `json:"date,omitempty"` // YYYY-MM-DD, YYYY-MM, or YYYY
	Country      string         `json:"country,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	Score        int            `json:"score,omitempty"`
}

type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int64          `json:"length,omitempty"` // milliseconds
	ISRCs        []string       `json:"isrcs,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	Releases     []Release      `json:"releases,omitempty"`
	Score        int            `json:"score,omitempty"`
}

type recordingSearchResponse struct {
	Count      int         `json:"count"`
	Recordings []Recording `json:"recordings"`
}

type artistSearchResponse struct {
	Count   int      `json:"count"`
	Artists []Artist `json:"artists"`
}

type releaseSearchResponse struct {
	Count    int       `json:"count"`
	Releases []Release `json:"releases"`
}

type isrcLookupResponse struct {
	ISRC       string      `json:"isrc"`
	Recordings []Recording `json:"recordings"`
}

// --- service ---

// Service resolves external identifiers and metadata through the serialized
// client. Lookups that find nothing return nil, not an error; search results
// below the minimum relevance score resolve to nil as well.
type Service struct {
	client   *Client
	cleaner  *Cleaner
	cache    *Cache
	minScore int
	logger   *log.Logger
}

func NewService(client *Client, minScore int) *Service {
	if minScore <= 0 {
		minScore = 80
	}
	return &Service{
		client:   client,
		cleaner:  NewCleaner(),
		cache:    NewCache(),
		minScore: minScore,
		logger:   log.New(os.Stdout, "musicbrainz: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Cache exposes the per-process memo so the enrichment worker can flush it at
// the start of each cycle.
func (s *Service) Cache() *Cache {
	return s.cache
}

// LookupRecordingByISRC resolves an ISRC to its recording, nil when the code
// is unknown.
func (s *Service) LookupRecordingByISRC(ctx context.Context, isrc string) (*Recording, error) {
	if cached, ok := s.cache.isrcHit(isrc); ok {
		if cached == "" {
			return nil, nil
		}
		return s.GetRecording(ctx, cached)
	}

	params := url.Values{}
	params.Set("inc", "artist-credits+releases+isrcs")
	body, err := s.client.get(ctx, "/isrc/"+url.PathEscape(isrc), params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache.storeISRC(isrc, "")
			return nil, nil
		}
		return nil, err
	}

	var result isrcLookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode isrc lookup: %w", err)
	}
	if len(result.Recordings) == 0 {
		s.cache.storeISRC(isrc, "")
		return nil, nil
	}

	rec := result.Recordings[0]
	s.cache.storeISRC(isrc, rec.ID)
	s.cache.storeRecording(&rec)
	return &rec, nil
}

// SearchRecording finds the best-scoring recording for a (title, artist,
// album) triple. Results under the minimum score resolve to nil.
func (s *Service) SearchRecording(ctx context.Context, title, artist, album string) (*Recording, error) {
	title = s.cleaner.CleanTitle(title)
	artist = s.cleaner.CleanArtist(artist)

	key := searchKey(title, artist, album)
	if cached, ok := s.cache.searchHit(key); ok {
		if cached == "" {
			return nil, nil
		}
		return s.GetRecording(ctx, cached)
	}

	var parts []string
	if title != "" {
		parts = append(parts, fmt.Sprintf(`recording:"%s"`, EscapeLucene(title)))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:"%s"`, EscapeLucene(artist)))
	}
	if album != "" {
		parts = append(parts, fmt.Sprintf(`release:"%s"`, EscapeLucene(album)))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one of title, artist, album must be provided")
	}

	params := url.Values{}
	params.Set("query", strings.Join(parts, " AND "))
	params.Set("limit", "5")
	body, err := s.client.get(ctx, "/recording", params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result recordingSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode recording search: %w", err)
	}
	if len(result.Recordings) == 0 {
		s.cache.storeSearch(key, "")
		return nil, nil
	}

	best := result.Recordings[0]
	if best.Score < s.minScore {
		s.logger.Printf("recording search %q by %q: best score %d below %d, resolving to no match", title, artist, best.Score, s.minScore)
		s.cache.storeSearch(key, "")
		return nil, nil
	}

	s.cache.storeSearch(key, best.ID)
	s.cache.storeRecording(&best)
	return &best, nil
}

// GetRecording fetches full recording details including credits, releases,
// and ISRCs.
func (s *Service) GetRecording(ctx context.Context, mbid string) (*Recording, error) {
	if cached, ok := s.cache.recordingHit(mbid); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("inc", "artist-credits+releases+isrcs")
	body, err := s.client.get(ctx, "/recording/"+url.PathEscape(mbid), params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache.storeRecordingMiss(mbid)
			return nil, nil
		}
		return nil, err
	}

	rec := &Recording{}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("failed to decode recording %s: %w", mbid, err)
	}
	s.cache.storeRecording(rec)
	return rec, nil
}

// GetArtist fetches an artist with its relations graph.
func (s *Service) GetArtist(ctx context.Context, mbid string) (*Artist, error) {
	params := url.Values{}
	params.Set("inc", "artist-rels")
	body, err := s.client.get(ctx, "/artist/"+url.PathEscape(mbid), params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	artist := &Artist{}
	if err := json.Unmarshal(body, artist); err != nil {
		return nil, fmt.Errorf("failed to decode artist %s: %w", mbid, err)
	}
	return artist, nil
}

// SearchArtist finds the best-scoring artist by name, nil below the score
// floor.
func (s *Service) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	name = s.cleaner.CleanArtist(name)

	params := url.Values{}
	params.Set("query", fmt.Sprintf(`artist:"%s"`, EscapeLucene(name)))
	params.Set("limit", "5")
	body, err := s.client.get(ctx, "/artist", params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result artistSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode artist search: %w", err)
	}
	if len(result.Artists) == 0 {
		return nil, nil
	}

	best := result.Artists[0]
	if best.Score < s.minScore {
		s.logger.Printf("artist search %q: best score %d below %d, resolving to no match", name, best.Score, s.minScore)
		return nil, nil
	}
	return &best, nil
}

// GetRelease fetches release details.
func (s *Service) GetRelease(ctx context.Context, mbid string) (*Release, error) {
	params := url.Values{}
	params.Set("inc", "artist-credits")
	body, err := s.client.get(ctx, "/release/"+url.PathEscape(mbid), params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	release := &Release{}
	if err := json.Unmarshal(body, release); err != nil {
		return nil, fmt.Errorf("failed to decode release %s: %w", mbid, err)
	}
	return release, nil
}

// SearchRelease finds the best-scoring release for (title, artist name).
func (s *Service) SearchRelease(ctx context.Context, title, artist string) (*Release, error) {
	title = s.cleaner.CleanTitle(title)
	artist = s.cleaner.CleanArtist(artist)

	params := url.Values{}
	params.Set("query", fmt.Sprintf(`release:"%s" AND artist:"%s"`, EscapeLucene(title), EscapeLucene(artist)))
	params.Set("limit", "5")
	body, err := s.client.get(ctx, "/release", params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result releaseSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode release search: %w", err)
	}
	if len(result.Releases) == 0 {
		return nil, nil
	}

	best := result.Releases[0]
	if best.Score < s.minScore {
		s.logger.Printf("release search %q by %q: best score %d below %d, resolving to no match", title, artist, best.Score, s.minScore)
		return nil, nil
	}
	return &best, nil
}

func searchKey(title, artist, album string) string {
	return strings.ToLower(title) + "|" + strings.ToLower(artist) + "|" + strings.ToLower(album)
}
