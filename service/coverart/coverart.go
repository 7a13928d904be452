package coverart

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://coverartarchive.org"

// Client fetches release art from the Cover Art Archive. The archive is rate
// limited more gently than the main API and sits behind a CDN, so requests
// bypass the serialized MusicBrainz queue. Failures never propagate; a fetch
// that goes wrong just means "no image".
type Client struct {
	rest    *resty.Client
	limiter *rate.Limiter
	mu      sync.Mutex
	cache   map[string]string // release mbid -> url, "" = no art
	logger  *log.Logger
}

func NewClient(userAgent string, minInterval time.Duration) *Client {
	if minInterval <= 0 {
		minInterval = 250 * time.Millisecond
	}

	rest := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("User-Agent", userAgent).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusServiceUnavailable
		})

	return &Client{
		rest:    rest,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		cache:   make(map[string]string),
		logger:  log.New(os.Stdout, "coverart: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Reset drops the memoized URLs; called alongside the resolver cache at the
// start of each worker cycle.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]string)
}

type coverArtResponse struct {
	Images []coverImage `json:"images"`
}

type coverImage struct {
	Front      bool              `json:"front"`
	Image      string            `json:"image"`
	Thumbnails map[string]string `json:"thumbnails"`
}

// FrontCoverURL returns the best front-cover URL for a release, or "" when
// the archive has none. Thumbnails are preferred large-to-small before
// falling back to the full image.
func (c *Client) FrontCoverURL(ctx context.Context, releaseMBID string) string {
	c.mu.Lock()
	cached, ok := c.cache[releaseMBID]
	c.mu.Unlock()
	if ok {
		return cached
	}

	url := c.fetch(ctx, releaseMBID)

	c.mu.Lock()
	c.cache[releaseMBID] = url
	c.mu.Unlock()
	return url
}

func (c *Client) fetch(ctx context.Context, releaseMBID string) string {
	if err := c.limiter.Wait(ctx); err != nil {
		return ""
	}

	var result coverArtResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetPathParam("mbid", releaseMBID).
		Get("/release/{mbid}")
	if err != nil {
		c.logger.Printf("cover fetch for %s failed: %v", releaseMBID, err)
		return ""
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ""
	}
	if !resp.IsSuccess() {
		c.logger.Printf("cover fetch for %s returned status %d", releaseMBID, resp.StatusCode())
		return ""
	}

	return pickImage(result.Images)
}

func pickImage(images []coverImage) string {
	var chosen *coverImage
	for i := range images {
		if images[i].Front {
			chosen = &images[i]
			break
		}
	}
	if chosen == nil && len(images) > 0 {
		chosen = &images[0]
	}
	if chosen == nil {
		return ""
	}

	for _, size := range []string{"1200", "500", "large", "250"} {
		if url := chosen.Thumbnails[size]; url != "" {
			return url
		}
	}
	return chosen.Image
}
