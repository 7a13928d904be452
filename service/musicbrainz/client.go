package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// ErrNotFound is the domain "no such entity" value the client returns for a
// 404; the service turns it into a nil result rather than a failure.
var ErrNotFound = errors.New("musicbrainz: not found")

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// Client is the single gate through which every MusicBrainz request passes.
// The mutex serializes dispatch and the limiter enforces the minimum
// inter-request interval, so the aggregate rate stays within the upstream
// limit no matter how many loops share the client.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	mu          sync.Mutex
	userAgent   string
	baseURL     string
	maxAttempts int
	logger      *log.Logger
}

func NewClient(userAgent string, minInterval time.Duration, maxAttempts int) (*Client, error) {
	if userAgent == "" {
		return nil, errors.New("musicbrainz: a User-Agent is required")
	}
	if minInterval <= 0 {
		minInterval = 1100 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		userAgent:   userAgent,
		baseURL:     defaultBaseURL,
		maxAttempts: maxAttempts,
		logger:      log.New(os.Stdout, "musicbrainz: ", log.LstdFlags|log.Lmsgprefix),
	}, nil
}

// get performs a serialized GET against the API, retrying 503s and transient
// network failures with capped exponential backoff. 404 maps to ErrNotFound;
// any other non-2xx status is returned to the caller without retry.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	endpoint := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.logger.Printf("retrying %s in %s (attempt %d/%d): %v", path, delay, attempt+1, c.maxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, retryable, err := c.doOnce(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("musicbrainz request to %s failed after %d attempts: %w", path, c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, isTransient(err), fmt.Errorf("failed to execute request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, true, fmt.Errorf("musicbrainz returned 503 for %s", endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, fmt.Errorf("musicbrainz request to %s returned status %d", endpoint, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	return b, false, nil
}

// backoffDelay is base * 2^(attempt-1) capped at the max, with ±20% jitter.
func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(float64(delay) * jitter)
}

// isTransient reports whether a network error is worth retrying: timeouts,
// refused/reset connections, DNS failures.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
