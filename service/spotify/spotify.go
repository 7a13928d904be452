package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/models"
)

const (
	Provider = "spotify"

	apiBaseURL = "https://api.spotify.com/v1"
	tokenURL   = "https://accounts.spotify.com/api/token"
)

// Service talks to the Spotify Web API on behalf of linked accounts and owns
// the token lifecycle: expiry is stored as absolute epoch seconds and a token
// inside the safety margin is refreshed before use.
type Service struct {
	DB           *db.DB
	httpClient   *http.Client
	oauthCfg     *oauth2.Config
	safetyMargin time.Duration
	logger       *log.Logger
}

func NewService(database *db.DB) *Service {
	logger := log.New(os.Stdout, "spotify: ", log.LstdFlags|log.Lmsgprefix)

	cfg := &oauth2.Config{
		ClientID:     viper.GetString("spotify.client_id"),
		ClientSecret: viper.GetString("spotify.client_secret"),
		Endpoint:     spotifyauth.Endpoint,
		RedirectURL:  viper.GetString("callback.spotify"),
		Scopes:       strings.Fields(viper.GetString("spotify.scopes")),
	}

	return &Service{
		DB:           database,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		oauthCfg:     cfg,
		safetyMargin: time.Duration(viper.GetInt("spotify.token_safety_margin_seconds")) * time.Second,
		logger:       logger,
	}
}

// AuthCodeURL builds the provider consent URL for account linking.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token set.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthCfg.Exchange(ctx, code)
}

// Scopes returns the scope string granted to new accounts.
func (s *Service) Scopes() string {
	return strings.Join(s.oauthCfg.Scopes, " ")
}

// GetValidAccessToken returns a live access token for the account, refreshing
// and persisting it first when expiry is inside the safety margin. A refresh
// failure is terminal for this request but must not take down the calling
// loop; other accounts continue.
func (s *Service) GetValidAccessToken(ctx context.Context, account *models.Account) (string, error) {
	if !account.Expired(time.Now().UTC(), s.safetyMargin) {
		return account.AccessToken, nil
	}
	return s.refreshToken(ctx, account)
}

func (s *Service) refreshToken(ctx context.Context, account *models.Account) (string, error) {
	if account.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token available for account %s", account.ID)
	}

	clientID := s.oauthCfg.ClientID
	clientSecret := s.oauthCfg.ClientSecret
	if clientID == "" || clientSecret == "" {
		return "", errors.New("spotify client ID or secret not configured")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", account.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}

	authHeader := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	req.Header.Set("Authorization", "Basic "+authHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("failed to read refresh response body: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token refresh failed (%d): %s", resp.StatusCode, string(body))
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		ExpiresIn    int64  `json:"expires_in"`              // Seconds
		RefreshToken string `json:"refresh_token,omitempty"` // Spotify might issue a new refresh token
	}

	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}

	newExpiry := time.Now().UTC().Unix() + tokenResponse.ExpiresIn
	newRefreshToken := account.RefreshToken // keep the old one unless rotated
	if tokenResponse.RefreshToken != "" {
		newRefreshToken = tokenResponse.RefreshToken
	}

	if err := s.DB.UpdateAccountTokens(ctx, account.ID, tokenResponse.AccessToken, newRefreshToken, newExpiry); err != nil {
		// Log and continue; the token in memory is still usable this cycle.
		s.logger.Printf("Error persisting refreshed token for account %s: %v", account.ID, err)
	}

	account.AccessToken = tokenResponse.AccessToken
	account.RefreshToken = newRefreshToken
	account.ExpiresAt = newExpiry

	s.logger.Printf("Refreshed token for account %s", account.ID)
	return tokenResponse.AccessToken, nil
}

// Profile fetches the provider identity for the token's owner.
func (s *Service) Profile(ctx context.Context, token string) (*Profile, error) {
	body, err := s.apiGet(ctx, token, "/me")
	if err != nil {
		return nil, err
	}

	profile := &Profile{}
	if err := json.Unmarshal(body, profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

// CurrentlyPlaying polls the playback endpoint. A 204 means nothing is
// playing; a non-track item (episode, ad) is reported but not modeled.
func (s *Service) CurrentlyPlaying(ctx context.Context, token string) (*Poll, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiBaseURL+"/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute currently-playing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &Poll{Kind: PollNoContent}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("spotify API error (%d): %s", resp.StatusCode, body)
	}

	var response currentlyPlayingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode currently-playing response: %w", err)
	}

	if response.CurrentlyPlayingType != "track" || response.Item == nil {
		return &Poll{Kind: PollNotATrack, Timestamp: response.Timestamp}, nil
	}

	return &Poll{
		Kind:       PollTrack,
		ProgressMs: response.ProgressMs,
		IsPlaying:  response.IsPlaying,
		Timestamp:  response.Timestamp,
		Track:      response.Item.toMetadata(),
	}, nil
}

// RecentlyPlayed fetches plays strictly after the given cursor, newest first
// as the provider returns them. The provider caps the page at 50 items.
func (s *Service) RecentlyPlayed(ctx context.Context, token string, after time.Time, limit int) ([]PlayedItem, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	endpoint := apiBaseURL + "/me/player/recently-played?limit=" + strconv.Itoa(limit)
	if !after.IsZero() {
		endpoint += "&after=" + strconv.FormatInt(after.UnixMilli(), 10)
	}

	body, err := s.apiGet(ctx, token, strings.TrimPrefix(endpoint, apiBaseURL))
	if err != nil {
		return nil, err
	}

	var response recentlyPlayedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode recently-played response: %w", err)
	}

	items := make([]PlayedItem, 0, len(response.Items))
	for _, item := range response.Items {
		playedAt, err := time.Parse(time.RFC3339Nano, item.PlayedAt)
		if err != nil {
			s.logger.Printf("skipping play with unparseable played_at %q: %v", item.PlayedAt, err)
			continue
		}
		items = append(items, PlayedItem{
			Track:    *item.Track.toMetadata(),
			PlayedAt: playedAt.UTC(),
		})
	}
	return items, nil
}

func (s *Service) apiGet(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute spotify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("spotify API error (%d): %s", resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}
