package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ulo03/playbacc/models"
	"github.com/Ulo03/playbacc/service/enrichment"
	"github.com/Ulo03/playbacc/service/spotify"
	"github.com/Ulo03/playbacc/session"
)

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (app *application) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("visit <a href='/login/spotify'>/login/spotify</a> to link your account"))
}

// --- OAuth account linking ---

// oauthStates holds outstanding login states for the few minutes between
// redirect and callback.
var oauthStates = struct {
	sync.Mutex
	m map[string]time.Time
}{m: make(map[string]time.Time)}

func newOAuthState() string {
	b := make([]byte, 24)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)

	oauthStates.Lock()
	defer oauthStates.Unlock()
	now := time.Now()
	for s, created := range oauthStates.m {
		if now.Sub(created) > 10*time.Minute {
			delete(oauthStates.m, s)
		}
	}
	oauthStates.m[state] = now
	return state
}

func takeOAuthState(state string) bool {
	oauthStates.Lock()
	defer oauthStates.Unlock()
	_, ok := oauthStates.m[state]
	delete(oauthStates.m, state)
	return ok
}

func (app *application) handleSpotifyLogin(w http.ResponseWriter, r *http.Request) {
	url := app.spotifyService.AuthCodeURL(newOAuthState())
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (app *application) handleSpotifyCallback(w http.ResponseWriter, r *http.Request) {
	if !takeOAuthState(r.URL.Query().Get("state")) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := app.spotifyService.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	profile, err := app.spotifyService.Profile(r.Context(), token.AccessToken)
	if err != nil {
		http.Error(w, "failed to fetch profile", http.StatusInternalServerError)
		return
	}

	// Users are created on first authentication.
	user, err := app.findOrCreateUser(r, profile)
	if err != nil {
		http.Error(w, "failed to store user", http.StatusInternalServerError)
		return
	}

	account := &models.Account{
		UserID:       user.ID,
		Provider:     spotify.Provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UTC().Unix(),
		Scope:        app.spotifyService.Scopes(),
		ExternalID:   profile.ID,
	}
	if err := app.database.UpsertAccount(r.Context(), account); err != nil {
		http.Error(w, "failed to link account", http.StatusInternalServerError)
		return
	}

	apiToken, err := app.sessionManager.CreateToken(user.ID)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"token": apiToken,
		"user":  user,
	})
}

func (app *application) findOrCreateUser(r *http.Request, profile *spotify.Profile) (*models.User, error) {
	if account, err := app.database.GetAccountByExternalID(r.Context(), spotify.Provider, profile.ID); err != nil {
		return nil, err
	} else if account != nil {
		return app.database.GetUserByID(r.Context(), account.UserID)
	}

	if user, err := app.database.GetUserByEmail(r.Context(), profile.Email); err != nil || user != nil {
		return user, err
	}

	user := &models.User{Email: profile.Email}
	if profile.DisplayName != "" {
		name := profile.DisplayName
		user.Username = &name
	}
	if err := app.database.CreateUser(r.Context(), user); err != nil {
		return nil, err
	}
	return user, nil
}

// --- listening data ---

func (app *application) handleCurrentlyPlaying(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.GetUserID(r.Context())
	if !ok {
		http.Error(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	account, err := app.database.GetAccount(r.Context(), userID, spotify.Provider)
	if err != nil || account == nil {
		http.Error(w, "no linked account", http.StatusNotFound)
		return
	}

	token, err := app.spotifyService.GetValidAccessToken(r.Context(), account)
	if err != nil {
		http.Error(w, "provider token unavailable", http.StatusBadGateway)
		return
	}

	poll, err := app.spotifyService.CurrentlyPlaying(r.Context(), token)
	if err != nil {
		http.Error(w, "provider request failed", http.StatusBadGateway)
		return
	}

	if poll.Kind != spotify.PollTrack {
		jsonResponse(w, http.StatusOK, map[string]any{"isPlaying": false})
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"isPlaying":  poll.IsPlaying,
		"progressMs": poll.ProgressMs,
		"track":      poll.Track,
	})
}

func (app *application) handleRecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.GetUserID(r.Context())
	if !ok {
		http.Error(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	entries, err := app.database.ListRecentScrobbles(r.Context(), userID, limitParam(r, 20))
	if err != nil {
		http.Error(w, "Error retrieving scrobbles", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, entries)
}

// --- dashboards ---

func (app *application) handleTopGroups(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())
	results, err := app.database.TopGroups(r.Context(), userID, limitParam(r, 20))
	if err != nil {
		http.Error(w, "Error computing top groups", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

func (app *application) handleTopSoloArtists(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())
	results, err := app.database.TopSoloArtists(r.Context(), userID, limitParam(r, 20))
	if err != nil {
		http.Error(w, "Error computing top solo artists", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

func (app *application) handleArtistDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid artist id", http.StatusBadRequest)
		return
	}

	detail, err := app.database.GetArtistDetail(r.Context(), id)
	if err != nil {
		http.Error(w, "Error retrieving artist", http.StatusInternalServerError)
		return
	}
	if detail == nil {
		http.Error(w, "artist not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}

// --- enrichment endpoints ---

// jobKindFor maps (entity kind, sync type) to the queue's job kind.
func jobKindFor(entityKind, syncType string) (string, bool) {
	switch entityKind + "/" + syncType {
	case "artist/resolve":
		return models.JobArtistResolveMBID, true
	case "artist/sync":
		return models.JobArtistSyncRelationships, true
	case "album/resolve":
		return models.JobAlbumResolveMBID, true
	case "album/sync":
		return models.JobAlbumSync, true
	case "track/resolve":
		return models.JobTrackResolveMBID, true
	case "track/sync":
		return models.JobTrackSync, true
	}
	return "", false
}

// entityMBID loads the entity and reports whether it exists and carries an
// mbid; a sync without one is a precondition failure the caller sees
// verbatim.
func (app *application) entityMBID(r *http.Request, entityKind string, id uuid.UUID) (found, hasMBID bool, err error) {
	switch entityKind {
	case "artist":
		a, err := app.database.GetArtistByID(r.Context(), id)
		return a != nil, a != nil && a.MBID != nil, err
	case "album":
		a, err := app.database.GetAlbumByID(r.Context(), id)
		return a != nil, a != nil && a.MBID != nil, err
	case "track":
		t, err := app.database.GetTrackByID(r.Context(), id)
		return t != nil, t != nil && t.MBID != nil, err
	}
	return false, false, nil
}

func (app *application) handleSyncOne(entityKind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		syncType := r.URL.Query().Get("type")
		if syncType == "" {
			syncType = "sync"
		}
		kind, ok := jobKindFor(entityKind, syncType)
		if !ok {
			http.Error(w, "type must be sync or resolve", http.StatusBadRequest)
			return
		}

		found, hasMBID, err := app.entityMBID(r, entityKind, id)
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, entityKind+" not found", http.StatusNotFound)
			return
		}
		if syncType == "sync" && !hasMBID {
			http.Error(w, "sync requested but entity has no external id", http.StatusUnprocessableEntity)
			return
		}

		// User-triggered syncs jump ahead of ingest-queued background work.
		result, err := enrichment.Enqueue(r.Context(), app.database, kind, entityKind, id, 10, app.enrichmentCfg.MaxAttempts)
		if err != nil {
			http.Error(w, "enqueue failed", http.StatusInternalServerError)
			return
		}
		jsonResponse(w, http.StatusAccepted, result)
	}
}

func (app *application) handleSyncBulk(entityKind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		syncType := r.URL.Query().Get("type")
		if syncType == "" {
			syncType = "sync"
		}
		kind, ok := jobKindFor(entityKind, syncType)
		if !ok {
			http.Error(w, "type must be sync or resolve", http.StatusBadRequest)
			return
		}

		ids, err := app.database.ListEntityIDsForBulkSync(r.Context(), entityKind, syncType == "sync", limitParam(r, 20))
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		results := make([]*enrichment.EnqueueResult, 0, len(ids))
		for _, id := range ids {
			result, err := enrichment.Enqueue(r.Context(), app.database, kind, entityKind, id, 5, app.enrichmentCfg.MaxAttempts)
			if err != nil {
				http.Error(w, "enqueue failed", http.StatusInternalServerError)
				return
			}
			results = append(results, result)
		}

		jsonResponse(w, http.StatusAccepted, map[string]any{
			"enqueued": len(results),
			"jobs":     results,
		})
	}
}

func (app *application) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.database.GetQueueStats(r.Context())
	if err != nil {
		http.Error(w, "Error retrieving queue stats", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

func (app *application) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	job, err := app.database.GetJobByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Error retrieving job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, job)
}

// limitParam clamps ?limit= to the provider-style 1..50 range.
func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 50 {
		return 50
	}
	return n
}
