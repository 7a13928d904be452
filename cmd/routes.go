package main

import (
	"log"
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", app.handleHome)

	// OAuth account linking
	mux.HandleFunc("GET /login/spotify", app.handleSpotifyLogin)
	mux.HandleFunc("GET /callback/spotify", app.handleSpotifyCallback)

	auth := app.sessionManager.WithAuth

	// Listening data
	mux.HandleFunc("GET /api/v1/currently-playing", auth(app.handleCurrentlyPlaying))
	mux.HandleFunc("GET /api/v1/recently-played", auth(app.handleRecentlyPlayed))

	// Dashboards
	mux.HandleFunc("GET /api/v1/stats/top-groups", auth(app.handleTopGroups))
	mux.HandleFunc("GET /api/v1/stats/top-solo-artists", auth(app.handleTopSoloArtists))
	mux.HandleFunc("GET /api/v1/artists/{id}", auth(app.handleArtistDetail))

	// Enrichment
	mux.HandleFunc("POST /api/v1/sync/artists/{id}", auth(app.handleSyncOne("artist")))
	mux.HandleFunc("POST /api/v1/sync/albums/{id}", auth(app.handleSyncOne("album")))
	mux.HandleFunc("POST /api/v1/sync/tracks/{id}", auth(app.handleSyncOne("track")))
	mux.HandleFunc("POST /api/v1/sync/artists", auth(app.handleSyncBulk("artist")))
	mux.HandleFunc("POST /api/v1/sync/albums", auth(app.handleSyncBulk("album")))
	mux.HandleFunc("POST /api/v1/sync/tracks", auth(app.handleSyncBulk("track")))
	mux.HandleFunc("GET /api/v1/jobs", auth(app.handleJobStats))
	mux.HandleFunc("GET /api/v1/jobs/{id}", auth(app.handleJobByID))

	standard := alice.New(app.recoverPanic, app.logRequest)
	return standard.Then(mux)
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s %s", r.RemoteAddr, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				log.Printf("panic serving %s: %v", r.URL.Path, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
