package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/Ulo03/playbacc/config"
	"github.com/Ulo03/playbacc/db"
	"github.com/Ulo03/playbacc/service/catalog"
	"github.com/Ulo03/playbacc/service/coverart"
	"github.com/Ulo03/playbacc/service/enrichment"
	"github.com/Ulo03/playbacc/service/history"
	"github.com/Ulo03/playbacc/service/musicbrainz"
	"github.com/Ulo03/playbacc/service/spotify"
	"github.com/Ulo03/playbacc/service/tracker"
	"github.com/Ulo03/playbacc/session"
)

type application struct {
	database       *db.DB
	sessionManager *session.Manager
	spotifyService *spotify.Service
	catalogService *catalog.Service
	enrichmentCfg  enrichment.Config
}

func main() {
	config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer database.Close()

	if err := database.Initialize(ctx); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	// --- Service Initializations ---
	mbClient, err := musicbrainz.NewClient(
		viper.GetString("musicbrainz.user_agent"),
		time.Duration(viper.GetInt("musicbrainz.min_interval_ms"))*time.Millisecond,
		viper.GetInt("musicbrainz.max_attempts"),
	)
	if err != nil {
		log.Fatalf("Error creating MusicBrainz client: %v", err)
	}
	mbService := musicbrainz.NewService(mbClient, viper.GetInt("musicbrainz.min_search_score"))

	covers := coverart.NewClient(
		viper.GetString("musicbrainz.user_agent"),
		time.Duration(viper.GetInt("coverart.min_interval_ms"))*time.Millisecond,
	)

	spotifyService := spotify.NewService(database)
	catalogService := catalog.NewService(database, mbService)
	sessionManager := session.NewManager(viper.GetString("jwt.secret"))

	trackerService := tracker.NewService(database, spotifyService, catalogService, tracker.ConfigFromViper())
	historyService := history.NewService(database, spotifyService, catalogService, history.ConfigFromViper())

	enrichmentCfg := enrichment.ConfigFromViper()
	worker := enrichment.NewWorker(database, mbService, covers, catalogService, enrichmentCfg)

	app := &application{
		database:       database,
		sessionManager: sessionManager,
		spotifyService: spotifyService,
		catalogService: catalogService,
		enrichmentCfg:  enrichmentCfg,
	}

	// Fast loop, slow loop, worker, reaper. All of them watch the shutdown
	// context at every sleep.
	go trackerService.Run(ctx)
	go historyService.Run(ctx)
	go worker.Run(ctx)
	go worker.RunReaper(ctx)

	serverAddr := fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port"))
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Server running at: http://%s\n", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
