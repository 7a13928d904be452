package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration with viper
func Load() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it. Using default values and environment variables.")
	}

	// Server
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "localhost")

	// Database
	viper.SetDefault("database.url", "postgres://localhost:5432/playbacc?sslmode=disable")

	// Spotify OAuth
	viper.SetDefault("callback.spotify", "http://localhost:8080/callback/spotify")
	viper.SetDefault("spotify.scopes", "user-read-currently-playing user-read-recently-played user-read-email")
	viper.SetDefault("spotify.token_safety_margin_seconds", 60)

	// Playback session engine (fast loop)
	viper.SetDefault("tracker.poll_interval_ms", 8000)
	viper.SetDefault("tracker.min_play_seconds", 30)
	viper.SetDefault("tracker.min_play_percent", 50)
	viper.SetDefault("tracker.wrap_min_tolerance_ms", 15000)
	viper.SetDefault("tracker.wrap_threshold_percent", 35)
	viper.SetDefault("tracker.max_delta_ms", 30000)
	viper.SetDefault("tracker.stale_session_ms", 1800000)
	viper.SetDefault("tracker.skip_threshold_percent", 90)
	viper.SetDefault("tracker.end_margin_ms", 15000)

	// Recently-played reconciler (slow loop)
	viper.SetDefault("history.interval_ms", 60000)
	viper.SetDefault("history.fetch_limit", 50)

	// Enrichment queue + worker
	viper.SetDefault("enrichment.batch_size", 10)
	viper.SetDefault("enrichment.max_attempts", 5)
	viper.SetDefault("enrichment.lease_timeout_ms", 1800000)
	viper.SetDefault("enrichment.backoff_base_ms", 60000)
	viper.SetDefault("enrichment.backoff_multiplier", 2)
	viper.SetDefault("enrichment.backoff_cap_ms", 3600000)
	viper.SetDefault("enrichment.job_delay_ms", 3000)
	viper.SetDefault("enrichment.poll_interval_ms", 30000)
	viper.SetDefault("enrichment.reap_interval_ms", 3600000)
	viper.SetDefault("enrichment.job_ttl_ms", 259200000)

	// MusicBrainz / Cover Art Archive
	viper.SetDefault("musicbrainz.min_interval_ms", 1100)
	viper.SetDefault("musicbrainz.max_attempts", 5)
	viper.SetDefault("musicbrainz.min_search_score", 80)
	viper.SetDefault("coverart.min_interval_ms", 250)

	// Configure Viper to read environment variables
	viper.AutomaticEnv()

	// Replace dots with underscores for environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set the config name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Try to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// It's not a "file not found" error, so it's a real error
			log.Fatalf("Error reading config file: %v", err)
		}
		// Config file not found, using defaults and environment variables
		log.Println("Config file not found, using default values and environment variables")
	} else {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	// Check if required values are present
	requiredVars := []string{
		"spotify.client_id",
		"spotify.client_secret",
		"jwt.secret",
		"musicbrainz.user_agent",
	}
	missingVars := []string{}

	for _, v := range requiredVars {
		if !viper.IsSet(v) {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missingVars, ", "))
	}
}
