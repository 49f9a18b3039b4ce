package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env            string
	ListenAddr     string
	DatabaseURL    string
	DBMaxConns     int
	MigrateOnStart bool

	EnrichWorkers      int
	EnrichPollInterval time.Duration

	// Apify profile scraping; enrichment is off without a token.
	ApifyToken   string
	ApifyActorID string
	ApifyBaseURL string
	ApifyTimeout time.Duration

	// Vertex AI analysis; off without a project.
	GoogleCloudProject  string
	GoogleCloudLocation string
	LLMModel            string

	LogLevel slog.Level
}

// Load reads .env (when present) and the environment. A missing DATABASE_URL
// is reported as an error alongside a usable config so callers can decide.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:                 getenv("APP_ENV", "development"),
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DBMaxConns:          getenvInt("DB_MAX_CONNS", 10),
		MigrateOnStart:      getenvBool("MIGRATE_ON_START", true),
		EnrichWorkers:       getenvInt("ENRICH_WORKERS", 2),
		EnrichPollInterval:  getenvDuration("ENRICH_POLL_INTERVAL", 500*time.Millisecond),
		ApifyToken:          os.Getenv("APIFY_TOKEN"),
		ApifyActorID:        getenv("APIFY_ACTOR_ID", "dev_fusion/linkedin-profile-scraper"),
		ApifyBaseURL:        getenv("APIFY_BASE_URL", "https://api.apify.com"),
		ApifyTimeout:        getenvDuration("APIFY_TIMEOUT", 90*time.Second),
		GoogleCloudProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GoogleCloudLocation: getenv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		LLMModel:            getenv("LLM_MODEL", "gemini-1.5-flash"),
		LogLevel:            getenvLevel("LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL not set")
	}
	return cfg, nil
}

// Development reports whether the service may run without a database.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go durations ("750ms") or a bare number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func getenvLevel(key string, def slog.Level) slog.Level {
	var lvl slog.Level
	if v := os.Getenv(key); v != "" && lvl.UnmarshalText([]byte(v)) == nil {
		return lvl
	}
	return def
}
