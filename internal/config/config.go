// README: Config loader with env defaults for HTTP, storage, the maps engine,
// Firebase, the event broker and navigation settings.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type MapsConfig struct {
	APIKey   string
	Language string
	Region   string
	Workers  int
	Queue    int
	Timeout  time.Duration
	// MaxSnapM is how far a route endpoint may be from the nearest road.
	MaxSnapM float64
	CacheTTL time.Duration
}

type NavigationConfig struct {
	DefaultProfile  string
	MetricUnits     bool
	PressRadiusM    float64
	FindMaxItems    int
	SpeechQueueSize int
	HistoryLimit    int
	TrackBatchSize  int
	TrackFlush      time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	AMQP struct {
		URL      string
		Exchange string
	}
	Maps       MapsConfig
	Navigation NavigationConfig
}

// Load reads configuration from the environment. A .env file in the
// working directory, when present, is loaded first without overriding
// variables already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("COMPASS_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("COMPASS_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("COMPASS_REDIS_ADDR", "")
	cfg.Firebase.ProjectID = envOrDefault("COMPASS_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("COMPASS_FIREBASE_CREDENTIALS", "")
	cfg.AMQP.URL = envOrDefault("COMPASS_AMQP_URL", "")
	cfg.AMQP.Exchange = envOrDefault("COMPASS_AMQP_EXCHANGE", "compass_topic")

	cfg.Maps = MapsConfig{
		APIKey:   envOrDefault("COMPASS_MAPS_API_KEY", ""),
		Language: envOrDefault("COMPASS_MAPS_LANGUAGE", "en"),
		Region:   envOrDefault("COMPASS_MAPS_REGION", ""),
		Workers:  envOrDefaultInt("COMPASS_MAPS_WORKERS", 4),
		Queue:    envOrDefaultInt("COMPASS_MAPS_QUEUE", 64),
		Timeout:  envOrDefaultDuration("COMPASS_MAPS_TIMEOUT", 10*time.Second),
		MaxSnapM: envOrDefaultFloat("COMPASS_MAPS_MAX_SNAP_M", 500),
		CacheTTL: envOrDefaultDuration("COMPASS_ROUTE_CACHE_TTL", 10*time.Minute),
	}

	cfg.Navigation = NavigationConfig{
		DefaultProfile:  envOrDefault("COMPASS_DEFAULT_PROFILE", "car"),
		MetricUnits:     envOrDefaultBool("COMPASS_METRIC_UNITS", true),
		PressRadiusM:    envOrDefaultFloat("COMPASS_PRESS_RADIUS_M", 25),
		FindMaxItems:    envOrDefaultInt("COMPASS_FIND_MAX_ITEMS", 20),
		SpeechQueueSize: envOrDefaultInt("COMPASS_SPEECH_QUEUE", 16),
		HistoryLimit:    envOrDefaultInt("COMPASS_ROUTE_HISTORY_LIMIT", 20),
		TrackBatchSize:  envOrDefaultInt("COMPASS_TRACK_BATCH", 100),
		TrackFlush:      envOrDefaultDuration("COMPASS_TRACK_FLUSH", 2*time.Second),
	}

	if cfg.Maps.APIKey == "" {
		return cfg, errors.New("COMPASS_MAPS_API_KEY is required")
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
