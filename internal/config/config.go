package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	DefaultSeedSlug  = "cursor-tokyo-meetup-ryo-qa"
	DefaultSeedTitle = "Cursor Tokyo Meetup - Ryo's Q&A"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort       string
	DatabaseURL    string
	DBMaxOpenConns int
	RedisURL       string // empty disables the list cache
	CacheTTL       int    // seconds
	KafkaBrokers   []string
	KafkaTopic     string
	CORSOrigin     string
	LogLevel       string

	// SeedSlug and SeedTitle describe the event created by EnsureSeed.
	SeedSlug  string
	SeedTitle string
	// PresenterSecret is used for the seeded event. Empty means generate one.
	PresenterSecret string
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Get returns the application config (loads once from env).
func Get() *Config {
	cfgOnce.Do(func() {
		cfg = Load()
	})
	return cfg
}

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "sqlite://slidont.db"),
		DBMaxOpenConns:  getIntEnv("DB_MAX_OPEN_CONNS", 100),
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheTTL:        getIntEnv("CACHE_TTL_SEC", 30),
		KafkaBrokers:    getSliceEnv("KAFKA_BROKERS"),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "slidont-changes"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SeedSlug:        getEnv("SEED_EVENT_SLUG", DefaultSeedSlug),
		SeedTitle:       getEnv("SEED_EVENT_TITLE", DefaultSeedTitle),
		PresenterSecret: os.Getenv("PRESENTER_SECRET"),
	}
}

// KafkaEnabled reports whether at least one broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getSliceEnv(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
