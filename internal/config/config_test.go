package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "REDIS_URL", "CACHE_TTL_SEC",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "CORS_ORIGIN", "LOG_LEVEL",
		"SEED_EVENT_SLUG", "SEED_EVENT_TITLE", "PRESENTER_SECRET",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite://slidont.db", cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.DBMaxOpenConns)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 30, cfg.CacheTTL)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "slidont-changes", cfg.KafkaTopic)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, DefaultSeedSlug, cfg.SeedSlug)
	assert.Equal(t, DefaultSeedTitle, cfg.SeedTitle)
	assert.Empty(t, cfg.PresenterSecret)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/slidont")
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("CACHE_TTL_SEC", "5")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("KAFKA_TOPIC", "changes")
	t.Setenv("SEED_EVENT_SLUG", "gophercon")
	t.Setenv("PRESENTER_SECRET", "s3cret")

	cfg := Load()

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres://u:p@localhost:5432/slidont", cfg.DatabaseURL)
	assert.Equal(t, 12, cfg.DBMaxOpenConns)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, 5, cfg.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "changes", cfg.KafkaTopic)
	assert.Equal(t, "gophercon", cfg.SeedSlug)
	assert.Equal(t, "s3cret", cfg.PresenterSecret)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("CACHE_TTL_SEC", "-3")

	cfg := Load()

	assert.Equal(t, 100, cfg.DBMaxOpenConns)
	assert.Equal(t, 30, cfg.CacheTTL)
}
