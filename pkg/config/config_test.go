package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("pricing")
	require.NoError(t, err)

	assert.Equal(t, "pricing", cfg.Server.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "agency_pricing", cfg.Database.DBName)
	assert.True(t, cfg.Pricing.FallbackEnabled)
	assert.Equal(t, 8, cfg.Pricing.BatchConcurrency)
	assert.Equal(t, 50, cfg.Pricing.BatchMaxItems)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRICING_FALLBACK_ENABLED", "false")
	t.Setenv("PRICING_RATE_TABLE_FILE", "/etc/pricing/rates.yaml")
	t.Setenv("PRICING_BATCH_CONCURRENCY", "0")
	t.Setenv("TRACING_SAMPLE_RATE", "0.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load("pricing")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Pricing.FallbackEnabled)
	assert.Equal(t, "/etc/pricing/rates.yaml", cfg.Pricing.RateTableFile)
	assert.Equal(t, 1, cfg.Pricing.BatchConcurrency)
	assert.InDelta(t, 0.5, cfg.Tracing.SampleRate, 0.0001)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins())
}

func TestLoadRejectsBadEndpointOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENDPOINTS", "{not json")

	_, err := Load("pricing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_ENDPOINTS")
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("pricing")
	require.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", db.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())
}
