package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "openlearn_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("SERVER_MODE", "PROD")
	t.Setenv("DRAFTS_TTL_HOURS", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "mongodb://localhost:27017/testdb", cfg.MongoDB.URI)
	require.Equal(t, "openlearn_test", cfg.MongoDB.Database)
	require.Equal(t, "localhost", cfg.Redis.Host)
	require.Equal(t, "prod", cfg.Server.Mode)
	require.False(t, cfg.IsDevMode())
	require.Equal(t, 2*time.Hour, cfg.Drafts.TTL)
	require.Equal(t, "openlearn", cfg.MinIO.Bucket)
}

func TestLoadConfig_RejectsUnknownServerMode(t *testing.T) {
	t.Setenv("SERVER_MODE", "staging")
	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid SERVER_MODE")
}

func TestValidate_RateLimitNeedsPositiveRPS(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Mode = "dev"
	cfg.RateLimit.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.RateLimit.RPS = 5
	require.NoError(t, cfg.Validate())
}
