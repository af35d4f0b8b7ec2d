package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.RoomTTL)
	assert.Equal(t, "http://localhost:8080", cfg.Relay.PublicURL)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ROOM_TTL", "1h")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.RoomTTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg.Env = "prod"
	assert.Error(t, cfg.Validate(), "default jwt secret must not pass outside dev")

	cfg.Auth.Secret = "real-secret"
	assert.NoError(t, cfg.Validate())

	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}
