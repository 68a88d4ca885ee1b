package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_CLIENT_SECRET", "def")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Twitch.ClientId)
	assert.Equal(t, ":8080", cfg.Explorer.Addr)
	assert.Equal(t, 20, cfg.Explorer.PageSize)
	assert.Equal(t, BackendMemory, cfg.Explorer.SessionBackend)
	assert.Equal(t, "https://api.twitch.tv", cfg.Twitch.APIURL)
	assert.Equal(t, time.Hour, cfg.SessionLifetime())
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_CLIENT_SECRET", "def")
	t.Setenv("EXPLORER_PAGE_SIZE", "40")
	t.Setenv("EXPLORER_SESSION_BACKEND", "sql")
	t.Setenv("EXPLORER_SESSION_TTL_MINUTES", "5")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Explorer.PageSize)
	assert.Equal(t, BackendSQL, cfg.Explorer.SessionBackend)
	assert.Equal(t, 5*time.Minute, cfg.SessionLifetime())
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWITCH_CLIENT_ID")
	assert.Contains(t, err.Error(), "TWITCH_CLIENT_SECRET")
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := Config{Twitch: TwitchConfig{ClientId: "a", ClientSecret: "b"}}
	cfg.ApplyDefaults()
	cfg.Explorer.SessionBackend = "redis"
	assert.Error(t, cfg.Validate())
}

func TestOrigins(t *testing.T) {
	cfg := Config{Explorer: ExplorerConfig{AllowedOrigins: "http://localhost:8080, https://example.com,,"}}
	assert.Equal(t, []string{"http://localhost:8080", "https://example.com"}, cfg.Origins())
}

func TestGetLogLevel(t *testing.T) {
	cfg := Config{Explorer: ExplorerConfig{LogLevel: "DEBUG"}}
	assert.Equal(t, slog.LevelDebug, cfg.GetLogLevel())
	cfg.Explorer.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, cfg.GetLogLevel())
}
