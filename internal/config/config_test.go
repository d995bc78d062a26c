package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("MATCHMAKING_POLL_INTERVAL", "2s")
	t.Setenv("MATCHMAKING_GAMES", "cs2,valorant")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.Matchmaking.ReadyCheckTimeout)
	assert.Equal(t, 2*time.Second, cfg.Matchmaking.PollInterval)
	assert.Equal(t, time.Second, cfg.Matchmaking.CountdownTick)
	assert.Equal(t, []string{"cs2", "valorant"}, cfg.Matchmaking.Games)
	assert.Equal(t, "ban-ban-ban-ban-pick-pick-remaining", cfg.Veto.DefaultFormat)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.Matchmaking.IdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.Veto.RoomLinger)
}

func TestLoad_YAMLModes(t *testing.T) {
	dir := t.TempDir()
	yaml := `
auth:
  jwt_secret: fromfile
matchmaking:
  ready_check_timeout: 20s
  modes:
    competitive:
      team_size: 5
      estimated_duration: 45m
    wingman:
      team_size: 2
      estimated_duration: 20m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.Auth.JWTSecret)
	assert.Equal(t, 20*time.Second, cfg.Matchmaking.ReadyCheckTimeout)
	require.Contains(t, cfg.Matchmaking.Modes, "wingman")
	assert.Equal(t, 2, cfg.Matchmaking.Modes["wingman"].TeamSize)
	assert.Equal(t, 45*time.Minute, cfg.Matchmaking.Modes["competitive"].EstimatedDuration)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	_, err := Load(t.TempDir())
	require.Error(t, err)
}
