package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bidroom/go/internal/models"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Auction.TotalTeams)
	assert.Equal(t, int64(100_000_000), cfg.Auction.Budget)
	assert.Equal(t, 25, cfg.Auction.MaxSquadSize)
	assert.Equal(t, 8, cfg.Auction.MaxOverseas)
	assert.Equal(t, 30*time.Second, cfg.Auction.TimerDuration)
	assert.Equal(t, 10*time.Second, cfg.Auction.AntiSnipeWindow)
	assert.Equal(t, models.DrawPolicyRandom, cfg.Auction.DrawPolicy)
	assert.Equal(t, "India", cfg.Auction.HomeNationality)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.IdleTTL)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9000"
log:
  level: debug
auction:
  total_teams: 8
  timer_duration: 20s
  draw_policy: ordered
rooms:
  idle_ttl: 5m
catalog:
  path: lots.yaml
  set_order: [Marquee, Batters 1]
nats:
  enabled: true
  url: nats://broker:4222
  stream_name: BIDS
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Auction.TotalTeams)
	assert.Equal(t, 20*time.Second, cfg.Auction.TimerDuration)
	assert.Equal(t, models.DrawPolicyOrdered, cfg.Auction.DrawPolicy)
	// Unset keys keep their defaults.
	assert.Equal(t, int64(100_000_000), cfg.Auction.Budget)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.IdleTTL)
	assert.Equal(t, []string{"Marquee", "Batters 1"}, cfg.Catalog.SetOrder)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "BIDS", cfg.NATS.StreamName)
	assert.Equal(t, "auction.events", cfg.NATS.SubjectPrefix)

	level, err := cfg.Log.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "server:\n  port: \"9000\"\n")
	t.Setenv("PORT", "7000")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("ARCHIVE_ENABLED", "1")
	t.Setenv("DB_NAME", "auctions")
	t.Setenv("CATALOG_PATH", "/data/lots.yaml")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "auctions", cfg.Archive.DB.Database)
	assert.Equal(t, "/data/lots.yaml", cfg.Catalog.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "auction: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "auction:\n  draw_policy: alphabetical\n"))
	assert.ErrorContains(t, err, "draw_policy")

	_, err = Load(writeFile(t, "auction:\n  timer_duration: 48h\n"))
	assert.ErrorContains(t, err, "timer_duration")

	_, err = Load(writeFile(t, "log:\n  level: loud\n"))
	assert.ErrorContains(t, err, "log level")

	t.Setenv("NATS_ENABLED", "maybe")
	_, err = Load("")
	assert.ErrorContains(t, err, "NATS_ENABLED")
}
