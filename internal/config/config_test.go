package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "https://api.rexsoftware.com/v1/rex/", c.RexBaseURL)
	assert.Equal(t, FeedPublished, c.RexFeed)
	assert.Equal(t, 100, c.PageSize)
	assert.Equal(t, 15*time.Minute, c.PollInterval)
	assert.Equal(t, DriverSQLite, c.DatabaseDriver)
}

func TestLoadConfig_UsesDefaultsAndReturnsCommand(t *testing.T) {
	cfg, rest, err := LoadConfig([]string{"sync", "--full"})
	require.NoError(t, err)
	require.NotNil(t, cfg, "LoadConfig must not return nil")

	assert.Equal(t, []string{"sync", "--full"}, rest)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsOverrideEnvAndJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"rex_username":          "json@example.com",
		"poll_interval_seconds": 300,
	})
	t.Setenv("REX_USERNAME", "env@example.com")
	t.Setenv("REXSYNC_POLL_INTERVAL", "600")

	cfg, rest, err := LoadConfig([]string{"-c", path, "-u", "flag@example.com", "serve"})
	require.NoError(t, err)

	assert.Equal(t, "flag@example.com", cfg.RexUsername)
	assert.Equal(t, 600*time.Second, cfg.PollInterval, "env beats JSON when no flag is given")
	assert.Equal(t, []string{"serve"}, rest)
}

func TestLoadConfig_ResolvesCredentialReferences(t *testing.T) {
	t.Setenv("MY_REX_SECRET", "s3cret")
	t.Setenv("MY_AGENCY", "42")

	cfg, _, err := LoadConfig([]string{"--password", "$MY_REX_SECRET", "--agency-id", "${MY_AGENCY}"})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.RexPassword)
	assert.Equal(t, "42", cfg.RexAgencyID)
}

func TestLoadConfig_PollIntervalIsClamped(t *testing.T) {
	cfg, _, err := LoadConfig([]string{"-i", "5"})
	require.NoError(t, err)
	assert.Equal(t, MinPollInterval, cfg.PollInterval)
}

func TestLoadConfig_RejectsUnknownFeedAndDriver(t *testing.T) {
	_, _, err := LoadConfig([]string{"--feed", "rentals"})
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, _, err = LoadConfig([]string{"--db-driver", "mysql"})
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadConfig_BadFlagValue(t *testing.T) {
	_, _, err := LoadConfig([]string{"-i", "abc"})
	require.Error(t, err)
}
