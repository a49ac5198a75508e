package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultEnvFile is loaded when present and no --env-file is given.
const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (variables already set in the process win)
// and overlays cfg with the recognised environment variables:
//
//	REX_BASE_URL, REX_USERNAME, REX_PASSWORD, REX_AGENCY_ID, REX_FEED,
//	REXSYNC_POLL_INTERVAL (seconds), REXSYNC_PAGE_SIZE, REXSYNC_METRICS_ADDR,
//	REXSYNC_LOG_LEVEL, DATABASE_DRIVER, DATABASE_DSN
func parseEnv(cfg *Config, envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", defaultEnvFile, err)
	}

	envString(&cfg.RexBaseURL, "REX_BASE_URL")
	envString(&cfg.RexUsername, "REX_USERNAME")
	envString(&cfg.RexPassword, "REX_PASSWORD")
	envString(&cfg.RexAgencyID, "REX_AGENCY_ID")
	envString(&cfg.RexFeed, "REX_FEED")
	envString(&cfg.MetricsAddr, "REXSYNC_METRICS_ADDR")
	envString(&cfg.LogLevel, "REXSYNC_LOG_LEVEL")
	envString(&cfg.DatabaseDriver, "DATABASE_DRIVER")
	envString(&cfg.DatabaseDSN, "DATABASE_DSN")

	if v, ok := os.LookupEnv("REXSYNC_POLL_INTERVAL"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REXSYNC_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = time.Duration(n) * time.Second
	}
	if v, ok := os.LookupEnv("REXSYNC_PAGE_SIZE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("REXSYNC_PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	return nil
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// resolveCredentials replaces "$VAR" credential values with the environment
// value of VAR. Unset variables resolve to "".
func (c *Config) resolveCredentials() {
	c.RexUsername = expandRef(c.RexUsername)
	c.RexPassword = expandRef(c.RexPassword)
	c.RexAgencyID = expandRef(c.RexAgencyID)
}

func expandRef(v string) string {
	if strings.HasPrefix(v, "$") && len(v) > 1 {
		return os.Getenv(strings.Trim(v[1:], "{}"))
	}
	return v
}
