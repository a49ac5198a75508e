package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/flagx"
)

// MinPollInterval is the smallest poll interval the scheduler accepts.
const MinPollInterval = 60 * time.Second

// Feed names the REX listing collection that is synchronised.
const (
	FeedPublished = "published-listings"
	FeedAll       = "listings"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds runtime settings for rexsync.
//
// Credentials (RexUsername, RexPassword, RexAgencyID) may be given as "$VAR",
// in which case the value of environment variable VAR is used.
type Config struct {
	RexBaseURL        string
	RexUsername       string
	RexPassword       string
	RexAgencyID       string
	RexFeed           string
	TokenLifetime     int
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	PageSize          int
	PollInterval      time.Duration
	DatabaseDriver    string
	DatabaseDSN       string
	MetricsAddr       string
	LogLevel          string
	LogFormat         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RexBaseURL = "https://api.rexsoftware.com/v1/rex/"
	c.RexFeed = FeedPublished
	c.TokenLifetime = 5
	c.RequestTimeout = 30 * time.Second
	c.RequestsPerSecond = 5
	c.PageSize = 100
	c.PollInterval = 15 * time.Minute
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = "file:rexsync.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig constructs a Config from args (usually os.Args[1:]): defaults,
// then the JSON file (-c/--config), then the dotenv file and process
// environment, then flags. Later sources take precedence over earlier ones.
// Flag parsing stops at the first positional argument; the remaining
// arguments (command and its own flags) are returned.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	configPath, envPath := flagx.FileFlags(args)

	if err := parseJson(cfg, configPath); err != nil {
		return nil, nil, err
	}
	if err := parseEnv(cfg, envPath); err != nil {
		return nil, nil, err
	}
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}

	cfg.resolveCredentials()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}

// Validate normalises derived values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.PollInterval < MinPollInterval {
		c.PollInterval = MinPollInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	switch c.RexFeed {
	case FeedPublished, FeedAll:
	default:
		return fmt.Errorf("%w: unknown feed %q", common.ErrInvalidConfig, c.RexFeed)
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", common.ErrInvalidConfig, c.DatabaseDriver)
	}
	if c.RexBaseURL == "" {
		return fmt.Errorf("%w: empty REX base URL", common.ErrInvalidConfig)
	}
	return nil
}
