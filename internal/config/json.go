package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero values so the file only overrides
// what it mentions. Intervals are given in seconds.
type JsonConfig struct {
	RexBaseURL            *string  `json:"rex_base_url"`
	RexUsername           *string  `json:"rex_username"`
	RexPassword           *string  `json:"rex_password"`
	RexAgencyID           *string  `json:"rex_agency_id"`
	RexFeed               *string  `json:"rex_feed"`
	TokenLifetime         *int     `json:"token_lifetime"`
	RequestTimeoutSeconds *int     `json:"request_timeout_seconds"`
	RequestsPerSecond     *float64 `json:"requests_per_second"`
	PageSize              *int     `json:"page_size"`
	PollIntervalSeconds   *int     `json:"poll_interval_seconds"`
	DatabaseDriver        *string  `json:"database_driver"`
	DatabaseDSN           *string  `json:"database_dsn"`
	MetricsAddr           *string  `json:"metrics_addr"`
	LogLevel              *string  `json:"log_level"`
	LogFormat             *string  `json:"log_format"`
}

// parseJson overlays cfg with values from the JSON file at path.
// An empty path is a no-op.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.RexBaseURL, jc.RexBaseURL)
	setString(&cfg.RexUsername, jc.RexUsername)
	setString(&cfg.RexPassword, jc.RexPassword)
	setString(&cfg.RexAgencyID, jc.RexAgencyID)
	setString(&cfg.RexFeed, jc.RexFeed)
	setString(&cfg.DatabaseDriver, jc.DatabaseDriver)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.TokenLifetime != nil {
		cfg.TokenLifetime = *jc.TokenLifetime
	}
	if jc.RequestTimeoutSeconds != nil {
		cfg.RequestTimeout = time.Duration(*jc.RequestTimeoutSeconds) * time.Second
	}
	if jc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *jc.RequestsPerSecond
	}
	if jc.PageSize != nil {
		cfg.PageSize = *jc.PageSize
	}
	if jc.PollIntervalSeconds != nil {
		cfg.PollInterval = time.Duration(*jc.PollIntervalSeconds) * time.Second
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
