// Package config loads runtime configuration for rexsync.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/--config.
//  3. Optional dotenv file (--env-file, or ./.env when present) and the
//     process environment (REX_USERNAME, REX_PASSWORD, DATABASE_DSN, ...).
//  4. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "rex_username": "agent@example.com",
//	  "rex_password": "$REX_PASSWORD",
//	  "rex_agency_id": "1234",
//	  "poll_interval_seconds": 900,
//	  "database_driver": "sqlite",
//	  "database_dsn": "file:rexsync.db"
//	}
//
// Credential values of the form "$VAR" are resolved from the environment
// after all sources are applied, so secrets can stay out of config files.
// Poll intervals below one minute are raised to MinPollInterval.
package config
