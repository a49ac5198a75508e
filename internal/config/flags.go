package config

import (
	"io"
	"time"

	"github.com/spf13/pflag"
)

// parseFlags overlays cfg with command-line flags and returns the arguments
// left after the first positional one.
//
// Supported flags:
//
//	-c, --config string       JSON config file (read earlier by parseJson)
//	    --env-file string     dotenv file (read earlier by parseEnv)
//	    --rex-url string      REX API base URL
//	-u, --username string     REX login email
//	-p, --password string     REX password
//	    --agency-id string    REX agency id
//	    --feed string         published-listings | listings
//	    --token-lifetime int  token lifetime requested at login
//	    --timeout int         request timeout (seconds)
//	    --rps float           outbound requests per second
//	    --page-size int       listings per search page
//	-i, --poll-interval int   poll interval (seconds, minimum 60)
//	    --db-driver string    sqlite | postgres
//	-d, --dsn string          database DSN
//	    --metrics-addr string address for the /metrics endpoint
//	    --log-level string    debug | info | warn | error
//	    --log-format string   json | text
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := pflag.NewFlagSet("rexsync", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	var configPath, envPath string
	fs.StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	fs.StringVar(&envPath, "env-file", "", "path to .env file")

	fs.StringVar(&cfg.RexBaseURL, "rex-url", cfg.RexBaseURL, "REX API base URL")
	fs.StringVarP(&cfg.RexUsername, "username", "u", cfg.RexUsername, "REX login email")
	fs.StringVarP(&cfg.RexPassword, "password", "p", cfg.RexPassword, "REX password")
	fs.StringVar(&cfg.RexAgencyID, "agency-id", cfg.RexAgencyID, "REX agency id")
	fs.StringVar(&cfg.RexFeed, "feed", cfg.RexFeed, "listing feed (published-listings|listings)")
	fs.IntVar(&cfg.TokenLifetime, "token-lifetime", cfg.TokenLifetime, "token lifetime requested at login")
	timeout := fs.Int("timeout", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "outbound requests per second")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "listings per search page")
	pollInterval := fs.IntP("poll-interval", "i", int(cfg.PollInterval.Seconds()), "poll interval (in seconds)")
	fs.StringVar(&cfg.DatabaseDriver, "db-driver", cfg.DatabaseDriver, "database driver (sqlite|postgres)")
	fs.StringVarP(&cfg.DatabaseDSN, "dsn", "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to expose /metrics on")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json|text)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
	return fs.Args(), nil
}
