// Package flagx pre-scans command-line arguments for the few flags that must
// be known before the full flag set is parsed (config and env file paths).
package flagx

import (
	"strings"

	"github.com/spf13/pflag"
)

// FilterArgs returns the subset of args made of allowed flags and their values.
//
// Accepted forms are "-c conf.json" (value as the next argument, unless it
// starts with "-") and "--config=conf.json". Unknown flags and positional
// arguments are dropped.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// FileFlags extracts the JSON config path (-c/--config) and the dotenv path
// (--env-file) from args without touching any other flag. Missing flags
// yield empty strings; a parse error (flag without value) is ignored.
func FileFlags(args []string) (configPath, envPath string) {
	filtered := FilterArgs(args, []string{"-c", "--config", "--env-file"})

	fs := pflag.NewFlagSet("files", pflag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	fs.StringVar(&envPath, "env-file", "", "path to .env file")
	_ = fs.Parse(filtered)

	return configPath, envPath
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
