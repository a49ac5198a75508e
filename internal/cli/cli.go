// Package cli implements the rexsync command line: the long-running serve
// command and one-shot commands that print JSON.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/rexsync/internal/app"
	"github.com/dmitrijs2005/rexsync/internal/config"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage error")

const usage = `usage: rexsync [global flags] <command> [flags]

commands:
  serve                               poll REX and keep the store current
  sync [--full] [--limit N] [--offset N]
                                      sync now and print stored listings
  get ID [--refresh]                  print one listing
  list [--status S] [--refresh]       print stored listings
  recent [--sold] [--count N]         print the newest current or sold listings
  status                              print store and checkpoint state
  login                               log in to REX and store the token
  logout                              forget the stored token
`

type command func(ctx context.Context, c *CLI, args []string) error

var commands = map[string]command{
	"serve":  runServe,
	"sync":   runSync,
	"get":    runGet,
	"list":   runList,
	"recent": runRecent,
	"status": runStatus,
	"login":  runLogin,
	"logout": runLogout,
}

// openApp is a seam for tests.
var openApp = app.New

type CLI struct {
	config *config.Config
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
	prompt io.Writer
}

func New(c *config.Config, logger logging.Logger, in io.Reader, out, prompt io.Writer) *CLI {
	return &CLI{
		config: c,
		logger: logger,
		reader: bufio.NewReader(in),
		out:    out,
		prompt: prompt,
	}
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.prompt, usage)
		return fmt.Errorf("%w: no command", ErrUsage)
	}

	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(c.prompt, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd(ctx, c, rest)
}

// withApp opens the application for the duration of fn.
func (c *CLI) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := openApp(ctx, c.config, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			c.logger.Warn(ctx, "close database", "error", cerr)
		}
	}()
	return fn(a)
}

func (c *CLI) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parse parses command flags. It returns done=true when help was printed.
func (c *CLI) parse(fs *pflag.FlagSet, args []string) (done bool, err error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(c.out, "usage of %s:\n%s", fs.Name(), fs.FlagUsages())
			return true, nil
		}
		return false, fmt.Errorf("%w: %s: %s", ErrUsage, fs.Name(), strings.TrimSpace(err.Error()))
	}
	return false, nil
}
