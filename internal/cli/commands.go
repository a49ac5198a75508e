package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/rexsync/internal/app"
	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/spf13/pflag"
)

func runServe(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		return a.Serve(ctx)
	})
}

func runSync(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	full := fs.Bool("full", false, "walk every page; leaves the checkpoint alone")
	limit := fs.Int("limit", 0, "page size (default from config)")
	offset := fs.Int("offset", 0, "offset of the first page")
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		got, err := a.SyncAndList(ctx, *full, *limit, *offset)
		if err != nil {
			return err
		}
		return c.print(got)
	})
}

func runGet(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	refresh := fs.Bool("refresh", false, "fetch from REX even when stored")
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: get takes one listing id", ErrUsage)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: bad listing id %q", ErrUsage, fs.Arg(0))
	}

	return c.withApp(ctx, func(a *app.App) error {
		v, err := a.Listings().FindByID(ctx, id, *refresh)
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("listing %d: %w", id, common.ErrorNotFound)
		}
		return c.print(v)
	})
}

func runList(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	status := fs.String("status", "", "only listings with this status")
	refresh := fs.Bool("refresh", false, "run a full sync first")
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		got, err := a.Listings().FindAll(ctx, *status, *refresh)
		if err != nil {
			return err
		}
		return c.print(got)
	})
}

func runRecent(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("recent", pflag.ContinueOnError)
	sold := fs.Bool("sold", false, "sold listings by sold date instead of current by publish date")
	count := fs.IntP("count", "n", 0, "number of listings (default 4)")
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		got, err := a.Listings().FindRecent(ctx, !*sold, *count)
		if err != nil {
			return err
		}
		return c.print(got)
	})
}

func runStatus(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		st, err := a.Status(ctx)
		if err != nil {
			return err
		}
		return c.print(st)
	})
}

// runLogin prompts for whatever credentials the configuration lacks.
func runLogin(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}

	if c.config.RexUsername == "" {
		u, err := getText(c.reader, "REX username", c.prompt)
		if err != nil {
			return err
		}
		c.config.RexUsername = u
	}
	if c.config.RexPassword == "" {
		pw, err := getPassword(c.prompt)
		if err != nil {
			return err
		}
		c.config.RexPassword = pw
	}

	return c.withApp(ctx, func(a *app.App) error {
		if err := a.Login(ctx); err != nil {
			return err
		}
		return c.print(map[string]string{"status": "logged in", "username": c.config.RexUsername})
	})
}

func runLogout(ctx context.Context, c *CLI, args []string) error {
	fs := pflag.NewFlagSet("logout", pflag.ContinueOnError)
	if done, err := c.parse(fs, args); done || err != nil {
		return err
	}
	return c.withApp(ctx, func(a *app.App) error {
		if err := a.Logout(ctx); err != nil {
			return err
		}
		return c.print(map[string]string{"status": "logged out"})
	})
}
