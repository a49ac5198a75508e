package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/rexsync/internal/cli"
	"github.com/dmitrijs2005/rexsync/internal/config"
	"github.com/dmitrijs2005/rexsync/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "rexsync: %v\n", err)
		return 2
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := cli.New(cfg, logger, os.Stdin, os.Stdout, os.Stderr).Run(ctx, args); err != nil {
		logger.Error(ctx, err.Error())
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
