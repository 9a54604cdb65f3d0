package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/midoBB/qs-daemon/internal/config"
	"github.com/midoBB/qs-daemon/internal/daemon"
	"github.com/midoBB/qs-daemon/internal/logging"
)

// handleServe runs the indexing daemon until SIGINT/SIGTERM.
func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to config.toml")

	fs.Usage = func() {
		fmt.Println("Usage: qs-daemon serve [--config <path>]")
		fmt.Println()
		fmt.Println("Run the background indexing daemon.")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}

	logDir, err := config.Dir()
	if err != nil {
		// Still serve; logs just go nowhere.
		fmt.Fprintf(os.Stderr, "Warning: %v, logging disabled\n", err)
		logDir = ""
	}
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
	})
	defer logging.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := daemon.New(cfg).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}
}
