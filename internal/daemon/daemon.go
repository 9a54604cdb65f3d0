// Package daemon wires the index, the request channel server, the response
// channel manager and the periodic refresh scheduler into one supervised
// process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/midoBB/qs-daemon/internal/config"
	"github.com/midoBB/qs-daemon/internal/index"
	"github.com/midoBB/qs-daemon/internal/logging"
)

var (
	dmnLog   = logging.ForComponent(logging.CompDaemon)
	schedLog = logging.ForComponent(logging.CompScheduler)
)

// settings holds the configuration knobs that can change at runtime via
// config hot-reload. Everything else requires a restart.
type settings struct {
	defaultLimit        atomic.Int64
	refreshIntervalSecs atomic.Int64
}

// Daemon is one running qs-daemon instance.
type Daemon struct {
	cfg      config.Config
	index    *index.Index
	server   *Server
	respond  *Responder
	clients  atomic.Int64
	settings settings
}

// New wires a daemon from configuration.
func New(cfg config.Config) *Daemon {
	return newDaemon(cfg, "", nil)
}

// newDaemon additionally takes the home prefix and lister so tests can
// substitute fakes.
func newDaemon(cfg config.Config, home string, list index.ListFunc) *Daemon {
	d := &Daemon{cfg: cfg}
	d.settings.defaultLimit.Store(int64(cfg.Index.DefaultLimit))
	d.settings.refreshIntervalSecs.Store(int64(cfg.Daemon.RefreshIntervalSecs))

	d.index = index.New(cfg.Index.Root, home, list)
	d.respond = newResponder(cfg.Daemon.ResponseSocket, &d.clients)
	d.server = newServer(cfg.Daemon.RequestSocket, d.index, d.respond, &d.settings, &d.clients)
	return d
}

// Run builds the index, binds the request socket and then runs the accept
// loop, responder, scheduler and config watcher until ctx is cancelled. An
// initial build failure aborts startup: the daemon never serves an empty
// index it could not populate.
func (d *Daemon) Run(ctx context.Context) error {
	count, err := d.index.Update(ctx)
	if err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}
	dmnLog.Info("index_ready", slog.Int("files", count))

	if err := d.server.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.server.Serve(ctx) })
	g.Go(func() error { return d.respond.Run(ctx) })
	g.Go(func() error { return d.refreshLoop(ctx) })
	g.Go(func() error { return d.watchConfig(ctx) })
	return g.Wait()
}

// refreshLoop rebuilds the index on a fixed interval, independent of client
// activity. Failures are logged and the next tick retries; the interval is
// re-read every cycle so config reloads apply without restart.
func (d *Daemon) refreshLoop(ctx context.Context) error {
	for {
		interval := time.Duration(d.settings.refreshIntervalSecs.Load()) * time.Second
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
			schedLog.Info("periodic_refresh")
			if _, err := d.index.Update(ctx); err != nil {
				schedLog.Error("periodic_refresh_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// watchConfig applies hot-reloadable settings when the config file changes.
// Absence of a config file or watcher failure just disables reloads.
func (d *Daemon) watchConfig(ctx context.Context) error {
	if d.cfg.Path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := config.NewWatcher(d.cfg.Path)
	if err != nil {
		dmnLog.Warn("config_watch_unavailable", slog.String("error", err.Error()))
		<-ctx.Done()
		return nil
	}
	w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-w.Updates():
			d.applySettings(cfg)
		}
	}
}

func (d *Daemon) applySettings(cfg config.Config) {
	d.settings.defaultLimit.Store(int64(cfg.Index.DefaultLimit))
	d.settings.refreshIntervalSecs.Store(int64(cfg.Daemon.RefreshIntervalSecs))
	dmnLog.Info("settings_applied",
		slog.Int("default_limit", cfg.Index.DefaultLimit),
		slog.Int("refresh_interval_secs", cfg.Daemon.RefreshIntervalSecs))
}
