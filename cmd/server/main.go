// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/tomtom215/inkwell/internal/api"
	"github.com/tomtom215/inkwell/internal/bootstrap"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/supervisor"
	"github.com/tomtom215/inkwell/internal/supervisor/services"
	"github.com/tomtom215/inkwell/internal/theme"
	ws "github.com/tomtom215/inkwell/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", cfg.Site.Version).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Inkwell with supervisor tree")

	if err := run(cfg); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Deps{})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing application")
		}
	}()

	hub := ws.NewHub()
	app.DB().SetActivityListener(hub.ActivityListener())
	hub.ForwardBackups(app.Hooks())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	svc := app.Services()

	// Data layer.
	if cfg.Backup.Enabled {
		tree.AddDataService(svc.Backups)
		logging.Info().
			Dur("interval", cfg.Backup.Interval).
			Int("preferred_hour", cfg.Backup.PreferredHour).
			Msg("Backup scheduler added to supervisor tree")
	}
	maintenance := services.NewPeriodicService("maintenance", cfg.Maintenance.Interval, app.MaintenanceTasks()...)
	tree.AddDataService(maintenance)
	logging.Info().Strs("tasks", maintenance.Tasks()).Dur("interval", cfg.Maintenance.Interval).
		Msg("Maintenance service added to supervisor tree")

	caches := app.Caches()
	names := make([]string, 0, len(caches))
	for name := range caches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tree.AddDataService(services.NewFuncService("cache-janitor-"+name, caches[name].Serve))
	}

	// Messaging layer.
	tree.AddMessagingService(services.NewHubService(hub))

	// API layer.
	timeouts := api.DefaultServerTimeouts(cfg.Server.Timeout)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(app, hub).Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, tree.Config().ShutdownTimeout))

	if cfg.Server.Debug {
		tree.AddAPIService(theme.NewWatcher(app.Themes(), theme.DefaultDebounce))
		logging.Info().Str("dir", cfg.Paths.Themes).Msg("Theme hot reload enabled")
	}

	if path := config.FindConfigFile(); path != "" {
		err := config.WatchConfigFile(path, func() {
			reloaded, err := config.Load()
			if err != nil {
				logging.Warn().Err(err).Msg("Ignoring invalid configuration change")
				return
			}
			logging.SetLevelString(reloaded.Logging.Level)
			logging.Info().Str("level", reloaded.Logging.Level).Msg("Log level reloaded")
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watching disabled")
		}
	}

	logging.Info().Str("addr", server.Addr).Msg("HTTP server starting")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	shutdownTimer := time.NewTimer(tree.Config().ShutdownTimeout + 5*time.Second)
	defer shutdownTimer.Stop()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logging.Warn().Err(err).Msg("Supervisor tree stopped with error")
		}
	case <-shutdownTimer.C:
		logging.Warn().Msg("Supervisor tree did not stop in time")
		if report, err := tree.UnstoppedServiceReport(); err == nil {
			for _, s := range report {
				logging.Warn().Str("service", s.Name).Msg("Service did not stop")
			}
		}
	}
	return nil
}
