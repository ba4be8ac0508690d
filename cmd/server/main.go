// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Command server runs the Mergus dive-logging service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ringsaturn/tzf"

	"github.com/tomtom215/mergus/internal/api"
	"github.com/tomtom215/mergus/internal/conditions"
	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/exif"
	"github.com/tomtom215/mergus/internal/logbook"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/remote"
	"github.com/tomtom215/mergus/internal/sites"
	"github.com/tomtom215/mergus/internal/store"
	"github.com/tomtom215/mergus/internal/supervisor"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Bool("remote_enabled", cfg.Remote.Enabled).
		Msg("Starting Mergus")

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Msg("Store close failed")
		}
	}()

	matcher, err := sites.NewMatcher()
	if err != nil {
		return err
	}
	logging.Info().Int("sites", len(matcher.Sites())).Msg("Dive site dataset loaded")

	var tz exif.TimezoneResolver
	if cfg.Extract.TimezoneLookup {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			logging.Warn().Err(err).Msg("Timezone finder unavailable; timestamps keep the camera wall clock")
		} else {
			tz = finder
		}
	}
	extractor := exif.NewExtractor(cfg.Extract, tz)

	weather := conditions.NewWeatherClient(cfg.Conditions)
	marine := conditions.NewMarineClient(cfg.Conditions)
	geocode := conditions.NewGeocodeClient(cfg.Conditions)

	remoteClient := remote.NewClient(cfg.Remote)
	replayer := remote.NewReplayer(remoteClient, st, cfg.Remote)

	lb := logbook.NewService(st, remoteClient, matcher, weather, marine, geocode, cfg.Sites)

	handler := api.NewHandler(extractor, lb, matcher, weather, marine, geocode, replayer, *cfg, version)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSupervisorLogger(), treeCfg)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddSyncService(replayer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
