// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package api provides the HTTP surface of Mergus using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/exif"
	"github.com/tomtom215/mergus/internal/logbook"
	"github.com/tomtom215/mergus/internal/middleware"
	"github.com/tomtom215/mergus/internal/remote"
	"github.com/tomtom215/mergus/internal/sites"
)

// Handler bundles the dependencies the endpoint handlers need.
type Handler struct {
	extractor *exif.Extractor
	logbook   *logbook.Service
	matcher   *sites.Matcher
	weather   weatherFetcher
	marine    marineFetcher
	geocode   geocoder
	replayer  *remote.Replayer
	cfg       config.Config
	version   string
}

// NewHandler wires the API handler set.
func NewHandler(
	extractor *exif.Extractor,
	lb *logbook.Service,
	matcher *sites.Matcher,
	weather weatherFetcher,
	marine marineFetcher,
	geocode geocoder,
	replayer *remote.Replayer,
	cfg config.Config,
	version string,
) *Handler {
	return &Handler{
		extractor: extractor,
		logbook:   lb,
		matcher:   matcher,
		weather:   weather,
		marine:    marine,
		geocode:   geocode,
		replayer:  replayer,
		cfg:       cfg,
		version:   version,
	}
}

// Routes assembles the full route tree with the global middleware
// stack.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if !h.cfg.Security.RateLimitDisable {
			r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Get("/health", h.Health)

		r.Post("/exif", h.ExtractEXIF)

		r.Get("/weather", h.Weather)
		r.Get("/marine", h.Marine)
		r.Get("/geocode/reverse", h.ReverseGeocode)

		r.Route("/sites", func(r chi.Router) {
			r.Get("/nearest", h.SiteNearest)
			r.Get("/nearby", h.SitesNearby)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Post("/", h.CreateLog)
			r.Get("/", h.ListLogs)
			r.Get("/unsynced", h.ListUnsynced)
			r.Get("/{id}", h.GetLog)
			r.Put("/{id}", h.UpdateLog)
			r.Delete("/{id}", h.DeleteLog)
		})

		r.Post("/sync/replay", h.SyncReplay)

		r.Post("/client-logs", h.ClientLogs)
	})

	return r
}
