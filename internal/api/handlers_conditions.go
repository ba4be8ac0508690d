// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/mergus/internal/conditions"
	"github.com/tomtom215/mergus/internal/models"
)

// The fetcher interfaces let handler tests substitute the provider
// clients.
type weatherFetcher interface {
	Fetch(ctx context.Context, lat, lng float64, date string) conditions.Result[models.Weather]
}

type marineFetcher interface {
	Fetch(ctx context.Context, lat, lng float64, date string) conditions.Result[models.Marine]
}

type geocoder interface {
	Fetch(ctx context.Context, lat, lng float64) conditions.Result[models.ReverseGeocode]
}

// Weather handles GET /api/v1/weather?lat=&lng=[&date=].
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, lng, ok := parseCoords(w, r)
	if !ok {
		return
	}

	res := h.weather.Fetch(r.Context(), lat, lng, r.URL.Query().Get("date"))
	if !res.Success {
		respondError(w, http.StatusBadGateway, "PROVIDER_ERROR", res.Error, nil)
		return
	}
	respondSuccess(w, http.StatusOK, res.Data, started)
}

// Marine handles GET /api/v1/marine?lat=&lng=[&date=].
func (h *Handler) Marine(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, lng, ok := parseCoords(w, r)
	if !ok {
		return
	}

	res := h.marine.Fetch(r.Context(), lat, lng, r.URL.Query().Get("date"))
	if !res.Success {
		respondError(w, http.StatusBadGateway, "PROVIDER_ERROR", res.Error, nil)
		return
	}
	respondSuccess(w, http.StatusOK, res.Data, started)
}

// ReverseGeocode handles GET /api/v1/geocode/reverse?lat=&lng=.
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, lng, ok := parseCoords(w, r)
	if !ok {
		return
	}

	res := h.geocode.Fetch(r.Context(), lat, lng)
	if !res.Success {
		respondError(w, http.StatusBadGateway, "PROVIDER_ERROR", res.Error, nil)
		return
	}
	respondSuccess(w, http.StatusOK, res.Data, started)
}
