// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/mergus/internal/models"
)

// siteNearestResponse wraps the optional match so "nothing in range"
// stays a success with matched=false rather than an error.
type siteNearestResponse struct {
	Matched bool              `json:"matched"`
	Match   *models.SiteMatch `json:"match,omitempty"`
}

// radius reads the radius_m query parameter clamped to the configured
// maximum.
func (h *Handler) radius(r *http.Request) float64 {
	radius := getOptionalFloatParam(r, "radius_m", h.cfg.Sites.DefaultRadiusM)
	if radius <= 0 {
		radius = h.cfg.Sites.DefaultRadiusM
	}
	if radius > h.cfg.Sites.MaxRadiusM {
		radius = h.cfg.Sites.MaxRadiusM
	}
	return radius
}

// SiteNearest handles GET /api/v1/sites/nearest?lat=&lng=[&radius_m=].
func (h *Handler) SiteNearest(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, lng, ok := parseCoords(w, r)
	if !ok {
		return
	}

	match, found := h.matcher.FindNearest(lat, lng, h.radius(r))
	respondSuccess(w, http.StatusOK, &siteNearestResponse{
		Matched: found,
		Match:   match,
	}, started)
}

// SitesNearby handles GET /api/v1/sites/nearby?lat=&lng=[&radius_m=&limit=].
func (h *Handler) SitesNearby(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, lng, ok := parseCoords(w, r)
	if !ok {
		return
	}

	matches := h.matcher.FindNearby(lat, lng, h.radius(r))
	if limit := getIntParam(r, "limit", 0); limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []models.SiteMatch{}
	}

	respondSuccess(w, http.StatusOK, matches, started)
}
