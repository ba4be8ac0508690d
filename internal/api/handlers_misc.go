// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
)

// healthResponse is the GET /api/v1/health payload.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Sites   int    `json:"sites"`
	Remote  bool   `json:"remoteConfigured"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, &healthResponse{
		Status:  "ok",
		Version: h.version,
		Sites:   len(h.matcher.Sites()),
		Remote:  h.cfg.Remote.Enabled,
	}, started)
}

// SyncReplay handles POST /api/v1/sync/replay: a manual drain of the
// pending-upload queue, independent of the periodic worker.
func (h *Handler) SyncReplay(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.replayer == nil || !h.cfg.Remote.Enabled {
		respondError(w, http.StatusConflict, "PROVIDER_ERROR", "remote backend is not configured", nil)
		return
	}

	replayed, err := h.replayer.ReplayOnce(r.Context())
	if err != nil {
		// Partial progress still counts; report both.
		respondJSON(w, http.StatusBadGateway, &models.APIResponse{
			Status: "error",
			Data:   map[string]int{"replayed": replayed},
			Metadata: models.Metadata{
				Timestamp:   time.Now(),
				QueryTimeMS: time.Since(started).Milliseconds(),
			},
			Error: &models.APIError{
				Code:    "PROVIDER_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	respondSuccess(w, http.StatusOK, map[string]int{"replayed": replayed}, started)
}

// ClientLogs handles POST /api/v1/client-logs: a sink for browser-side
// error reports. Entries are written to the server log and discarded.
func (h *Handler) ClientLogs(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var entry models.ClientLogEntry
	if !decodeJSONBody(w, r, &entry) {
		return
	}
	if apiErr := validateRequest(&entry); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	event := logging.Ctx(r.Context()).Info()
	switch entry.Level {
	case "debug":
		event = logging.Ctx(r.Context()).Debug()
	case "warn":
		event = logging.Ctx(r.Context()).Warn()
	case "error":
		event = logging.Ctx(r.Context()).Error()
	}
	event.
		Str("component", sanitizeLogValue(entry.Component)).
		Str("url", sanitizeLogValue(entry.URL)).
		Str("user_agent", sanitizeLogValue(entry.UserAgent)).
		Interface("data", entry.Data).
		Str("source", "client").
		Msg(sanitizeLogValue(entry.Message))

	respondSuccess(w, http.StatusAccepted, map[string]string{"accepted": "1"}, started)
}
