// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/store"
)

// logRequest carries the validated subset of a dive log payload.
type logRequest struct {
	Date       string  `validate:"required,datetime=2006-01-02"`
	TimeStart  string  `validate:"omitempty,datetime=15:04"`
	TimeEnd    string  `validate:"omitempty,datetime=15:04"`
	DivingTime int     `validate:"omitempty,gte=0,lte=1440"`
	Latitude   float64 `validate:"omitempty,latitude"`
	Longitude  float64 `validate:"omitempty,longitude"`
	MaxDepth   float64 `validate:"omitempty,gte=0,lte=350"`
	AvgDepth   float64 `validate:"omitempty,gte=0,lte=350"`
}

// validateLog checks the mutable fields of a dive log payload.
func validateLog(w http.ResponseWriter, log *models.DiveLog) bool {
	req := logRequest{
		Date:       log.Date,
		TimeStart:  log.TimeStart,
		TimeEnd:    log.TimeEnd,
		DivingTime: log.DivingTime,
		Latitude:   log.Latitude,
		Longitude:  log.Longitude,
		MaxDepth:   log.MaxDepth,
		AvgDepth:   log.AvgDepth,
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return false
	}
	return true
}

// CreateLog handles POST /api/v1/logs.
func (h *Handler) CreateLog(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var log models.DiveLog
	if !decodeJSONBody(w, r, &log) {
		return
	}
	if !validateLog(w, &log) {
		return
	}

	if err := h.logbook.Create(r.Context(), &log); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to save dive log", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("log_id", log.ID).Str("date", log.Date).Msg("Dive log created")
	respondSuccess(w, http.StatusCreated, &log, started)
}

// ListLogs handles GET /api/v1/logs[?date=YYYY-MM-DD].
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	date := r.URL.Query().Get("date")
	if date != "" {
		req := struct {
			Date string `validate:"datetime=2006-01-02"`
		}{Date: date}
		if apiErr := validateRequest(&req); apiErr != nil {
			respondValidationError(w, apiErr)
			return
		}
	}

	logs, err := h.logbook.List(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list dive logs", err)
		return
	}
	if logs == nil {
		logs = []*models.DiveLog{}
	}
	respondSuccess(w, http.StatusOK, logs, started)
}

// ListUnsynced handles GET /api/v1/logs/unsynced.
func (h *Handler) ListUnsynced(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	logs, err := h.logbook.ListUnsynced(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to list unsynced dive logs", err)
		return
	}
	if logs == nil {
		logs = []*models.DiveLog{}
	}
	respondSuccess(w, http.StatusOK, logs, started)
}

// GetLog handles GET /api/v1/logs/{id}.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")

	log, err := h.logbook.Get(r.Context(), id)
	if errors.Is(err, store.ErrLogNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "dive log not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to load dive log", err)
		return
	}
	respondSuccess(w, http.StatusOK, log, started)
}

// UpdateLog handles PUT /api/v1/logs/{id}. The body replaces the
// stored record; the path id wins over any id in the body.
func (h *Handler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")

	var log models.DiveLog
	if !decodeJSONBody(w, r, &log) {
		return
	}
	log.ID = id
	if !validateLog(w, &log) {
		return
	}

	err := h.logbook.Update(r.Context(), &log)
	if errors.Is(err, store.ErrLogNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "dive log not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to update dive log", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("log_id", id).Msg("Dive log updated")
	respondSuccess(w, http.StatusOK, &log, started)
}

// DeleteLog handles DELETE /api/v1/logs/{id}.
func (h *Handler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")

	err := h.logbook.Delete(r.Context(), id)
	if errors.Is(err, store.ErrLogNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "dive log not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to delete dive log", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("log_id", id).Msg("Dive log deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"id": id}, started)
}
