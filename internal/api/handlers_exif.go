// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/mergus/internal/exif"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
)

// maxBatchFiles bounds how many photos one extraction request may carry.
const maxBatchFiles = 50

// extractResponse is the payload of a successful extraction call.
type extractResponse struct {
	Results []models.ExifResult `json:"results"`
	Summary models.BatchSummary `json:"summary"`
	Draft   *models.DiveLog     `json:"draft"`
}

// ExtractEXIF handles POST /api/v1/exif. It accepts a multipart form
// with one or more files under the "photos" field and an optional
// "gps_consent" value. Per-file failures are reported in the result
// list; the request itself only fails on malformed input.
//
// Uploaded bytes are processed in memory and discarded; originals are
// never stored.
func (h *Handler) ExtractEXIF(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	// Cap the whole form at batch size times the per-file limit.
	maxMemory := h.cfg.Extract.MaxFileSizeBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxMemory*maxBatchFiles)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "request is not a valid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	fileHeaders := r.MultipartForm.File["photos"]
	if len(fileHeaders) == 0 {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", `no files provided under the "photos" field`, nil)
		return
	}
	if len(fileHeaders) > maxBatchFiles {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("too many files: %d (limit %d)", len(fileHeaders), maxBatchFiles), nil)
		return
	}

	opts := exif.Options{GPSConsent: h.cfg.Extract.GPSConsentDefault}
	if v := r.FormValue("gps_consent"); v != "" {
		consent, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "gps_consent must be a boolean", nil)
			return
		}
		opts.GPSConsent = consent
	}

	files := make([]exif.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "unreadable file in form", err)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxMemory+1))
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "unreadable file in form", err)
			return
		}
		files = append(files, exif.File{Name: fh.Filename, Data: data})
	}

	results := h.extractor.ExtractBatch(r.Context(), files, opts)
	summary := exif.SummarizeBatch(results)
	draft := h.logbook.BuildDraft(r.Context(), summary)

	succeeded := 0
	for i := range results {
		if results[i].Success {
			succeeded++
		}
	}
	logging.Ctx(r.Context()).Info().
		Int("files", len(files)).
		Int("succeeded", succeeded).
		Bool("gps_consent", opts.GPSConsent).
		Msg("Extraction batch processed")

	respondSuccess(w, http.StatusOK, &extractResponse{
		Results: results,
		Summary: summary,
		Draft:   draft,
	}, started)
}
