// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent
// log injection. Newlines and other control bytes could otherwise forge
// log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the standard success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondValidationError sends a VALIDATION_ERROR with field details.
func respondValidationError(w http.ResponseWriter, apiErr *validation.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil when validation passes.
func validateRequest(v interface{}) *validation.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	return validationErr.ToAPIError()
}

// getFloatParam extracts a required float query parameter. The boolean
// is false when the parameter is missing or unparsable; the caller has
// already been answered in that case.
func getFloatParam(w http.ResponseWriter, r *http.Request, key string) (float64, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", fmt.Sprintf("missing required parameter %q", key), nil)
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", fmt.Sprintf("parameter %q must be a number", key), nil)
		return 0, false
	}
	return f, true
}

// getOptionalFloatParam extracts an optional float query parameter.
func getOptionalFloatParam(r *http.Request, key string, defaultValue float64) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// decodeJSONBody decodes a request body, answering MALFORMED_REQUEST on
// failure. The boolean is false when the caller has been answered.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "MALFORMED_REQUEST", "request body is not valid JSON", err)
		return false
	}
	return true
}

// coordsRequest is the shared lat/lng query validation.
type coordsRequest struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// parseCoords extracts and validates lat/lng query parameters. The
// boolean is false when the caller has been answered.
func parseCoords(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	lat, okLat := getFloatParam(w, r, "lat")
	if !okLat {
		return 0, 0, false
	}
	lng, okLng := getFloatParam(w, r, "lng")
	if !okLng {
		return 0, 0, false
	}

	if apiErr := validateRequest(&coordsRequest{Latitude: lat, Longitude: lng}); apiErr != nil {
		respondValidationError(w, apiErr)
		return 0, 0, false
	}
	return lat, lng, true
}
