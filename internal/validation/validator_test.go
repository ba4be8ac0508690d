// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package validation

import (
	"strings"
	"testing"
)

type coordsPayload struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

type logPayload struct {
	Date      string `validate:"required,datetime=2006-01-02"`
	TimeStart string `validate:"omitempty,datetime=15:04"`
	Level     string `validate:"omitempty,oneof=debug info warn error"`
	Notes     string `validate:"omitempty,max=10"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	t.Run("valid coordinates", func(t *testing.T) {
		t.Parallel()

		if err := ValidateStruct(&coordsPayload{Latitude: 33.5, Longitude: 126.5}); err != nil {
			t.Errorf("ValidateStruct() = %v, want nil", err)
		}
	})

	t.Run("latitude out of range", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&coordsPayload{Latitude: 91, Longitude: 0})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
		if len(err.Errors()) != 1 {
			t.Fatalf("len(Errors()) = %d, want 1", len(err.Errors()))
		}
		if got := err.Errors()[0].Field(); got != "Latitude" {
			t.Errorf("Field() = %q, want Latitude", got)
		}
		if !strings.Contains(err.Error(), "-90 to 90") {
			t.Errorf("Error() = %q, want range hint", err.Error())
		}
	})

	t.Run("missing required date", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&logPayload{})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
		if !strings.Contains(err.Error(), "Date is required") {
			t.Errorf("Error() = %q, want required message", err.Error())
		}
	})

	t.Run("bad time format", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&logPayload{Date: "2026-07-15", TimeStart: "25:99"})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
	})

	t.Run("oneof", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&logPayload{Date: "2026-07-15", Level: "verbose"})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
		if !strings.Contains(err.Error(), "must be one of") {
			t.Errorf("Error() = %q, want oneof message", err.Error())
		}
	})

	t.Run("string max message mentions characters", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&logPayload{Date: "2026-07-15", Notes: "this is far too long"})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
		if !strings.Contains(err.Error(), "at most 10 characters") {
			t.Errorf("Error() = %q, want character-count message", err.Error())
		}
	})
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	t.Run("single failure carries field details", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&coordsPayload{Latitude: 120, Longitude: 0})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}

		apiErr := err.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		if apiErr.Details["field"] != "Latitude" {
			t.Errorf("Details[field] = %v, want Latitude", apiErr.Details["field"])
		}
	})

	t.Run("multiple failures are aggregated", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(&coordsPayload{Latitude: 120, Longitude: 200})
		if err == nil {
			t.Fatal("ValidateStruct() = nil, want error")
		}
		if len(err.Errors()) != 2 {
			t.Fatalf("len(Errors()) = %d, want 2", len(err.Errors()))
		}

		apiErr := err.ToAPIError()
		if _, ok := apiErr.Details["fields"]; !ok {
			t.Error("Details missing aggregated fields list")
		}
	})
}
