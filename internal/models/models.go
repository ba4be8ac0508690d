// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package models defines the core domain types shared across Mergus:
// dive logs, dive photos, dive sites, extraction results, the pending
// sync queue entries, and the API response envelope.
package models

import (
	"time"
)

// DiveLog is one logged dive. Created client-side on form submit,
// mutated by further edits, and synchronized to the remote backend
// via the pending-upload queue.
type DiveLog struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Date is the dive date in YYYY-MM-DD form.
	Date      string `json:"date"`
	TimeStart string `json:"timeStart,omitempty"` // HH:MM
	TimeEnd   string `json:"timeEnd,omitempty"`   // HH:MM
	// DivingTime is the dive duration in minutes.
	DivingTime int `json:"divingTime,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	SiteName  string  `json:"siteName,omitempty"`
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`

	MaxDepth float64 `json:"maxDepth,omitempty"` // meters
	AvgDepth float64 `json:"avgDepth,omitempty"` // meters

	WaterTemp float64 `json:"waterTemp,omitempty"` // Celsius
	AirTemp   float64 `json:"airTemp,omitempty"`   // Celsius

	Suit     string  `json:"suit,omitempty"`
	TankType string  `json:"tankType,omitempty"`
	Gas      string  `json:"gas,omitempty"`
	StartBar float64 `json:"startBar,omitempty"`
	EndBar   float64 `json:"endBar,omitempty"`
	WeightKg float64 `json:"weightKg,omitempty"`

	Visibility string `json:"visibility,omitempty"`
	Current    string `json:"current,omitempty"`
	Conditions string `json:"conditions,omitempty"`

	Buddy string `json:"buddy,omitempty"`
	Guide string `json:"guide,omitempty"`
	Notes string `json:"notes,omitempty"`

	IsPublic bool `json:"isPublic"`

	// IsSynced is true only after a confirmed remote write. Any local
	// mutation resets it to false and enqueues a pending-upload record.
	IsSynced bool `json:"isSynced"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DivePhoto references a DiveLog. Originals are intentionally discarded;
// only a thumbnail URL and the extraction flag are kept.
type DivePhoto struct {
	ID            string    `json:"id"`
	LogID         string    `json:"logId"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	ExifExtracted bool      `json:"exifExtracted"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ExifData is the metadata recovered from a single photo.
type ExifData struct {
	// DateTaken is the capture time expressed in the dive location's
	// wall clock when a timezone could be resolved.
	DateTaken time.Time `json:"dateTaken"`
	// Timezone is the IANA zone name the timestamp was resolved in,
	// empty when no zone could be determined.
	Timezone string `json:"timezone,omitempty"`

	HasGPS    bool    `json:"hasGps"`
	Latitude  float64 `json:"gpsLat,omitempty"`
	Longitude float64 `json:"gpsLng,omitempty"`

	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	Camera string `json:"camera,omitempty"`
	Lens   string `json:"lens,omitempty"`
}

// ExifResult is the transient outcome of extracting one file.
// It is never persisted.
type ExifResult struct {
	Success    bool      `json:"success"`
	Data       *ExifData `json:"data,omitempty"`
	Error      string    `json:"error,omitempty"`
	SourceFile string    `json:"sourceFile"`
	// Strategy names the extraction strategy that produced the data.
	Strategy string `json:"strategy,omitempty"`
}

// BatchSummary aggregates a multi-photo extraction batch into the
// fields the logbook form is pre-filled with.
type BatchSummary struct {
	// DivingTime is latest-earliest capture time in whole minutes,
	// floored at 1 when at least two timestamps exist.
	DivingTime int    `json:"divingTime,omitempty"`
	TimeStart  string `json:"timeStart,omitempty"`
	TimeEnd    string `json:"timeEnd,omitempty"`
	Date       string `json:"date,omitempty"`

	// Location fields come from the most recent photo carrying GPS.
	HasGPS    bool    `json:"hasGps"`
	Latitude  float64 `json:"gpsLat,omitempty"`
	Longitude float64 `json:"gpsLng,omitempty"`

	Camera string `json:"camera,omitempty"`
}

// DiveSite is static reference data loaded from the bundled dataset.
// Read-only at runtime.
type DiveSite struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Region    string  `json:"region,omitempty"`
}

// SiteMatch pairs a reference site with its distance from a query point.
type SiteMatch struct {
	Site DiveSite `json:"site"`
	// DistanceM is the great-circle distance in meters.
	DistanceM float64 `json:"distanceM"`
}

// PendingOp is the kind of queued mutation.
type PendingOp string

const (
	OpCreate PendingOp = "create"
	OpUpdate PendingOp = "update"
	OpDelete PendingOp = "delete"
)

// PendingUpload is a queued mutation awaiting replay against the remote
// backend. Keyed by the dive log id: a newer operation for the same log
// overwrites the older entry.
type PendingUpload struct {
	LogID    string    `json:"logId"`
	Op       PendingOp `json:"op"`
	QueuedAt time.Time `json:"queuedAt"`
	// Log is a snapshot of the record at enqueue time; nil for deletes.
	Log *DiveLog `json:"log,omitempty"`
}

// Weather is the condition payload returned by the weather proxy.
type Weather struct {
	Condition      string  `json:"condition"`
	AirTemperature float64 `json:"airTemperature"`
	WindSpeed      float64 `json:"windSpeed"`
	Visibility     float64 `json:"visibility"`
	Humidity       float64 `json:"humidity"`
	Pressure       float64 `json:"pressure"`
}

// Marine is the ocean condition payload.
type Marine struct {
	SeaSurfaceTemperature float64 `json:"seaSurfaceTemperature"`
	WaveHeight            float64 `json:"waveHeight"`
	SwellPeriod           float64 `json:"swellPeriod,omitempty"`
}

// ReverseGeocode is the reverse-geocoding payload.
type ReverseGeocode struct {
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode,omitempty"`
}

// ClientLogEntry is one record accepted by the client-side error sink.
type ClientLogEntry struct {
	Level     string         `json:"level" validate:"required,oneof=debug info warn error"`
	Message   string         `json:"message" validate:"required,max=4096"`
	Component string         `json:"component,omitempty" validate:"max=256"`
	Data      map[string]any `json:"data,omitempty"`
	URL       string         `json:"url,omitempty" validate:"max=2048"`
	UserAgent string         `json:"userAgent,omitempty" validate:"max=1024"`
}
