// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package exif

import (
	"context"
	"time"

	"github.com/tomtom215/mergus/internal/models"
)

// File is one member of an upload batch.
type File struct {
	Name string
	Data []byte
}

// ExtractBatch processes files strictly sequentially. Sequential
// processing bounds peak memory and keeps progress stable; there is no
// cancellation primitive beyond the context, so an in-flight file runs
// to completion.
func (e *Extractor) ExtractBatch(ctx context.Context, files []File, opts Options) []models.ExifResult {
	results := make([]models.ExifResult, 0, len(files))
	for _, f := range files {
		results = append(results, e.Extract(ctx, f.Name, f.Data, opts))
	}
	return results
}

// SummarizeBatch folds per-file results into the fields the logbook
// form is pre-filled with.
//
// The earliest and latest capture times bound the computed dive
// duration (whole minutes, floored at 1 when two or more timestamps
// exist). The most recent photo carrying GPS is authoritative for
// location; the most recent photo overall supplies the camera.
func SummarizeBatch(results []models.ExifResult) models.BatchSummary {
	var summary models.BatchSummary

	var earliest, latest time.Time
	var latestWithGPS time.Time
	var latestData *models.ExifData
	timestamps := 0

	for i := range results {
		if !results[i].Success || results[i].Data == nil {
			continue
		}
		d := results[i].Data
		if d.DateTaken.IsZero() {
			continue
		}

		timestamps++
		if earliest.IsZero() || d.DateTaken.Before(earliest) {
			earliest = d.DateTaken
		}
		if latest.IsZero() || d.DateTaken.After(latest) {
			latest = d.DateTaken
			latestData = d
		}
		if d.HasGPS && (latestWithGPS.IsZero() || d.DateTaken.After(latestWithGPS)) {
			latestWithGPS = d.DateTaken
			summary.HasGPS = true
			summary.Latitude = d.Latitude
			summary.Longitude = d.Longitude
		}
	}

	if earliest.IsZero() {
		return summary
	}

	summary.Date = earliest.Format("2006-01-02")
	summary.TimeStart = earliest.Format("15:04")
	summary.TimeEnd = latest.Format("15:04")
	if latestData != nil {
		summary.Camera = latestData.Camera
	}

	// Duration needs at least two capture times to bound it. Two photos
	// inside the same minute still count as a one-minute dive.
	if timestamps >= 2 {
		minutes := int(latest.Sub(earliest).Minutes())
		if minutes < 1 {
			minutes = 1
		}
		summary.DivingTime = minutes
	}

	return summary
}
