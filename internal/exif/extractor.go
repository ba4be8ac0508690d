// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package exif extracts photo metadata (capture timestamp, GPS
// coordinates, camera make/model) for logbook pre-fill.
//
// Extraction is an ordered chain of capability-checked strategies:
// a direct decode of the binary buffer, a HEIC/HEIF container
// extraction retry, and a permissive marker-scan fallback. Each file is
// independent; a failed extraction degrades to manual form entry and is
// never fatal to the batch.
//
// GPS reads are gated by an explicit consent flag. When consent is
// withheld, coordinates are not read even if present in the file.
package exif

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
)

// Validation errors are reported to the user before any parse attempt.
var (
	ErrFileTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
)

// allowedExtensions are the photo types accepted for extraction.
var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".heic": true, ".heif": true,
	".tif": true, ".tiff": true,
}

// Options control one extraction call.
type Options struct {
	// GPSConsent gates coordinate reads. Without consent, location
	// fields stay empty even when the file carries GPS tags.
	GPSConsent bool
}

// Extractor runs the strategy chain over uploaded photos.
type Extractor struct {
	cfg        config.ExtractConfig
	strategies []strategy
	tz         TimezoneResolver
}

// NewExtractor creates an extractor. tz may be nil, in which case
// timestamps are never shifted into the dive location's zone.
func NewExtractor(cfg config.ExtractConfig, tz TimezoneResolver) *Extractor {
	if !cfg.TimezoneLookup {
		tz = nil
	}
	return &Extractor{
		cfg:        cfg,
		strategies: defaultStrategies(),
		tz:         tz,
	}
}

// Validate checks file type and size. A validation failure means
// extraction is never attempted for the file.
func (e *Extractor) Validate(filename string, size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if size > e.cfg.MaxFileSizeBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, e.cfg.MaxFileSizeBytes)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return nil
}

// Extract runs the strategy chain over one file and returns a
// best-effort result. Errors are folded into the result; the only way
// this is "fatal" is a canceled context.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte, opts Options) models.ExifResult {
	result := models.ExifResult{SourceFile: filename}

	if err := e.Validate(filename, int64(len(data))); err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			return result
		}
		if !s.CanHandle(filename, data) {
			metrics.ExtractionsTotal.WithLabelValues(s.Name(), "skipped").Inc()
			continue
		}

		x, err := s.Decode(data)
		if err != nil {
			metrics.ExtractionsTotal.WithLabelValues(s.Name(), "failure").Inc()
			logging.Ctx(ctx).Debug().Str("file", filename).Str("strategy", s.Name()).Err(err).Msg("Extraction strategy failed")
			lastErr = err
			continue
		}

		metrics.ExtractionsTotal.WithLabelValues(s.Name(), "success").Inc()
		result.Success = true
		result.Data = e.buildData(x, opts)
		result.Strategy = s.Name()
		return result
	}

	if lastErr == nil {
		lastErr = errors.New("no exif data found")
	}
	result.Error = lastErr.Error()
	logging.Ctx(ctx).Debug().Str("file", filename).Err(lastErr).Msg("All extraction strategies exhausted")
	return result
}

// buildData converts a decoded EXIF structure into the transport model.
// Every field is optional: a file with camera or GPS data but no usable
// timestamp still yields those fields, with a zero DateTaken.
func (e *Extractor) buildData(x *goexif.Exif, opts Options) *models.ExifData {
	data := &models.ExifData{}

	if opts.GPSConsent {
		if lat, lng, err := x.LatLong(); err == nil {
			data.HasGPS = true
			data.Latitude = lat
			data.Longitude = lng
		}
	}

	if taken, zone, err := e.reconstructTimestamp(x, data.HasGPS, data.Latitude, data.Longitude); err == nil {
		data.DateTaken = taken
		data.Timezone = zone
	}

	data.Make = stringField(x, goexif.Make)
	data.Model = stringField(x, goexif.Model)
	data.Lens = stringField(x, goexif.LensModel)
	data.Camera = strings.TrimSpace(data.Make + " " + data.Model)

	return data
}

// stringField reads an optional string tag, returning "" when absent.
func stringField(x *goexif.Exif, name goexif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
