// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package exif

import (
	"fmt"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// exifTimeLayout is the wall-clock layout cameras write into
// DateTimeOriginal and friends. It carries no zone information.
const exifTimeLayout = "2006:01:02 15:04:05"

// TimezoneResolver resolves an IANA timezone name from coordinates.
// Satisfied by tzf's finder types. Note the lng-first argument order,
// which follows tzf.
type TimezoneResolver interface {
	GetTimezoneName(lng, lat float64) string
}

// gpsUTCTime reconstructs the GPS capture instant (UTC) from
// GPSDateStamp + GPSTimeStamp. Both fields are optional in practice;
// an error means the pair was absent or malformed, not that the file
// is bad.
func gpsUTCTime(x *goexif.Exif) (time.Time, error) {
	dateTag, err := x.Get(goexif.GPSDateStamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("no gps date stamp: %w", err)
	}
	dateStr, err := dateTag.StringVal()
	if err != nil {
		return time.Time{}, fmt.Errorf("gps date stamp: %w", err)
	}

	timeTag, err := x.Get(goexif.GPSTimeStamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("no gps time stamp: %w", err)
	}

	// GPSTimeStamp is three rationals: hours, minutes, seconds.
	var hms [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := timeTag.Rat2(i)
		if err != nil {
			return time.Time{}, fmt.Errorf("gps time stamp component %d: %w", i, err)
		}
		if den == 0 {
			return time.Time{}, fmt.Errorf("gps time stamp component %d: zero denominator", i)
		}
		hms[i] = float64(num) / float64(den)
	}

	// Some firmwares write the date with dashes instead of colons.
	dateStr = strings.ReplaceAll(strings.TrimSpace(dateStr), "-", ":")
	day, err := time.Parse("2006:01:02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("gps date stamp %q: %w", dateStr, err)
	}

	secs := int(hms[2])
	nanos := int((hms[2] - float64(secs)) * float64(time.Second))

	return time.Date(day.Year(), day.Month(), day.Day(),
		int(hms[0]), int(hms[1]), secs, nanos, time.UTC), nil
}

// cameraWallClock reads the camera's embedded wall-clock field
// (DateTimeOriginal, falling back to DateTime) and interprets it in loc.
// The field has no zone of its own, so loc decides what instant the
// wall-clock text means; callers pass the resolved dive-site zone when
// one is known and time.Local otherwise.
func cameraWallClock(x *goexif.Exif, loc *time.Location) (time.Time, error) {
	for _, field := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(s), loc)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("no usable camera timestamp field")
}

// resolveLocation returns the IANA zone for the coordinates, or nil when
// no zone can be determined. Resolution failures are not errors: the
// caller degrades to local interpretation.
func (e *Extractor) resolveLocation(lat, lng float64) (*time.Location, string) {
	if e.tz == nil {
		return nil, ""
	}
	name := e.tz.GetTimezoneName(lng, lat)
	if name == "" {
		return nil, ""
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ""
	}
	return loc, name
}

// reconstructTimestamp derives the capture time for one file.
//
// Preference order:
//  1. GPS timestamp (UTC) expressed in the location's zone,
//  2. camera wall clock interpreted in the location's zone,
//  3. camera wall clock interpreted in the server's local zone.
//
// The returned zone name is empty when rule 3 applied.
func (e *Extractor) reconstructTimestamp(x *goexif.Exif, hasGPS bool, lat, lng float64) (time.Time, string, error) {
	var loc *time.Location
	var zoneName string
	if hasGPS {
		loc, zoneName = e.resolveLocation(lat, lng)
	}

	if loc != nil {
		if utc, err := gpsUTCTime(x); err == nil {
			return utc.In(loc), zoneName, nil
		}
		wall, err := cameraWallClock(x, loc)
		if err != nil {
			return time.Time{}, "", err
		}
		return wall, zoneName, nil
	}

	wall, err := cameraWallClock(x, time.Local)
	if err != nil {
		return time.Time{}, "", err
	}
	return wall, "", nil
}
