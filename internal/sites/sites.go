// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package sites matches GPS coordinates against the bundled dive-site
// dataset using great-circle distance. The dataset is read-only at
// runtime; matching is pure computation and safe for concurrent use.
package sites

import (
	"fmt"
	"math"
	"sort"

	_ "embed"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
)

//go:embed data/dive_sites.json
var diveSitesJSON []byte

// earthRadiusM is the Earth radius used for haversine, in meters.
const earthRadiusM = 6371000.0

// Matcher answers nearest-site queries over the reference dataset.
type Matcher struct {
	sites []models.DiveSite
}

// NewMatcher loads the bundled dataset.
func NewMatcher() (*Matcher, error) {
	var sites []models.DiveSite
	if err := json.Unmarshal(diveSitesJSON, &sites); err != nil {
		return nil, fmt.Errorf("failed to parse bundled dive sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("bundled dive site dataset is empty")
	}
	return &Matcher{sites: sites}, nil
}

// NewMatcherWithSites builds a matcher over an explicit dataset. Used by
// tests and by deployments that ship their own site list.
func NewMatcherWithSites(sites []models.DiveSite) *Matcher {
	return &Matcher{sites: sites}
}

// Sites returns the reference dataset.
func (m *Matcher) Sites() []models.DiveSite {
	return m.sites
}

// FindNearest returns the closest site within radiusM meters of the
// query point. The boolean is false when no site is in range; that is
// not an error. Ties keep the first-encountered site.
func (m *Matcher) FindNearest(lat, lng, radiusM float64) (*models.SiteMatch, bool) {
	var best *models.SiteMatch
	for i := range m.sites {
		d := HaversineDistance(lat, lng, m.sites[i].Latitude, m.sites[i].Longitude)
		if d > radiusM {
			continue
		}
		// Strict closest-wins: equal distances retain the earlier site.
		if best == nil || d < best.DistanceM {
			best = &models.SiteMatch{Site: m.sites[i], DistanceM: d}
		}
	}

	if best == nil {
		metrics.SiteMatchesTotal.WithLabelValues("unmatched").Inc()
		return nil, false
	}
	metrics.SiteMatchesTotal.WithLabelValues("matched").Inc()
	return best, true
}

// FindNearby returns all sites within radiusM meters, sorted by distance
// ascending. Equal distances retain dataset order. An empty slice means
// nothing was in range.
func (m *Matcher) FindNearby(lat, lng, radiusM float64) []models.SiteMatch {
	var matches []models.SiteMatch
	for i := range m.sites {
		d := HaversineDistance(lat, lng, m.sites[i].Latitude, m.sites[i].Longitude)
		if d <= radiusM {
			matches = append(matches, models.SiteMatch{Site: m.sites[i], DistanceM: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceM < matches[j].DistanceM
	})

	return matches
}

// HaversineDistance calculates the great-circle distance between two
// points on Earth. Returns meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}
