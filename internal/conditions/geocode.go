// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package conditions

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/models"
)

// GeocodeClient reverse-geocodes coordinates against a Nominatim-compatible
// endpoint.
type GeocodeClient struct {
	*client
	baseURL string
}

// NewGeocodeClient builds the reverse-geocoding fetcher.
func NewGeocodeClient(cfg config.ConditionsConfig) *GeocodeClient {
	return &GeocodeClient{
		client:  newClient("geocode", cfg),
		baseURL: cfg.GeocodeURL,
	}
}

// nominatimResponse is the subset of the Nominatim reverse payload we consume.
type nominatimResponse struct {
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Fetch reverse-geocodes the coordinates.
func (g *GeocodeClient) Fetch(ctx context.Context, lat, lng float64) Result[models.ReverseGeocode] {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "jsonv2")

	body, err := g.get(ctx, g.baseURL, params)
	if err != nil {
		return fail[models.ReverseGeocode](err)
	}

	var raw nominatimResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return fail[models.ReverseGeocode](fmt.Errorf("geocode: decode response: %w", err))
	}

	city := raw.Address.City
	if city == "" {
		city = raw.Address.Town
	}
	if city == "" {
		city = raw.Address.Village
	}

	return ok(&models.ReverseGeocode{
		City:        city,
		Region:      raw.Address.State,
		Country:     raw.Address.Country,
		CountryCode: raw.Address.CountryCode,
	})
}
