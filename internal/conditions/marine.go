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

// MarineClient fetches sea-surface conditions from an Open-Meteo
// marine-compatible API. No key is required.
type MarineClient struct {
	*client
	baseURL string
}

// NewMarineClient builds the marine fetcher.
func NewMarineClient(cfg config.ConditionsConfig) *MarineClient {
	return &MarineClient{
		client:  newClient("marine", cfg),
		baseURL: cfg.MarineURL,
	}
}

// openMeteoMarine is the subset of the Open-Meteo marine payload we consume.
type openMeteoMarine struct {
	Current struct {
		SeaSurfaceTemperature float64 `json:"sea_surface_temperature"`
		WaveHeight            float64 `json:"wave_height"`
		SwellWavePeriod       float64 `json:"swell_wave_period"`
	} `json:"current"`
}

// Fetch returns sea-surface conditions for the coordinates. The optional
// date (YYYY-MM-DD) selects a historical day.
func (m *MarineClient) Fetch(ctx context.Context, lat, lng float64, date string) Result[models.Marine] {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("current", "sea_surface_temperature,wave_height,swell_wave_period")
	if date != "" {
		params.Set("start_date", date)
		params.Set("end_date", date)
	}

	body, err := m.get(ctx, m.baseURL, params)
	if err != nil {
		return fail[models.Marine](err)
	}

	var raw openMeteoMarine
	if err := json.Unmarshal(body, &raw); err != nil {
		return fail[models.Marine](fmt.Errorf("marine: decode response: %w", err))
	}

	return ok(&models.Marine{
		SeaSurfaceTemperature: raw.Current.SeaSurfaceTemperature,
		WaveHeight:            raw.Current.WaveHeight,
		SwellPeriod:           raw.Current.SwellWavePeriod,
	})
}
