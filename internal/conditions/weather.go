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
	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
)

// WeatherClient proxies an OpenWeatherMap-compatible current-conditions
// API. Without an API key the client serves a fixed mocked payload so
// development setups work end to end.
type WeatherClient struct {
	*client
	baseURL string
	apiKey  string
}

// NewWeatherClient builds the weather fetcher.
func NewWeatherClient(cfg config.ConditionsConfig) *WeatherClient {
	return &WeatherClient{
		client:  newClient("weather", cfg),
		baseURL: cfg.WeatherURL,
		apiKey:  cfg.WeatherKey,
	}
}

// owmResponse is the subset of the OpenWeatherMap payload we consume.
type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"`
}

// mockWeather is returned when no provider key is configured.
func mockWeather() *models.Weather {
	return &models.Weather{
		Condition:      "Clear",
		AirTemperature: 24.0,
		WindSpeed:      3.5,
		Visibility:     10000,
		Humidity:       65,
		Pressure:       1013,
	}
}

// Fetch returns current conditions for the coordinates. The optional
// date selects a historical lookup when the provider supports it; an
// empty date means "now".
func (w *WeatherClient) Fetch(ctx context.Context, lat, lng float64, date string) Result[models.Weather] {
	if w.apiKey == "" {
		metrics.ProviderRequestsTotal.WithLabelValues(w.name, "mocked").Inc()
		return ok(mockWeather())
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("appid", w.apiKey)
	params.Set("units", "metric")
	if date != "" {
		params.Set("dt", date)
	}

	body, err := w.get(ctx, w.baseURL, params)
	if err != nil {
		return fail[models.Weather](err)
	}

	var raw owmResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return fail[models.Weather](fmt.Errorf("weather: decode response: %w", err))
	}

	result := &models.Weather{
		AirTemperature: raw.Main.Temp,
		WindSpeed:      raw.Wind.Speed,
		Visibility:     raw.Visibility,
		Humidity:       raw.Main.Humidity,
		Pressure:       raw.Main.Pressure,
	}
	if len(raw.Weather) > 0 {
		result.Condition = raw.Weather[0].Main
	}

	return ok(result)
}
