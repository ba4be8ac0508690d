// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mergus/config.yaml",
	"/etc/mergus/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8347,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:     "/data/mergus",
			InMemory: false,
		},
		Extract: ExtractConfig{
			MaxFileSizeBytes:  50 << 20, // 50MB
			GPSConsentDefault: false,    // GPS is opt-in
			TimezoneLookup:    true,
		},
		Sites: SitesConfig{
			DefaultRadiusM: 5000,
			MaxRadiusM:     100000,
		},
		Conditions: ConditionsConfig{
			WeatherURL:    "https://api.openweathermap.org/data/2.5/weather",
			WeatherKey:    "", // Mocked payload when empty
			MarineURL:     "https://marine-api.open-meteo.com/v1/marine",
			GeocodeURL:    "https://nominatim.openstreetmap.org/reverse",
			Timeout:       10 * time.Second,
			RatePerSecond: 1,
			RateBurst:     3,
		},
		Remote: RemoteConfig{
			Enabled:         false, // Offline-only by default
			URL:             "",
			APIKey:          "",
			Timeout:         15 * time.Second,
			ReplayInterval:  time.Minute,
			ReplayBatchSize: 100,
		},
		Security: SecurityConfig{
			CORSOrigins:      []string{"*"},
			RateLimitReqs:    300,
			RateLimitWindow:  time.Minute,
			RateLimitDisable: false,
		},
	}
}

// envMappings maps flat environment variable names onto nested config
// paths. Anything not listed falls through to the generic
// MERGUS_SECTION_FIELD transform.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"store_path":      "store.path",
	"store_in_memory": "store.in_memory",

	"max_file_size_bytes": "extract.max_file_size_bytes",
	"gps_consent_default": "extract.gps_consent_default",
	"timezone_lookup":     "extract.timezone_lookup",

	"site_radius_m":     "sites.default_radius_m",
	"site_max_radius_m": "sites.max_radius_m",

	"weather_url":         "conditions.weather_url",
	"weather_api_key":     "conditions.weather_key",
	"marine_url":          "conditions.marine_url",
	"geocode_url":         "conditions.geocode_url",
	"provider_timeout":    "conditions.timeout",
	"provider_rate":       "conditions.rate_per_second",
	"provider_rate_burst": "conditions.rate_burst",

	"remote_enabled":    "remote.enabled",
	"remote_url":        "remote.url",
	"remote_api_key":    "remote.api_key",
	"remote_timeout":    "remote.timeout",
	"replay_interval":   "remote.replay_interval",
	"replay_batch_size": "remote.replay_batch_size",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
}

// sliceConfigPaths lists paths whose env values arrive as comma-separated
// strings but are consumed as slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// envTransformFunc converts an environment variable name to its koanf
// path. Unknown variables without the MERGUS_ prefix are skipped so that
// unrelated process environment does not leak into the config.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	hadPrefix := strings.HasPrefix(lower, "mergus_")
	lower = strings.TrimPrefix(lower, "mergus_")

	if mapped, ok := envMappings[lower]; ok {
		return mapped
	}

	if !hadPrefix {
		return ""
	}

	// Generic fallback for prefixed vars: MERGUS_SECTION_FIELD -> section.field
	if idx := strings.Index(lower, "_"); idx > 0 {
		return lower[:idx] + "." + lower[idx+1:]
	}
	return lower
}

// processSliceFields converts comma-separated env strings to slices for
// the known slice-typed paths.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// findConfigFile returns the config file to load, or "" when none exists.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDefault returns the built-in defaults without touching the
// filesystem or environment. Used by tests.
func LoadDefault() *Config {
	return defaultConfig()
}
