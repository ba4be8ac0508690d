// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package config loads and validates Mergus configuration via Koanf v2.
//
// Sources are layered, highest priority last:
//  1. built-in defaults
//  2. config file (config.yaml, or CONFIG_PATH)
//  3. environment variables
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Extract    ExtractConfig    `koanf:"extract"`
	Sites      SitesConfig      `koanf:"sites"`
	Conditions ConditionsConfig `koanf:"conditions"`
	Remote     RemoteConfig     `koanf:"remote"`
	Security   SecurityConfig   `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds the embedded BadgerDB store settings.
type StoreConfig struct {
	Path string `koanf:"path"`
	// InMemory runs badger without disk persistence (tests only).
	InMemory bool `koanf:"in_memory"`
}

// ExtractConfig holds metadata extraction settings.
type ExtractConfig struct {
	// MaxFileSizeBytes caps a single uploaded photo. Validation failures
	// are reported before any parse attempt.
	MaxFileSizeBytes int64 `koanf:"max_file_size_bytes"`
	// GPSConsentDefault applies when a request does not state consent
	// explicitly. When false, coordinates are never read.
	GPSConsentDefault bool `koanf:"gps_consent_default"`
	// TimezoneLookup toggles GPS-based timezone resolution for
	// timestamp reconstruction.
	TimezoneLookup bool `koanf:"timezone_lookup"`
}

// SitesConfig holds dive-site matching settings.
type SitesConfig struct {
	// DefaultRadiusM is the match radius used when a request does not
	// provide one.
	DefaultRadiusM float64 `koanf:"default_radius_m"`
	// MaxRadiusM bounds client-supplied radii.
	MaxRadiusM float64 `koanf:"max_radius_m"`
}

// ConditionsConfig holds the external provider settings.
type ConditionsConfig struct {
	WeatherURL string `koanf:"weather_url"`
	WeatherKey string `koanf:"weather_key"`
	MarineURL  string `koanf:"marine_url"`
	GeocodeURL string `koanf:"geocode_url"`
	// Timeout applies per outbound call.
	Timeout time.Duration `koanf:"timeout"`
	// RatePerSecond throttles each provider client.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// RemoteConfig holds the remote backend settings. The backend is an
// external collaborator: a generic table API with delegated OAuth.
type RemoteConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// ReplayInterval is how often the replay worker probes connectivity
	// and drains the pending-upload queue.
	ReplayInterval time.Duration `koanf:"replay_interval"`
	// ReplayBatchSize bounds how many pending ops one pass replays.
	ReplayBatchSize int `koanf:"replay_batch_size"`
}

// SecurityConfig holds API hardening settings.
type SecurityConfig struct {
	CORSOrigins      []string      `koanf:"cors_origins"`
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	RateLimitDisable bool          `koanf:"rate_limit_disabled"`
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Store.Path == "" && !c.Store.InMemory {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if c.Extract.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("extract.max_file_size_bytes must be positive")
	}
	if c.Sites.DefaultRadiusM <= 0 {
		return fmt.Errorf("sites.default_radius_m must be positive")
	}
	if c.Sites.MaxRadiusM < c.Sites.DefaultRadiusM {
		return fmt.Errorf("sites.max_radius_m must be >= sites.default_radius_m")
	}
	if c.Remote.Enabled {
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url is required when remote.enabled is set")
		}
		if c.Remote.ReplayInterval <= 0 {
			return fmt.Errorf("remote.replay_interval must be positive")
		}
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
