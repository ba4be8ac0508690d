// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package metrics provides Prometheus instrumentation for Mergus:
// API endpoint latency/throughput, extraction strategy outcomes,
// external provider calls and circuit breaker state, local store
// operations, and sync replay progress.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Extraction metrics
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exif_extractions_total",
			Help: "Total number of EXIF extraction attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: success, failure, skipped
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exif_extraction_duration_seconds",
			Help:    "Duration of a single file extraction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Site matcher metrics
	SiteMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_matches_total",
			Help: "Total number of dive site match queries",
		},
		[]string{"result"}, // matched, unmatched
	)

	// External provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of external provider requests",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure, rejected, mocked
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "External provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Local store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of local store operations",
		},
		[]string{"operation", "outcome"},
	)

	PendingUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_uploads",
			Help: "Current number of queued pending uploads",
		},
	)

	// Sync replay metrics
	ReplayOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_replay_operations_total",
			Help: "Total number of replayed pending operations",
		},
		[]string{"op", "outcome"},
	)

	ReplayLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_replay_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful replay pass",
		},
	)
)

// ObserveAPIRequest records one completed HTTP request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
