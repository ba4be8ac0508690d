// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package conditions fetches weather, marine and reverse-geocoding data
// for a coordinate pair from external providers.
//
// Every provider call is a stateless request/response keyed by
// coordinates. Failures are caught and surfaced as a string message in
// the uniform envelope; no retry policy is applied — the caller decides
// whether to re-invoke. Each provider client carries a circuit breaker
// and a rate limiter so a degraded provider cannot stall the API.
package conditions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/metrics"
)

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 1 << 20 // 1MB

// Result is the uniform envelope every fetcher returns.
// Exactly one of Data/Error is meaningful.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ok wraps a payload in a successful envelope.
func ok[T any](data *T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// fail wraps an error in a failed envelope.
func fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error()}
}

// client is the shared transport for one provider: HTTP client with a
// per-call timeout, a token-bucket limiter, and a circuit breaker.
type client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// newClient builds the shared transport for a named provider.
func newClient(name string, cfg config.ConditionsConfig) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Open after a 60% failure rate with at least 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("provider", name).Str("from", fromStr).Str("to", toStr).Msg("Provider circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &client{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		cb:      cb,
	}
}

// get performs a rate-limited, breaker-protected GET and returns the
// response body.
func (c *client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", c.name, err)
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.doGet(ctx, endpoint, params)
	})
	metrics.ProviderRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ProviderRequestsTotal.WithLabelValues(c.name, "rejected").Inc()
			logging.Warn().Str("provider", c.name).Err(err).Msg("Provider request rejected by circuit breaker")
		} else {
			metrics.ProviderRequestsTotal.WithLabelValues(c.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.ProviderRequestsTotal.WithLabelValues(c.name, "success").Inc()
	return body, nil
}

// doGet is the raw HTTP call the breaker wraps.
func (c *client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := endpoint
	if len(params) > 0 {
		u = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mergus/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d", c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.name, err)
	}
	return body, nil
}

// stateToFloat converts breaker state to the metric encoding.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts breaker state to a label value.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
