// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package remote talks to the remote logbook backend. The backend is
// optional: when it is disabled or unreachable Mergus keeps working
// from the local store and queued mutations are replayed later.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/models"
)

// Client is the HTTP client for the remote logbook backend.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a backend client from configuration. Returns nil
// when the remote backend is disabled; callers treat a nil client as
// permanently offline.
func NewClient(cfg config.RemoteConfig) *Client {
	if !cfg.Enabled {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	warnIfTokenExpiring(cfg.APIKey)

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// warnIfTokenExpiring inspects a JWT-shaped API key and logs when it
// is expired or close to it. Opaque keys pass through silently.
func warnIfTokenExpiring(apiKey string) {
	if strings.Count(apiKey, ".") != 2 {
		return
	}

	token, _, err := jwt.NewParser().ParseUnverified(apiKey, jwt.MapClaims{})
	if err != nil {
		return
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	switch {
	case time.Now().After(exp.Time):
		logging.Warn().Time("expired_at", exp.Time).Msg("Remote API token is expired; sync will fail until it is rotated")
	case time.Until(exp.Time) < 7*24*time.Hour:
		logging.Warn().Time("expires_at", exp.Time).Msg("Remote API token expires within a week")
	}
}

// Available probes the backend health endpoint. Any well-formed
// response counts as reachable; replay decides per-operation success.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	return resp.StatusCode < 500
}

// UpsertLog writes a dive log to the backend, overwriting any remote
// record with the same id. Creates and updates converge on the same
// call so replay order cannot produce duplicates.
func (c *Client) UpsertLog(ctx context.Context, log *models.DiveLog) error {
	if c == nil {
		return fmt.Errorf("remote backend disabled")
	}

	body, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}

	return c.do(ctx, http.MethodPut, "/logs/"+url.PathEscape(log.ID), body)
}

// DeleteLog removes a dive log from the backend. A 404 counts as
// success; the desired end state already holds.
func (c *Client) DeleteLog(ctx context.Context, id string) error {
	if c == nil {
		return fmt.Errorf("remote backend disabled")
	}
	return c.do(ctx, http.MethodDelete, "/logs/"+url.PathEscape(id), nil)
}

// do issues one authenticated request and maps non-2xx to errors.
func (c *Client) do(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck

	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}
