// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/store"
)

// Replayer drains the pending-upload queue against the remote backend.
// It runs as a supervised service and can also be invoked on demand
// through the sync API.
type Replayer struct {
	client    *Client
	store     *store.Store
	interval  time.Duration
	batchSize int
}

// NewReplayer wires the replay worker. A nil client disables periodic
// replay; queued uploads then wait for a manual trigger with a
// configured backend.
func NewReplayer(client *Client, st *store.Store, cfg config.RemoteConfig) *Replayer {
	interval := cfg.ReplayInterval
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.ReplayBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Replayer{
		client:    client,
		store:     st,
		interval:  interval,
		batchSize: batch,
	}
}

// Serve implements suture.Service: probe connectivity on every tick
// and drain the queue when the backend answers.
func (r *Replayer) Serve(ctx context.Context) error {
	if r.client == nil {
		logging.Info().Msg("Remote backend disabled; replay worker idle")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("Replay worker started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !r.client.Available(ctx) {
				logging.Debug().Msg("Remote backend unreachable; keeping queue")
				continue
			}
			if _, err := r.ReplayOnce(ctx); err != nil {
				logging.Warn().Err(err).Msg("Replay pass ended early")
			}
		}
	}
}

func (r *Replayer) String() string {
	return "sync-replayer"
}

// ReplayOnce drains queued uploads oldest first, stopping at the first
// failure so ordering is preserved for the next pass. Returns how many
// operations were confirmed.
func (r *Replayer) ReplayOnce(ctx context.Context) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("remote backend disabled")
	}

	pending, err := r.store.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		metrics.ReplayLastSuccess.SetToCurrentTime()
		return 0, nil
	}

	replayed := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		if err := r.replayOne(ctx, p); err != nil {
			metrics.ReplayOperations.WithLabelValues(string(p.Op), "failure").Inc()
			logging.Warn().Err(err).Str("log_id", p.LogID).Str("op", string(p.Op)).Msg("Replay stopped on failed operation")
			return replayed, err
		}
		metrics.ReplayOperations.WithLabelValues(string(p.Op), "success").Inc()
		replayed++
	}

	metrics.ReplayLastSuccess.SetToCurrentTime()
	logging.Info().Int("replayed", replayed).Msg("Replay pass completed")
	return replayed, nil
}

// replayOne pushes a single queued operation. The current local record
// is preferred over the enqueue-time snapshot so replay always sends
// the freshest state.
func (r *Replayer) replayOne(ctx context.Context, p *models.PendingUpload) error {
	switch p.Op {
	case models.OpCreate, models.OpUpdate:
		log, err := r.store.GetLog(ctx, p.LogID)
		if err != nil {
			log = p.Log
		}
		if log == nil {
			// Record vanished without a queued delete; nothing to push.
			return r.store.MarkSynced(ctx, p.LogID)
		}
		if err := r.client.UpsertLog(ctx, log); err != nil {
			return err
		}
		return r.store.MarkSynced(ctx, p.LogID)

	case models.OpDelete:
		if err := r.client.DeleteLog(ctx, p.LogID); err != nil {
			return err
		}
		return r.store.MarkSynced(ctx, p.LogID)

	default:
		return fmt.Errorf("unknown pending op %q", p.Op)
	}
}
