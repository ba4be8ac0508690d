// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
)

// enqueue writes (or overwrites) the pending entry for a log id inside
// an open transaction. One entry per id: the newest queued operation
// wins.
func enqueue(txn *badger.Txn, p *models.PendingUpload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}
	if err := txn.Set([]byte(pendingKeyPrefix+p.LogID), data); err != nil {
		return fmt.Errorf("set pending: %w", err)
	}
	return nil
}

// hasPending reports whether a pending entry exists for the log id.
func hasPending(txn *badger.Txn, logID string) (bool, error) {
	_, err := txn.Get([]byte(pendingKeyPrefix + logID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pending: %w", err)
	}
	return true, nil
}

// readPending fetches the pending entry for a log id, nil when absent.
func readPending(txn *badger.Txn, logID string) (*models.PendingUpload, error) {
	item, err := txn.Get([]byte(pendingKeyPrefix + logID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	var p models.PendingUpload
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal pending: %w", err)
	}
	return &p, nil
}

// ListPending returns queued uploads oldest first, at most limit
// entries (0 means all).
func (s *Store) ListPending(ctx context.Context, limit int) ([]*models.PendingUpload, error) {
	var pending []*models.PendingUpload

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p models.PendingUpload
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return fmt.Errorf("unmarshal pending: %w", err)
			}
			pending = append(pending, &p)
		}
		return nil
	})

	observeStoreOp("list_pending", err)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].QueuedAt.Before(pending[j].QueuedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// PendingCount returns the number of queued uploads.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	observeStoreOp("pending_count", err)
	return count, err
}

// GetPending returns the queued upload for a log id, or nil when the
// log has nothing queued.
func (s *Store) GetPending(ctx context.Context, logID string) (*models.PendingUpload, error) {
	var p *models.PendingUpload
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = readPending(txn, logID)
		return err
	})
	observeStoreOp("get_pending", err)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// restorePendingGauge seeds the pending-uploads gauge from disk on
// startup so the metric survives restarts.
func (s *Store) restorePendingGauge() error {
	count, err := s.PendingCount(context.Background())
	if err != nil {
		return fmt.Errorf("restore pending gauge: %w", err)
	}
	metrics.PendingUploads.Set(float64(count))
	return nil
}
