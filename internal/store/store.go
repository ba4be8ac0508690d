// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

// Package store persists dive logs and the pending-upload queue in an
// embedded BadgerDB instance.
//
// Key layout:
//
//	log:<id>            -> DiveLog JSON
//	log_date:<date>:<id> -> id (secondary index, date in YYYY-MM-DD)
//	log_sync:<0|1>:<id>  -> id (secondary index, 0=unsynced 1=synced)
//	pending:<id>        -> PendingUpload JSON (one entry per log id)
//
// Every local mutation writes the record with isSynced=false and an
// up-to-date pending entry in the same transaction, so a crash can
// never leave a changed record without a queued upload.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/logging"
	"github.com/tomtom215/mergus/internal/metrics"
	"github.com/tomtom215/mergus/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	logKeyPrefix     = "log:"
	dateKeyPrefix    = "log_date:"
	syncKeyPrefix    = "log_sync:"
	pendingKeyPrefix = "pending:"
)

// ErrLogNotFound is returned when a dive log id does not exist.
var ErrLogNotFound = errors.New("dive log not found")

// Store is the BadgerDB-backed local persistence layer.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	s := &Store{db: db}
	if err := s.restorePendingGauge(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tooling.
func (s *Store) DB() *badger.DB {
	return s.db
}

// CreateLog persists a new dive log. An empty ID is assigned a UUID.
// The record is written unsynced with a queued create in the same
// transaction.
func (s *Store) CreateLog(ctx context.Context, log *models.DiveLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now
	log.IsSynced = false

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := writeLog(txn, log); err != nil {
			return err
		}
		return enqueue(txn, &models.PendingUpload{
			LogID:    log.ID,
			Op:       models.OpCreate,
			QueuedAt: now,
			Log:      log,
		})
	})

	observeStoreOp("create_log", err)
	if err != nil {
		return fmt.Errorf("create log %s: %w", log.ID, err)
	}
	metrics.PendingUploads.Inc()
	return nil
}

// GetLog retrieves one dive log by id.
func (s *Store) GetLog(ctx context.Context, id string) (*models.DiveLog, error) {
	var log models.DiveLog

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(logKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrLogNotFound
		}
		if err != nil {
			return fmt.Errorf("get log: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &log)
		})
	})

	observeStoreOp("get_log", err)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// ListLogs returns all dive logs, most recent dive first.
func (s *Store) ListLogs(ctx context.Context) ([]*models.DiveLog, error) {
	logs, err := s.scanLogs(logKeyPrefix)
	observeStoreOp("list_logs", err)
	if err != nil {
		return nil, err
	}
	sortLogs(logs)
	return logs, nil
}

// ListLogsByDate returns all dive logs for one date (YYYY-MM-DD).
func (s *Store) ListLogsByDate(ctx context.Context, date string) ([]*models.DiveLog, error) {
	ids, err := s.scanIndex(dateKeyPrefix + date + ":")
	if err != nil {
		observeStoreOp("list_logs_by_date", err)
		return nil, err
	}
	logs, err := s.getMany(ids)
	observeStoreOp("list_logs_by_date", err)
	if err != nil {
		return nil, err
	}
	sortLogs(logs)
	return logs, nil
}

// ListUnsynced returns all dive logs whose last mutation has not been
// confirmed by the remote backend.
func (s *Store) ListUnsynced(ctx context.Context) ([]*models.DiveLog, error) {
	ids, err := s.scanIndex(syncKeyPrefix + "0:")
	if err != nil {
		observeStoreOp("list_unsynced", err)
		return nil, err
	}
	logs, err := s.getMany(ids)
	observeStoreOp("list_unsynced", err)
	if err != nil {
		return nil, err
	}
	sortLogs(logs)
	return logs, nil
}

// UpdateLog overwrites an existing dive log. CreatedAt is preserved
// from the stored record; the update is queued for replay.
func (s *Store) UpdateLog(ctx context.Context, log *models.DiveLog) error {
	now := time.Now().UTC()

	var hadPending bool
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := readLog(txn, log.ID)
		if err != nil {
			return err
		}

		log.CreatedAt = prev.CreatedAt
		log.UpdatedAt = now
		log.IsSynced = false

		if err := clearIndexes(txn, prev); err != nil {
			return err
		}
		if err := writeLog(txn, log); err != nil {
			return err
		}

		hadPending, err = hasPending(txn, log.ID)
		if err != nil {
			return err
		}
		return enqueue(txn, &models.PendingUpload{
			LogID:    log.ID,
			Op:       models.OpUpdate,
			QueuedAt: now,
			Log:      log,
		})
	})

	observeStoreOp("update_log", err)
	if err != nil {
		return fmt.Errorf("update log %s: %w", log.ID, err)
	}
	if !hadPending {
		metrics.PendingUploads.Inc()
	}
	return nil
}

// DeleteLog removes a dive log and queues the deletion. A record that
// was never synced and still has a queued create is simply dropped;
// the remote side has nothing to delete.
func (s *Store) DeleteLog(ctx context.Context, id string) error {
	now := time.Now().UTC()

	var dropped bool
	var hadPending bool
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := readLog(txn, id)
		if err != nil {
			return err
		}

		if err := clearIndexes(txn, prev); err != nil {
			return err
		}
		if err := txn.Delete([]byte(logKeyPrefix + id)); err != nil {
			return fmt.Errorf("delete log: %w", err)
		}

		pending, err := readPending(txn, id)
		if err != nil {
			return err
		}
		hadPending = pending != nil

		if !prev.IsSynced && pending != nil && pending.Op == models.OpCreate {
			dropped = true
			return txn.Delete([]byte(pendingKeyPrefix + id))
		}
		return enqueue(txn, &models.PendingUpload{
			LogID:    id,
			Op:       models.OpDelete,
			QueuedAt: now,
		})
	})

	observeStoreOp("delete_log", err)
	if err != nil {
		return fmt.Errorf("delete log %s: %w", id, err)
	}
	if dropped {
		metrics.PendingUploads.Dec()
	} else if !hadPending {
		metrics.PendingUploads.Inc()
	}
	return nil
}

// MarkSynced records a confirmed remote write: the log flips to
// isSynced=true and its pending entry is removed. A log deleted
// between enqueue and confirmation only has its queue entry cleared.
func (s *Store) MarkSynced(ctx context.Context, id string) error {
	var hadPending bool
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		hadPending, err = hasPending(txn, id)
		if err != nil {
			return err
		}
		if hadPending {
			if err := txn.Delete([]byte(pendingKeyPrefix + id)); err != nil {
				return fmt.Errorf("delete pending: %w", err)
			}
		}

		log, err := readLog(txn, id)
		if errors.Is(err, ErrLogNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := clearIndexes(txn, log); err != nil {
			return err
		}
		log.IsSynced = true
		return writeLog(txn, log)
	})

	observeStoreOp("mark_synced", err)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	if hadPending {
		metrics.PendingUploads.Dec()
	}
	return nil
}

// writeLog stores the record and both secondary index entries.
func writeLog(txn *badger.Txn, log *models.DiveLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}
	if err := txn.Set([]byte(logKeyPrefix+log.ID), data); err != nil {
		return fmt.Errorf("set log: %w", err)
	}
	if err := txn.Set([]byte(dateKey(log)), []byte(log.ID)); err != nil {
		return fmt.Errorf("set date index: %w", err)
	}
	if err := txn.Set([]byte(syncKey(log)), []byte(log.ID)); err != nil {
		return fmt.Errorf("set sync index: %w", err)
	}
	return nil
}

// readLog fetches a record inside an open transaction.
func readLog(txn *badger.Txn, id string) (*models.DiveLog, error) {
	item, err := txn.Get([]byte(logKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	var log models.DiveLog
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &log)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}
	return &log, nil
}

// clearIndexes removes the secondary index entries derived from a
// record's current state.
func clearIndexes(txn *badger.Txn, log *models.DiveLog) error {
	if err := txn.Delete([]byte(dateKey(log))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete date index: %w", err)
	}
	if err := txn.Delete([]byte(syncKey(log))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete sync index: %w", err)
	}
	return nil
}

func dateKey(log *models.DiveLog) string {
	return dateKeyPrefix + log.Date + ":" + log.ID
}

func syncKey(log *models.DiveLog) string {
	flag := "0"
	if log.IsSynced {
		flag = "1"
	}
	return syncKeyPrefix + flag + ":" + log.ID
}

// scanLogs decodes every record under a prefix.
func (s *Store) scanLogs(prefix string) ([]*models.DiveLog, error) {
	var logs []*models.DiveLog

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var log models.DiveLog
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &log)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable store record")
				continue
			}
			logs = append(logs, &log)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan logs: %w", err)
	}
	return logs, nil
}

// scanIndex collects the ids stored under a secondary index prefix.
func (s *Store) scanIndex(prefix string) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	return ids, nil
}

// getMany fetches records by id, skipping ids deleted since the index
// was read.
func (s *Store) getMany(ids []string) ([]*models.DiveLog, error) {
	logs := make([]*models.DiveLog, 0, len(ids))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			log, err := readLog(txn, id)
			if errors.Is(err, ErrLogNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			logs = append(logs, log)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return logs, nil
}

// sortLogs orders most recent dive first; ties fall back to start time
// and then id so output is deterministic.
func sortLogs(logs []*models.DiveLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Date != logs[j].Date {
			return logs[i].Date > logs[j].Date
		}
		if logs[i].TimeStart != logs[j].TimeStart {
			return logs[i].TimeStart > logs[j].TimeStart
		}
		return logs[i].ID < logs[j].ID
	})
}

// observeStoreOp records one store operation outcome. Not-found reads
// count as success; the caller asked a valid question.
func observeStoreOp(operation string, err error) {
	outcome := "success"
	if err != nil && !errors.Is(err, ErrLogNotFound) {
		outcome = "failure"
	}
	metrics.StoreOperations.WithLabelValues(operation, outcome).Inc()
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+trimNewline(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+trimNewline(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+trimNewline(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace().Msgf("badger: "+trimNewline(format), args...)
}

func trimNewline(format string) string {
	if n := len(format); n > 0 && format[n-1] == '\n' {
		return format[:n-1]
	}
	return format
}
