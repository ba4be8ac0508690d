// Mergus - Dive Logging and Site Intelligence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mergus

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/mergus/internal/config"
	"github.com/tomtom215/mergus/internal/models"
	"github.com/tomtom215/mergus/internal/store"
)

// fakeBackend records the upserts and deletes it receives.
type fakeBackend struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
	failAll bool
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/logs/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failAll {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		id := r.URL.Path[len("/logs/"):]
		switch r.Method {
		case http.MethodPut:
			f.upserts = append(f.upserts, id)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			f.deletes = append(f.deletes, id)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (f *fakeBackend) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts), len(f.deletes)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestReplayer(t *testing.T, backend http.Handler) (*Replayer, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := config.RemoteConfig{
		Enabled:         true,
		URL:             srv.URL,
		Timeout:         5 * time.Second,
		ReplayInterval:  time.Minute,
		ReplayBatchSize: 100,
	}
	st := newTestStore(t)
	return NewReplayer(NewClient(cfg), st, cfg), st
}

func TestReplayOnceDrainsQueue(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	r, st := newTestReplayer(t, backend.handler())
	ctx := context.Background()

	first := &models.DiveLog{Date: "2026-07-15"}
	second := &models.DiveLog{Date: "2026-07-16"}
	for _, log := range []*models.DiveLog{first, second} {
		if err := st.CreateLog(ctx, log); err != nil {
			t.Fatalf("CreateLog() error = %v", err)
		}
	}

	replayed, err := r.ReplayOnce(ctx)
	if err != nil {
		t.Fatalf("ReplayOnce() error = %v", err)
	}
	if replayed != 2 {
		t.Errorf("replayed = %d, want 2", replayed)
	}

	upserts, deletes := backend.counts()
	if upserts != 2 || deletes != 0 {
		t.Errorf("backend saw %d upserts / %d deletes, want 2/0", upserts, deletes)
	}

	count, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}

	got, err := st.GetLog(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetLog() error = %v", err)
	}
	if !got.IsSynced {
		t.Error("IsSynced = false after replay, want true")
	}
}

func TestReplayOnceDeleteOp(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	r, st := newTestReplayer(t, backend.handler())
	ctx := context.Background()

	log := &models.DiveLog{Date: "2026-07-15"}
	if err := st.CreateLog(ctx, log); err != nil {
		t.Fatalf("CreateLog() error = %v", err)
	}
	if err := st.MarkSynced(ctx, log.ID); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := st.DeleteLog(ctx, log.ID); err != nil {
		t.Fatalf("DeleteLog() error = %v", err)
	}

	replayed, err := r.ReplayOnce(ctx)
	if err != nil {
		t.Fatalf("ReplayOnce() error = %v", err)
	}
	if replayed != 1 {
		t.Errorf("replayed = %d, want 1", replayed)
	}

	_, deletes := backend.counts()
	if deletes != 1 {
		t.Errorf("backend deletes = %d, want 1", deletes)
	}

	count, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}
}

func TestReplayOnceStopsOnFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{failAll: true}
	r, st := newTestReplayer(t, backend.handler())
	ctx := context.Background()

	if err := st.CreateLog(ctx, &models.DiveLog{Date: "2026-07-15"}); err != nil {
		t.Fatalf("CreateLog() error = %v", err)
	}

	replayed, err := r.ReplayOnce(ctx)
	if err == nil {
		t.Fatal("ReplayOnce() error = nil, want error")
	}
	if replayed != 0 {
		t.Errorf("replayed = %d, want 0", replayed)
	}

	// The queue keeps the operation for the next pass.
	count, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want 1", count)
	}
}

func TestReplayOnceEmptyQueue(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	r, _ := newTestReplayer(t, backend.handler())

	replayed, err := r.ReplayOnce(context.Background())
	if err != nil {
		t.Fatalf("ReplayOnce() error = %v", err)
	}
	if replayed != 0 {
		t.Errorf("replayed = %d, want 0", replayed)
	}
}

func TestReplayOnceDisabledClient(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	r := NewReplayer(nil, st, config.RemoteConfig{})

	if _, err := r.ReplayOnce(context.Background()); err == nil {
		t.Error("ReplayOnce() error = nil, want error for disabled backend")
	}
}

func TestClientAvailable(t *testing.T) {
	t.Parallel()

	t.Run("healthy backend", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		srv := httptest.NewServer(backend.handler())
		defer srv.Close()

		c := NewClient(config.RemoteConfig{Enabled: true, URL: srv.URL, Timeout: time.Second})
		if !c.Available(context.Background()) {
			t.Error("Available() = false, want true")
		}
	})

	t.Run("unreachable backend", func(t *testing.T) {
		t.Parallel()

		c := NewClient(config.RemoteConfig{Enabled: true, URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
		if c.Available(context.Background()) {
			t.Error("Available() = true, want false")
		}
	})

	t.Run("nil client", func(t *testing.T) {
		t.Parallel()

		var c *Client
		if c.Available(context.Background()) {
			t.Error("Available() = true for nil client")
		}
	})
}

func TestNewClientDisabled(t *testing.T) {
	t.Parallel()

	if c := NewClient(config.RemoteConfig{Enabled: false}); c != nil {
		t.Error("NewClient() != nil for disabled remote")
	}
}

func TestDeleteLogTreats404AsSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(config.RemoteConfig{Enabled: true, URL: srv.URL, Timeout: time.Second})
	if err := c.DeleteLog(context.Background(), "gone"); err != nil {
		t.Errorf("DeleteLog() error = %v, want nil for 404", err)
	}
}
