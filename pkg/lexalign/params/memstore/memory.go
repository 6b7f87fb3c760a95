// Package memstore is an in-memory params.Store for tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/params"
)

// Store is an in-memory implementation of params.Store.
type Store struct {
	mu      sync.RWMutex
	runs    []params.Run
	entries map[string][]params.Entry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string][]params.Entry)}
}

// Close implements params.Store.
func (s *Store) Close() error { return nil }

// CreateRun registers a run.
func (s *Store) CreateRun(ctx context.Context, r params.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

// Runs returns all runs in creation order.
func (s *Store) Runs(ctx context.Context) ([]params.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]params.Run, len(s.runs))
	copy(out, s.runs)
	return out, nil
}

// PutEntries appends entries to a run's table.
func (s *Store) PutEntries(ctx context.Context, runID string, entries []params.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRun(runID) {
		return internalerr.ErrNotFound
	}
	s.entries[runID] = append(s.entries[runID], entries...)
	return nil
}

// Entries returns a run's entries, optionally restricted to one
// source word, ordered by (src, trg).
func (s *Store) Entries(ctx context.Context, runID, src string) ([]params.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasRun(runID) {
		return nil, internalerr.ErrNotFound
	}
	var out []params.Entry
	for _, e := range s.entries[runID] {
		if src == "" || e.Src == src {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Trg < out[j].Trg
	})
	return out, nil
}

func (s *Store) hasRun(runID string) bool {
	for _, r := range s.runs {
		if r.ID == runID {
			return true
		}
	}
	return false
}
