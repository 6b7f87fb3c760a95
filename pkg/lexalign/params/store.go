// Package params persists pruned translation tables so downstream
// tools can query lexical probabilities without re-parsing flat
// dumps. Each persisted table belongs to a training run identified by
// a ULID.
package params

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is one surviving (source, target) pair with its log
// probability.
type Entry struct {
	Src     string
	Trg     string
	LogProb float64
}

// Run describes one training run.
type Run struct {
	ID         string
	Input      string
	Iterations int
	CreatedAt  time.Time
}

// Store persists and queries parameter tables.
type Store interface {
	Close() error

	CreateRun(ctx context.Context, r Run) error
	Runs(ctx context.Context) ([]Run, error)

	PutEntries(ctx context.Context, runID string, entries []Entry) error
	// Entries returns the entries of a run, optionally restricted to
	// one source word (empty src means all), ordered by (src, trg).
	Entries(ctx context.Context, runID, src string) ([]Entry, error)
}

// IDSource hands out monotonic run IDs.
type IDSource struct {
	entropy *ulid.MonotonicEntropy
}

// NewIDSource creates an ID source backed by crypto/rand.
func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewRunID returns a fresh ULID for a training run.
func (s *IDSource) NewRunID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}
