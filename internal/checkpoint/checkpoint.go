// Package checkpoint stores pipeline state keyed by session id.
//
// A checkpoint is written after every stage so callers can inspect how far a
// run got. Stored state is never used to resume a run, and no store outlives
// the process.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// ErrNotFound is returned when no checkpoint exists for a session.
var ErrNotFound = errors.New("checkpoint: not found")

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// DefaultMaxSessions caps how many sessions a store keeps when no limit is
// configured.
const DefaultMaxSessions = 1000

// Store saves and loads the latest state per session.
type Store interface {
	// Save replaces the checkpoint for state.SessionID.
	Save(ctx context.Context, state models.State) error
	// Load returns the latest checkpoint for sessionID or ErrNotFound.
	Load(ctx context.Context, sessionID string) (models.State, error)
	// Sessions lists the session ids that have a checkpoint, sorted.
	Sessions(ctx context.Context) ([]string, error)
	Close() error
}

// New returns the store for backend holding at most maxSessions
// checkpoints. An empty name selects memory; a non-positive limit selects
// DefaultMaxSessions.
func New(backend string, maxSessions int) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryWithLimit(maxSessions), nil
	case BackendBadger:
		s, err := NewBadgerWithLimit(maxSessions)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("checkpoint: unknown backend %q", backend)
}
