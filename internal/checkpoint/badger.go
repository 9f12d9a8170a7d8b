package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// record is the badgerhold row for one session.
type record struct {
	SessionID string `badgerhold:"key"`
	State     models.State
	UpdatedAt time.Time
	Seq       uint64
}

// Badger is a Store on an in-memory badger database. Nothing is written to
// disk, so checkpoints end with the process. At most maxSessions rows are
// kept; the row saved least recently is evicted first.
type Badger struct {
	store       *badgerhold.Store
	maxSessions int

	mu  sync.Mutex // serializes save + evict
	seq uint64
}

// NewBadger opens an in-memory badgerhold store capped at DefaultMaxSessions.
func NewBadger() (*Badger, error) {
	return NewBadgerWithLimit(DefaultMaxSessions)
}

// NewBadgerWithLimit opens an in-memory badgerhold store holding at most
// maxSessions rows. A non-positive limit selects DefaultMaxSessions.
func NewBadgerWithLimit(maxSessions int) (*Badger, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	opts := badgerhold.DefaultOptions
	opts.InMemory = true
	opts.Dir = ""
	opts.ValueDir = ""
	opts.Logger = nil
	// JSON keeps empty slices distinct from nil on the way back out.
	opts.Encoder = json.Marshal
	opts.Decoder = json.Unmarshal

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open badger: %w", err)
	}
	return &Badger{store: store, maxSessions: maxSessions}, nil
}

func (b *Badger) Save(ctx context.Context, state models.State) error {
	if state.SessionID == "" {
		return fmt.Errorf("checkpoint: empty session id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	rec := record{SessionID: state.SessionID, State: state.Clone(), UpdatedAt: time.Now().UTC(), Seq: b.seq}
	if err := b.store.Upsert(state.SessionID, &rec); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", state.SessionID, err)
	}
	return b.evict()
}

// evict deletes the oldest rows beyond maxSessions. Callers hold b.mu.
func (b *Badger) evict() error {
	count, err := b.store.Count(&record{}, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: count sessions: %w", err)
	}
	if int(count) <= b.maxSessions {
		return nil
	}

	var stale []record
	query := badgerhold.Where("Seq").Gt(uint64(0)).SortBy("Seq").Limit(int(count) - b.maxSessions)
	if err := b.store.Find(&stale, query); err != nil {
		return fmt.Errorf("checkpoint: find stale sessions: %w", err)
	}
	for _, r := range stale {
		if err := b.store.Delete(r.SessionID, &record{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("checkpoint: evict %s: %w", r.SessionID, err)
		}
	}
	return nil
}

func (b *Badger) Load(ctx context.Context, sessionID string) (models.State, error) {
	if err := ctx.Err(); err != nil {
		return models.State{}, err
	}
	var rec record
	if err := b.store.Get(sessionID, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return models.State{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return models.State{}, fmt.Errorf("checkpoint: load %s: %w", sessionID, err)
	}
	return rec.State, nil
}

func (b *Badger) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []record
	if err := b.store.Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("checkpoint: list sessions: %w", err)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.SessionID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *Badger) Close() error {
	return b.store.Close()
}
