package checkpoint

import (
	"container/list"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// Memory is a map-backed Store holding at most maxSessions checkpoints.
// When full, the session saved least recently is evicted.
type Memory struct {
	mu          sync.RWMutex
	maxSessions int
	states      map[string]*list.Element
	order       *list.List // front = most recently saved
}

type memEntry struct {
	id    string
	state models.State
}

// NewMemory returns an empty in-process store capped at DefaultMaxSessions.
func NewMemory() *Memory {
	return NewMemoryWithLimit(DefaultMaxSessions)
}

// NewMemoryWithLimit returns an empty store holding at most maxSessions
// checkpoints. A non-positive limit selects DefaultMaxSessions.
func NewMemoryWithLimit(maxSessions int) *Memory {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Memory{
		maxSessions: maxSessions,
		states:      make(map[string]*list.Element),
		order:       list.New(),
	}
}

func (m *Memory) Save(_ context.Context, state models.State) error {
	if state.SessionID == "" {
		return fmt.Errorf("checkpoint: empty session id")
	}
	entry := &memEntry{id: state.SessionID, state: state.Clone()}

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.states[entry.id]; ok {
		el.Value = entry
		m.order.MoveToFront(el)
		return nil
	}
	m.states[entry.id] = m.order.PushFront(entry)
	for m.order.Len() > m.maxSessions {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.states, oldest.Value.(*memEntry).id)
	}
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) (models.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, ok := m.states[sessionID]
	if !ok {
		return models.State{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return el.Value.(*memEntry).state.Clone(), nil
}

func (m *Memory) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
