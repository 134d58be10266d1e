// Package registry owns the per-tab candidate and resolution state.
package registry

import (
	"sync"
	"time"

	"github.com/streamsave/streamsave-go/internal/models"
)

// State is the lifecycle state of one tab entry.
type State int

const (
	StateEmpty State = iota
	StateScanning
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "Scanning"
	case StatePopulated:
		return "Populated"
	default:
		return "Empty"
	}
}

// Entry is the stored state for one tab.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Entry struct {
	TabID           int
	State           State
	Candidates      []models.VideoCandidate
	Resolution      *models.VideoInfo
	ResolvedVideoID string
	PendingVideoID  string
	Version         uint64
	UpdatedAt       time.Time
}

// HasCandidates reports whether the tab has anything downloadable.
func (e Entry) HasCandidates() bool {
	return len(e.Candidates) > 0 || (e.Resolution != nil && len(e.Resolution.Formats) > 0)
}

func (e Entry) clone() Entry {
	out := e
	if e.Candidates != nil {
		out.Candidates = make([]models.VideoCandidate, len(e.Candidates))
		for i, c := range e.Candidates {
			out.Candidates[i] = c.Clone()
		}
	}
	out.Resolution = e.Resolution.Clone()
	return out
}

// Store persists tab entries. Implementations must return copies.
type Store interface {
	Get(tabID int) (Entry, bool)
	Put(entry Entry)
	Delete(tabID int)
	Len() int
}

// MemoryStore is an in-process Store. Entries do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int]Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int]Entry)}
}

func (m *MemoryStore) Get(tabID int) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[tabID]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (m *MemoryStore) Put(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.TabID] = entry.clone()
}

func (m *MemoryStore) Delete(tabID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tabID)
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
