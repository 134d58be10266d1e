package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

// BadgeText values shown on the tab indicator.
const (
	BadgeReady = "✓"
	BadgeClear = ""
)

// EventKind identifies a registry notification.
type EventKind string

const (
	EventVideosUpdated EventKind = "videosUpdated"
	EventTabCleared    EventKind = "tabCleared"
)

// Event notifies subscribers that a tab's stored state changed.
type Event struct {
	Kind    EventKind
	TabID   int
	Version uint64
}

// BadgeSink renders the per-tab indicator.
type BadgeSink interface {
	SetBadge(tabID int, text string)
}

type noopBadge struct{}

func (noopBadge) SetBadge(int, string) {}

// Registry mediates between producers (scans, resolutions) and the UI. Writes are
// expected from a single goroutine; reads are safe from any goroutine.
type Registry struct {
	store Store
	badge BadgeSink
	now   func() time.Time

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates a registry over store. A nil badge sink discards updates.
func New(store Store, badge BadgeSink) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if badge == nil {
		badge = noopBadge{}
	}
	return &Registry{
		store: store,
		badge: badge,
		now:   time.Now,
		subs:  make(map[int]chan Event),
	}
}

// GetCandidates returns a copy of the tab's candidates. It never blocks on the network.
func (r *Registry) GetCandidates(tabID int) []models.VideoCandidate {
	e, ok := r.store.Get(tabID)
	if !ok || e.Candidates == nil {
		return []models.VideoCandidate{}
	}
	return e.Candidates
}

// GetResolution returns a copy of the tab's last resolution result, or nil.
func (r *Registry) GetResolution(tabID int) *models.VideoInfo {
	e, ok := r.store.Get(tabID)
	if !ok {
		return nil
	}
	return e.Resolution
}

// Entry returns a copy of the tab's entry.
func (r *Registry) Entry(tabID int) (Entry, bool) {
	return r.store.Get(tabID)
}

// State returns the tab's lifecycle state.
func (r *Registry) State(tabID int) State {
	e, ok := r.store.Get(tabID)
	if !ok {
		return StateEmpty
	}
	return e.State
}

// BeginScan marks a scan as dispatched for the tab.
func (r *Registry) BeginScan(tabID int) {
	e := r.load(tabID)
	e.State = StateScanning
	r.store.Put(e)
	r.trackTabs()
}

// RecordScan replaces the tab's candidate set.
func (r *Registry) RecordScan(tabID int, candidates []models.VideoCandidate) {
	e := r.load(tabID)
	e.Candidates = make([]models.VideoCandidate, len(candidates))
	for i, c := range candidates {
		e.Candidates[i] = c.Clone()
	}
	r.commit(e)

	logger.Log.Debug("Scan recorded",
		zap.Int("tabId", tabID),
		zap.Int("candidates", len(candidates)),
		zap.Uint64("version", e.Version+1),
	)
}

// AbortScan returns a tab whose scan failed to its settled state.
func (r *Registry) AbortScan(tabID int) {
	e, ok := r.store.Get(tabID)
	if !ok || e.State != StateScanning {
		return
	}
	r.settle(&e)
	r.store.Put(e)
}

// BeginResolution reports whether videoID should be resolved for the tab. It returns
// false when videoID is already the tab's resolved identifier or already in flight.
// On true the previous video's result is dropped, the tab enters Scanning and its badge
// is cleared until the result lands.
func (r *Registry) BeginResolution(tabID int, videoID string) bool {
	e := r.load(tabID)
	if videoID == "" || e.ResolvedVideoID == videoID || e.PendingVideoID == videoID {
		return false
	}
	e.ResolvedVideoID = ""
	e.Resolution = nil
	e.PendingVideoID = videoID
	e.State = StateScanning
	r.store.Put(e)
	r.badge.SetBadge(tabID, BadgeClear)
	r.trackTabs()
	return true
}

// RecordResolution stores a resolution result. It is a no-op, returning false, when
// videoID equals the tab's last recorded identifier.
func (r *Registry) RecordResolution(tabID int, videoID string, info *models.VideoInfo) bool {
	e := r.load(tabID)
	if e.PendingVideoID == videoID {
		e.PendingVideoID = ""
	}
	if videoID == e.ResolvedVideoID {
		r.settle(&e)
		r.store.Put(e)
		return false
	}

	e.ResolvedVideoID = videoID
	e.Resolution = info.Clone()
	r.commit(e)

	logger.Log.Debug("Resolution recorded",
		zap.Int("tabId", tabID),
		zap.String("videoId", videoID),
		zap.Uint64("version", e.Version+1),
	)
	return true
}

// FailResolution abandons an in-flight resolution. The badge then reflects the scan
// candidates alone.
func (r *Registry) FailResolution(tabID int, videoID string) {
	e, ok := r.store.Get(tabID)
	if !ok || e.PendingVideoID != videoID {
		return
	}
	e.PendingVideoID = ""
	r.settle(&e)
	r.store.Put(e)
	r.badge.SetBadge(tabID, badgeFor(e))
}

// ForgetResolution drops the tab's resolved identity so the next resolution runs again.
func (r *Registry) ForgetResolution(tabID int) {
	e, ok := r.store.Get(tabID)
	if !ok {
		return
	}
	e.ResolvedVideoID = ""
	e.PendingVideoID = ""
	e.Resolution = nil
	r.settle(&e)
	r.store.Put(e)
}

// Remove discards all state for a closed tab.
func (r *Registry) Remove(tabID int) {
	e, ok := r.store.Get(tabID)
	r.store.Delete(tabID)
	r.trackTabs()
	if !ok {
		return
	}
	r.badge.SetBadge(tabID, BadgeClear)
	r.publish(Event{Kind: EventTabCleared, TabID: tabID, Version: e.Version})
}

// Version returns the tab's entry version; it increases on every stored replace.
func (r *Registry) Version(tabID int) uint64 {
	e, _ := r.store.Get(tabID)
	return e.Version
}

// Tabs returns the number of tabs with stored state.
func (r *Registry) Tabs() int {
	return r.store.Len()
}

// Subscribe registers for change events. Slow subscribers miss events rather than
// blocking the writer. The returned function unsubscribes and closes the channel.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) load(tabID int) Entry {
	e, ok := r.store.Get(tabID)
	if !ok {
		return Entry{TabID: tabID, State: StateEmpty}
	}
	return e
}

// commit stores e as a full replace, bumps its version and notifies.
func (r *Registry) commit(e Entry) {
	e.Version++
	e.UpdatedAt = r.now()
	r.settle(&e)
	r.store.Put(e)
	r.trackTabs()
	r.badge.SetBadge(e.TabID, badgeFor(e))
	r.publish(Event{Kind: EventVideosUpdated, TabID: e.TabID, Version: e.Version})
}

// settle leaves Scanning once nothing is in flight.
func (r *Registry) settle(e *Entry) {
	if e.PendingVideoID != "" {
		return
	}
	if e.Version > 0 {
		e.State = StatePopulated
	} else {
		e.State = StateEmpty
	}
}

func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Registry) trackTabs() {
	metrics.SetTrackedTabs(r.store.Len())
}

func badgeFor(e Entry) string {
	if e.HasCandidates() {
		return BadgeReady
	}
	return BadgeClear
}
