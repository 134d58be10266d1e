package host

import (
	"sync"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/pkg/logger"
)

// MemoryBadge keeps the last badge text per tab.
type MemoryBadge struct {
	mu    sync.RWMutex
	texts map[int]string
}

// NewMemoryBadge creates an empty badge sink.
func NewMemoryBadge() *MemoryBadge {
	return &MemoryBadge{texts: make(map[int]string)}
}

func (b *MemoryBadge) SetBadge(tabID int, text string) {
	b.mu.Lock()
	if text == "" {
		delete(b.texts, tabID)
	} else {
		b.texts[tabID] = text
	}
	b.mu.Unlock()

	logger.Log.Debug("Badge updated", zap.Int("tabId", tabID), zap.String("text", text))
}

// Badge returns the tab's current badge text.
func (b *MemoryBadge) Badge(tabID int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.texts[tabID]
}
