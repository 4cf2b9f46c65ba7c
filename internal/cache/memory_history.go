package cache

import (
	"context"
	"sync"
	"time"

	"docqa/internal/model"
)

type memoryEntry struct {
	messages []model.ChatMessage
	expires  time.Time
}

// MemoryHistory is the in-process history store used when redis is not
// configured.
type MemoryHistory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryHistory(ttl time.Duration) *MemoryHistory {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &MemoryHistory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemoryHistory) GetHistory(_ context.Context, conversationID string) ([]model.ChatMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[conversationID]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expires) {
		delete(m.entries, conversationID)
		return nil, false, nil
	}
	out := make([]model.ChatMessage, len(entry.messages))
	copy(out, entry.messages)
	return out, true, nil
}

func (m *MemoryHistory) SetHistory(_ context.Context, conversationID string, messages []model.ChatMessage) error {
	stored := make([]model.ChatMessage, len(messages))
	copy(stored, messages)
	m.mu.Lock()
	m.entries[conversationID] = memoryEntry{messages: stored, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryHistory) DeleteHistory(_ context.Context, conversationID string) error {
	m.mu.Lock()
	delete(m.entries, conversationID)
	m.mu.Unlock()
	return nil
}
