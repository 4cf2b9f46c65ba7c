package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/model"
)

type memoryEntry struct {
	chunk  model.DocumentChunk
	vector []float32
}

// MemoryIndex is a brute-force cosine index held in process memory. Inserts
// append; identical chunks inserted twice are stored twice.
type MemoryIndex struct {
	embedder  Embedder
	batchSize int

	mu      sync.RWMutex
	entries []memoryEntry
}

func NewMemoryIndex(embedder Embedder, batchSize int) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, batchSize: batchSize}
}

func (m *MemoryIndex) Insert(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := embedAll(ctx, m.embedder, texts, m.batchSize)
	if err != nil {
		return fmt.Errorf("embed chunks failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range chunks {
		m.entries = append(m.entries, memoryEntry{chunk: chunks[i], vector: vectors[i]})
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, k int, params SearchParams) ([]model.DocumentChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	m.mu.RLock()
	entries := make([]memoryEntry, len(m.entries))
	copy(entries, m.entries)
	m.mu.RUnlock()
	if len(entries) == 0 {
		return nil, nil
	}

	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	type scored struct {
		entry memoryEntry
		score float64
	}
	ranked := make([]scored, len(entries))
	for i := range entries {
		ranked[i] = scored{entry: entries[i], score: cosineSimilarity(queryVec, entries[i].vector)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if fetch := params.fetchK(k); len(ranked) > fetch {
		ranked = ranked[:fetch]
	}

	if params.mmrEnabled() {
		vectors := make([][]float32, len(ranked))
		for i := range ranked {
			vectors[i] = ranked[i].entry.vector
		}
		picked := maxMarginalRelevance(queryVec, vectors, params.Lambda, k)
		out := make([]model.DocumentChunk, len(picked))
		for i, pos := range picked {
			out[i] = ranked[pos].entry.chunk
		}
		return out, nil
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]model.DocumentChunk, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].entry.chunk
	}
	return out, nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
