// Package index provides the similarity-search capability used for retrieval:
// chunks are embedded on insert and ranked against an embedded query on search.
package index

import (
	"context"
	"errors"

	"docqa/internal/model"
)

const (
	DefaultTopK      = 10
	DefaultBatchSize = 16
)

var ErrEmbeddingMismatch = errors.New("embedding count mismatch")

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchParams tunes ranking. A Lambda in (0,1) enables maximal marginal
// relevance over the FetchK best candidates; zero disables it.
type SearchParams struct {
	Lambda float64
	FetchK int
}

type Index interface {
	Insert(ctx context.Context, chunks []model.DocumentChunk) error
	Search(ctx context.Context, query string, k int, params SearchParams) ([]model.DocumentChunk, error)
	Count(ctx context.Context) (int, error)
}

func (p SearchParams) mmrEnabled() bool {
	return p.Lambda > 0 && p.Lambda < 1
}

func (p SearchParams) fetchK(k int) int {
	if !p.mmrEnabled() {
		return k
	}
	if p.FetchK < k {
		return k * 2
	}
	return p.FetchK
}

// embedAll embeds texts in batches to stay under provider request limits.
func embedAll(ctx context.Context, embedder Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(texts) {
		return nil, ErrEmbeddingMismatch
	}
	return vectors, nil
}
