package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/model"
)

var errCollectionMissing = errors.New("qdrant collection missing")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	BatchSize  int
}

// QdrantIndex stores chunks in a Qdrant collection over its REST API. The
// collection is created with cosine distance on the first insert, once the
// vector dimension is known.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	batchSize  int
	embedder   Embedder
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

func NewQdrantIndex(cfg QdrantConfig, embedder Embedder) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "docqa"
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		batchSize:  cfg.BatchSize,
		embedder:   embedder,
		client:     &http.Client{Timeout: timeout},
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (q *QdrantIndex) Insert(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := embedAll(ctx, q.embedder, texts, q.batchSize)
	if err != nil {
		return fmt.Errorf("embed chunks failed: %w", err)
	}
	if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(chunks))
	for i := range chunks {
		md := chunks[i].Metadata
		points[i] = qdrantPoint{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"text":   chunks[i].Text,
				"source": md.Source,
				"page":   md.Page,
				"block":  md.Block,
				"index":  md.Index,
				"start":  md.Start,
				"end":    md.End,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query string, k int, params SearchParams) ([]model.DocumentChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	queryVec, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	req := map[string]any{
		"vector":       queryVec,
		"limit":        params.fetchK(k),
		"with_payload": true,
		"with_vector":  params.mmrEnabled(),
	}
	var resp struct {
		Result []struct {
			Score   float64          `json:"score"`
			Vector  []float32        `json:"vector"`
			Payload qdrantChunkValue `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", req, &resp); err != nil {
		if errors.Is(err, errCollectionMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	if params.mmrEnabled() {
		vectors := make([][]float32, len(resp.Result))
		for i := range resp.Result {
			vectors[i] = resp.Result[i].Vector
		}
		picked := maxMarginalRelevance(queryVec, vectors, params.Lambda, k)
		out := make([]model.DocumentChunk, len(picked))
		for i, pos := range picked {
			out[i] = resp.Result[pos].Payload.chunk()
		}
		return out, nil
	}

	out := make([]model.DocumentChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		if len(out) == k {
			break
		}
		out = append(out, r.Payload.chunk())
	}
	return out, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errCollectionMissing) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return resp.Result.Count, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dimension int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := q.do(ctx, http.MethodPut, q.collectionURL(), body, nil)
	var statusErr *qdrantStatusError
	// 409 means the collection already exists.
	if err != nil && !(errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict) {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	q.ready = true
	return nil
}

func (q *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", q.baseURL, q.collection)
}

type qdrantStatusError struct {
	Method string
	URL    string
	Code   int
	Status string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s: %s", e.Method, e.URL, e.Status)
}

func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		return &qdrantStatusError{Method: method, URL: url, Code: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type qdrantChunkValue struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Block  int    `json:"block"`
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

func (v qdrantChunkValue) chunk() model.DocumentChunk {
	return model.DocumentChunk{
		Text: v.Text,
		Metadata: model.ChunkMetadata{
			Source: v.Source,
			Page:   v.Page,
			Block:  v.Block,
			Index:  v.Index,
			Start:  v.Start,
			End:    v.End,
		},
	}
}
