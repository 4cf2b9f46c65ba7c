package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/model"
)

func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req api.PullRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:1b", req.Model)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range []string{
			`{"status":"pulling manifest"}`,
			`{"status":"pulling layer","digest":"sha256:abc","total":200,"completed":50}`,
			`{"status":"pulling layer","digest":"sha256:abc","total":200,"completed":200}`,
			`{"status":"success"}`,
		} {
			fmt.Fprintln(w, line)
		}
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Stream)
		assert.False(t, *req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		fmt.Fprintln(w, `{"model":"llama3.2:1b","message":{"role":"assistant","content":"It is blue."},"done":true}`)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			vectors[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "nomic-embed-text", "embeddings": vectors})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEngine_InitializeReportsPullProgress(t *testing.T) {
	srv := newOllamaServer(t)
	engine, err := NewOllamaEngine(EngineConfig{BaseURL: srv.URL, Model: "llama3.2:1b", Pull: true})
	require.NoError(t, err)

	var events []model.ProgressEvent
	require.NoError(t, engine.Initialize(context.Background(), func(ev model.ProgressEvent) {
		events = append(events, ev)
	}))

	require.Len(t, events, 5)
	assert.Equal(t, "pulling manifest", events[0].Stage)
	assert.InDelta(t, 0.25, events[1].Progress, 1e-9)
	assert.Equal(t, int64(200), events[2].Total)
	assert.Equal(t, "ready", events[4].Stage)
	assert.Equal(t, 1.0, events[4].Progress)
}

func TestOllamaEngine_InitializeWithoutPull(t *testing.T) {
	srv := newOllamaServer(t)
	engine, err := NewOllamaEngine(EngineConfig{BaseURL: srv.URL, Model: "llama3.2:1b"})
	require.NoError(t, err)

	var events []model.ProgressEvent
	require.NoError(t, engine.Initialize(context.Background(), func(ev model.ProgressEvent) {
		events = append(events, ev)
	}))
	require.Len(t, events, 1)
	assert.Equal(t, "ready", events[0].Stage)
}

func TestOllamaEngine_InitializeFailsWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	engine, err := NewOllamaEngine(EngineConfig{BaseURL: srv.URL, Model: "llama3.2:1b"})
	require.NoError(t, err)

	assert.Error(t, engine.Initialize(context.Background(), nil))
}

func TestOllamaEngine_Invoke(t *testing.T) {
	srv := newOllamaServer(t)
	engine, err := NewOllamaEngine(EngineConfig{BaseURL: srv.URL, Model: "llama3.2:1b", Temperature: 0.1})
	require.NoError(t, err)

	reply, err := engine.Invoke(context.Background(), []model.ChatMessage{
		model.SystemMessage("answer briefly"),
		model.UserMessage("what colour is the sky?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "It is blue.", reply)
	assert.Equal(t, "ollama:llama3.2:1b", engine.Name())
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newOllamaServer(t)
	embedder, err := NewOllamaEmbedder(EmbeddingConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 1}, vectors[2])

	single, err := embedder.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, single)
}
