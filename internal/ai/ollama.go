package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"docqa/internal/model"
)

const defaultOllamaURL = "http://127.0.0.1:11434"

func newOllamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama url failed: %w", err)
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return api.NewClient(u, &http.Client{Timeout: timeout}), nil
}

// OllamaEngine runs chat completions against a local Ollama server. Model
// download progress is reported through Initialize.
type OllamaEngine struct {
	client *api.Client
	cfg    EngineConfig
}

func NewOllamaEngine(cfg EngineConfig) (*OllamaEngine, error) {
	client, err := newOllamaClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &OllamaEngine{client: client, cfg: cfg}, nil
}

func (e *OllamaEngine) Name() string {
	return ProviderOllama + ":" + e.cfg.Model
}

func (e *OllamaEngine) Initialize(ctx context.Context, onProgress ProgressFunc) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat failed: %w", err)
	}
	if e.cfg.Pull {
		err := e.client.Pull(ctx, &api.PullRequest{Model: e.cfg.Model}, func(resp api.ProgressResponse) error {
			if onProgress != nil {
				onProgress(pullProgress(resp))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ollama pull %s failed: %w", e.cfg.Model, err)
		}
	}
	reportReady(onProgress)
	return nil
}

func pullProgress(resp api.ProgressResponse) model.ProgressEvent {
	ev := model.ProgressEvent{Stage: resp.Status, Completed: resp.Completed, Total: resp.Total}
	if resp.Total > 0 {
		ev.Progress = float64(resp.Completed) / float64(resp.Total)
	}
	return ev
}

func (e *OllamaEngine) Invoke(ctx context.Context, messages []model.ChatMessage) (string, error) {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	stream := false
	req := &api.ChatRequest{
		Model:    e.cfg.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if e.cfg.Temperature > 0 {
		req.Options["temperature"] = e.cfg.Temperature
	}
	if e.cfg.MaxTokens > 0 {
		req.Options["num_predict"] = e.cfg.MaxTokens
	}

	var reply strings.Builder
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return reply.String(), nil
}

type OllamaEmbedder struct {
	client *api.Client
	model  string
}

func NewOllamaEmbedder(cfg EmbeddingConfig) (*OllamaEmbedder, error) {
	client, err := newOllamaClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{client: client, model: cfg.Model}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
