// Package ai adapts language-model and embedding providers to the Engine and
// Embedder capabilities used by retrieval and generation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa/internal/model"
)

const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var ErrUnknownProvider = errors.New("unknown provider")

type ProgressFunc func(model.ProgressEvent)

// Engine turns a message list into a single reply.
type Engine interface {
	Name() string
	// Initialize prepares the model and reports loading progress. It must be
	// called once before Invoke.
	Initialize(ctx context.Context, onProgress ProgressFunc) error
	Invoke(ctx context.Context, messages []model.ChatMessage) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type EngineConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// Pull asks the Ollama engine to download the model during Initialize.
	Pull    bool
	Timeout time.Duration
}

type EmbeddingConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

func NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAICompatibleClient(cfg), nil
	case ProviderOllama, "":
		return NewOllamaEngine(cfg)
	case ProviderAnthropic:
		return NewAnthropicEngine(cfg), nil
	case ProviderGemini:
		return NewGeminiEngine(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func NewEmbedder(ctx context.Context, cfg EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg), nil
	case ProviderOllama, "":
		return NewOllamaEmbedder(cfg)
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func reportReady(onProgress ProgressFunc) {
	if onProgress != nil {
		onProgress(model.ProgressEvent{Stage: "ready", Progress: 1})
	}
}

// splitSystem separates the leading system instructions from the turns, for
// providers that take the system prompt out of band.
func splitSystem(messages []model.ChatMessage) (string, []model.ChatMessage) {
	var system []string
	turns := make([]model.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
