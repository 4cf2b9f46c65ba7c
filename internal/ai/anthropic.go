package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"docqa/internal/model"
)

const defaultAnthropicMaxTokens = 1024

type AnthropicEngine struct {
	client anthropic.Client
	cfg    EngineConfig
}

func NewAnthropicEngine(cfg EngineConfig) *AnthropicEngine {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicEngine{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (e *AnthropicEngine) Name() string {
	return ProviderAnthropic + ":" + e.cfg.Model
}

func (e *AnthropicEngine) Initialize(ctx context.Context, onProgress ProgressFunc) error {
	if e.cfg.APIKey == "" || e.cfg.Model == "" {
		return fmt.Errorf("anthropic engine requires api key and model")
	}
	reportReady(onProgress)
	return nil
}

func (e *AnthropicEngine) Invoke(ctx context.Context, messages []model.ChatMessage) (string, error) {
	system, turns := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.cfg.Model),
		MaxTokens: int64(defaultAnthropicMaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if e.cfg.MaxTokens > 0 {
		params.MaxTokens = int64(e.cfg.MaxTokens)
	}
	if e.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(e.cfg.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
