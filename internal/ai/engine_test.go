package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/model"
)

func TestNewEngine_SelectsProvider(t *testing.T) {
	ctx := context.Background()

	engine, err := NewEngine(ctx, EngineConfig{Provider: "OpenAI", BaseURL: "http://localhost", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompatibleClient{}, engine)

	engine, err = NewEngine(ctx, EngineConfig{Model: "llama3.2:1b"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaEngine{}, engine)

	engine, err = NewEngine(ctx, EngineConfig{Provider: ProviderAnthropic, APIKey: "k", Model: "claude-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-test", engine.Name())

	_, err = NewEngine(ctx, EngineConfig{Provider: "webgpu"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), EmbeddingConfig{Provider: ProviderAnthropic})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestAnthropicEngine_InitializeRequiresKey(t *testing.T) {
	engine := NewAnthropicEngine(EngineConfig{Model: "claude-test"})
	assert.Error(t, engine.Initialize(context.Background(), nil))
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]model.ChatMessage{
		model.SystemMessage("one"),
		model.UserMessage("q"),
		model.SystemMessage("two"),
		model.AssistantMessage("a"),
	})
	assert.Equal(t, "one\n\ntwo", system)
	assert.Equal(t, []model.ChatMessage{model.UserMessage("q"), model.AssistantMessage("a")}, turns)
}
