package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"docqa/internal/model"
)

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return client, nil
}

type GeminiEngine struct {
	client *genai.Client
	cfg    EngineConfig
}

func NewGeminiEngine(ctx context.Context, cfg EngineConfig) (*GeminiEngine, error) {
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: client, cfg: cfg}, nil
}

func (e *GeminiEngine) Name() string {
	return ProviderGemini + ":" + e.cfg.Model
}

func (e *GeminiEngine) Initialize(ctx context.Context, onProgress ProgressFunc) error {
	if e.cfg.Model == "" {
		return fmt.Errorf("gemini engine requires a model")
	}
	reportReady(onProgress)
	return nil
}

func (e *GeminiEngine) Invoke(ctx context.Context, messages []model.ChatMessage) (string, error) {
	system, turns := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if e.cfg.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(e.cfg.Temperature))
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var reply strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				reply.WriteString(part.Text)
			}
			if reply.Len() > 0 {
				break
			}
		}
	}
	return reply.String(), nil
}

type GeminiEmbedder struct {
	client *genai.Client
	cfg    EmbeddingConfig
}

func NewGeminiEmbedder(ctx context.Context, cfg EmbeddingConfig) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, cfg: cfg}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	config := &genai.EmbedContentConfig{}
	if e.cfg.Dimensions > 0 {
		dim := int32(e.cfg.Dimensions)
		config.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.cfg.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned a mismatched embedding count")
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
