package app

import (
	"context"
	"strings"
	"sync"

	"docqa/internal/model"
)

type recordingEmitter struct {
	mu   sync.Mutex
	logs []any
}

func (e *recordingEmitter) Log(data any) {
	e.mu.Lock()
	e.logs = append(e.logs, data)
	e.mu.Unlock()
}

func (e *recordingEmitter) Progress(model.ProgressEvent) {}

// letterEmbedder maps text to letter frequencies, enough for similarity to
// favour texts sharing words.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func (e letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

type recordingEngine struct {
	mu      sync.Mutex
	reply   func(messages []model.ChatMessage) (string, error)
	prompts [][]model.ChatMessage
}

func (e *recordingEngine) Invoke(_ context.Context, messages []model.ChatMessage) (string, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, messages)
	e.mu.Unlock()
	if e.reply != nil {
		return e.reply(messages)
	}
	return "answer", nil
}
