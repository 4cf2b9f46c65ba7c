// Package rag answers a conversation by walking a fixed set of stages:
// rephrase the latest question, retrieve chunks, summarize them, generate.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/index"
	"docqa/internal/model"
)

var (
	ErrNoMessages = errors.New("conversation has no messages")
	ErrEmptyReply = errors.New("model returned an empty reply")
)

// GenerationError reports an inference failure in a model-backed stage.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %v", strings.ToLower(e.Stage.String()), e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Engine interface {
	Invoke(ctx context.Context, messages []model.ChatMessage) (string, error)
}

type Retriever interface {
	Search(ctx context.Context, query string, k int, params index.SearchParams) ([]model.DocumentChunk, error)
	Count(ctx context.Context) (int, error)
}

type Options struct {
	TopK    int
	Lambda  float64
	FetchK  int
	Persona string
}

func DefaultOptions() Options {
	return Options{TopK: index.DefaultTopK, Lambda: 0.75, FetchK: 20, Persona: DefaultPersona}
}

// TraceEvent describes one finished stage.
type TraceEvent struct {
	Stage  Stage  `json:"stage"`
	Next   Stage  `json:"next"`
	Detail string `json:"detail"`
}

type Tracer func(TraceEvent)

type Result struct {
	Reply model.ChatMessage
	State State
	Path  []Stage
}

type Orchestrator struct {
	engine    Engine
	retriever Retriever
	opts      Options
	logger    *zap.Logger
}

func New(engine Engine, retriever Retriever, opts Options, logger *zap.Logger) *Orchestrator {
	defaults := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.Persona == "" {
		opts.Persona = defaults.Persona
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{engine: engine, retriever: retriever, opts: opts, logger: logger.Named("rag")}
}

// Run drives the conversation through the stages and returns the single
// assistant reply. tracer may be nil.
func (o *Orchestrator) Run(ctx context.Context, messages []model.ChatMessage, tracer Tracer) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	state := State{Messages: messages}
	stage := StageStart
	path := []Stage{stage}
	for stage != StageEnd {
		upd, detail, err := o.step(ctx, stage, state)
		if err != nil {
			return nil, err
		}
		state.apply(upd)
		next := Route(stage, state)
		if tracer != nil {
			tracer(TraceEvent{Stage: stage, Next: next, Detail: detail})
		}
		stage = next
		path = append(path, stage)
	}

	if state.Reply == nil {
		return nil, &GenerationError{Stage: StageGenerate, Err: ErrEmptyReply}
	}
	return &Result{Reply: *state.Reply, State: state, Path: path}, nil
}

func (o *Orchestrator) step(ctx context.Context, stage Stage, state State) (update, string, error) {
	switch stage {
	case StageRephrase:
		return o.rephrase(ctx, state)
	case StageRetrieve:
		return o.retrieve(ctx, state)
	case StageSummarize:
		return o.summarize(ctx, state)
	case StageGenerate:
		return o.generate(ctx, state)
	default:
		return update{}, fmt.Sprintf("%d messages", len(state.Messages)), nil
	}
}

func (o *Orchestrator) rephrase(ctx context.Context, state State) (update, string, error) {
	out, err := o.engine.Invoke(ctx, rephrasePrompt(state.Messages))
	if err != nil {
		return update{}, "", &GenerationError{Stage: StageRephrase, Err: err}
	}
	// An empty rephrasing falls back to the latest message.
	rephrased := strings.TrimSpace(out)
	return update{rephrased: &rephrased}, "rephrased question: " + rephrased, nil
}

// retrieve never fails the request: index errors degrade to no documents.
func (o *Orchestrator) retrieve(ctx context.Context, state State) (update, string, error) {
	found, detail := o.search(ctx, state.Query())
	docs := []model.DocumentChunk{}
	docs = append(docs, found...)
	return update{documents: &docs}, detail, nil
}

// search never fails: index errors and panics degrade to no documents.
func (o *Orchestrator) search(ctx context.Context, query string) (found []model.DocumentChunk, detail string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("index panicked, continuing without documents", zap.Any("panic", r))
			found, detail = nil, fmt.Sprintf("retrieval failed: %v", r)
		}
	}()

	count, err := o.retriever.Count(ctx)
	if err != nil {
		o.logger.Warn("index count failed, continuing without documents", zap.Error(err))
		return nil, "retrieval skipped: " + err.Error()
	}
	if count == 0 {
		return nil, "retrieval skipped: index is empty"
	}

	found, err = o.retriever.Search(ctx, query, o.opts.TopK, index.SearchParams{Lambda: o.opts.Lambda, FetchK: o.opts.FetchK})
	if err != nil {
		o.logger.Warn("index search failed, continuing without documents", zap.Error(err))
		return nil, "retrieval failed: " + err.Error()
	}
	if len(found) > o.opts.TopK {
		found = found[:o.opts.TopK]
	}
	return found, fmt.Sprintf("retrieved %d documents", len(found))
}

func (o *Orchestrator) summarize(ctx context.Context, state State) (update, string, error) {
	empty := ""
	if len(state.SourceDocuments) == 0 {
		return update{summary: &empty}, "no documents to summarize", nil
	}
	out, err := o.engine.Invoke(ctx, summarizePrompt(state.Query(), state.SourceDocuments))
	if err != nil {
		return update{}, "", &GenerationError{Stage: StageSummarize, Err: err}
	}
	summary := strings.TrimSpace(out)
	return update{summary: &summary}, "summary: " + summary, nil
}

func (o *Orchestrator) generate(ctx context.Context, state State) (update, string, error) {
	out, err := o.engine.Invoke(ctx, generatePrompt(o.opts.Persona, state.Query(), state.ContextSummary))
	if err != nil {
		return update{}, "", &GenerationError{Stage: StageGenerate, Err: err}
	}
	content := strings.TrimSpace(out)
	if content == "" {
		return update{}, "", &GenerationError{Stage: StageGenerate, Err: ErrEmptyReply}
	}
	reply := model.AssistantMessage(content)
	return update{reply: &reply}, "reply: " + content, nil
}
