package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/model"
	"docqa/internal/pkg/pdfextract"
	"docqa/internal/worker"
)

const IngestConfirmation = "The document has been processed successfully! You can now ask questions about its content."

const previewRunes = 200

type DocumentLoader interface {
	Load(ctx context.Context, raw []byte, filename string) ([]model.TextBlock, error)
}

type ChunkIndex interface {
	Insert(ctx context.Context, chunks []model.DocumentChunk) error
}

// FileLoader reads PDFs page by page and treats anything else as UTF-8 text.
type FileLoader struct{}

func (FileLoader) Load(_ context.Context, raw []byte, _ string) ([]model.TextBlock, error) {
	if pdfextract.IsPDF(raw) {
		return pdfextract.ExtractPages(raw)
	}
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []model.TextBlock{{Text: text}}, nil
}

// ChunkSummary is the diagnostic logged after splitting.
type ChunkSummary struct {
	Source  string `json:"source"`
	Chunks  int    `json:"chunks"`
	Preview string `json:"preview"`
}

type IngestService struct {
	loader DocumentLoader
	index  ChunkIndex
	opts   chunker.Options
	logger *zap.Logger
}

func NewIngestService(loader DocumentLoader, index ChunkIndex, opts chunker.Options, logger *zap.Logger) *IngestService {
	if loader == nil {
		loader = FileLoader{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{loader: loader, index: index, opts: opts, logger: logger.Named("ingest")}
}

// Ingest loads, splits and indexes one document. Ingesting the same bytes
// twice stores every chunk twice.
func (s *IngestService) Ingest(ctx context.Context, raw []byte, filename string, emit worker.Emitter) (*model.ChatMessage, error) {
	blocks, err := s.loader.Load(ctx, raw, filename)
	if err != nil {
		return nil, &IngestionError{Step: StepLoad, Err: err}
	}
	if len(blocks) == 0 {
		return nil, &IngestionError{Step: StepLoad, Err: ErrEmptyDocument}
	}

	opts := s.opts
	opts.Source = filename
	chunks, err := chunker.Split(blocks, opts)
	if err != nil {
		return nil, &IngestionError{Step: StepSplit, Err: err}
	}
	if len(chunks) == 0 {
		return nil, &IngestionError{Step: StepSplit, Err: ErrEmptyDocument}
	}

	summary := ChunkSummary{Source: filename, Chunks: len(chunks), Preview: preview(chunks[0].Text)}
	if emit != nil {
		emit.Log(summary)
	}
	s.logger.Info("document split",
		zap.String("source", filename),
		zap.Int("blocks", len(blocks)),
		zap.Int("chunks", len(chunks)),
	)

	if err := s.index.Insert(ctx, chunks); err != nil {
		return nil, &IngestionError{Step: StepIndex, Err: err}
	}

	msg := model.AssistantMessage(IngestConfirmation)
	return &msg, nil
}

// HandleEmbed adapts Ingest to the worker's embed command.
func (s *IngestService) HandleEmbed(ctx context.Context, cmd worker.Command, emit worker.Emitter) (*model.ChatMessage, error) {
	return s.Ingest(ctx, cmd.PDF, cmd.Filename, emit)
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "…"
}
