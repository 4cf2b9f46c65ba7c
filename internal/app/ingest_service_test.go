package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/index"
	"docqa/internal/model"
)

type failingIndex struct{ err error }

func (f failingIndex) Insert(context.Context, []model.DocumentChunk) error { return f.err }

type failingLoader struct{ err error }

func (f failingLoader) Load(context.Context, []byte, string) ([]model.TextBlock, error) {
	return nil, f.err
}

func TestFileLoader_PlainText(t *testing.T) {
	blocks, err := FileLoader{}.Load(context.Background(), []byte("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []model.TextBlock{{Text: "hello world"}}, blocks)

	blocks, err = FileLoader{}.Load(context.Background(), []byte(" \n\t "), "blank.txt")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestIngest_IndexesChunksAndConfirms(t *testing.T) {
	idx := index.NewMemoryIndex(letterEmbedder{}, 0)
	svc := NewIngestService(nil, idx, chunker.DefaultOptions(), zap.NewNop())
	emit := &recordingEmitter{}

	msg, err := svc.Ingest(context.Background(), []byte(strings.Repeat("a", 1200)), "report.txt", emit)
	require.NoError(t, err)
	assert.Equal(t, model.AssistantMessage(IngestConfirmation), *msg)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.Len(t, emit.logs, 1)
	summary, ok := emit.logs[0].(ChunkSummary)
	require.True(t, ok)
	assert.Equal(t, "report.txt", summary.Source)
	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, strings.Repeat("a", previewRunes)+"…", summary.Preview)
}

func TestIngest_SameDocumentTwiceDuplicatesChunks(t *testing.T) {
	idx := index.NewMemoryIndex(letterEmbedder{}, 0)
	svc := NewIngestService(nil, idx, chunker.DefaultOptions(), zap.NewNop())
	doc := []byte(strings.Repeat("word ", 200))

	_, err := svc.Ingest(context.Background(), doc, "a.txt", nil)
	require.NoError(t, err)
	first, _ := idx.Count(context.Background())

	_, err = svc.Ingest(context.Background(), doc, "a.txt", nil)
	require.NoError(t, err)
	second, _ := idx.Count(context.Background())

	assert.Equal(t, 2*first, second)
}

func TestIngest_FailuresNameTheStep(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		svc     *IngestService
		raw     []byte
		step    string
		wantErr error
	}{
		{
			name:    "loader error",
			svc:     NewIngestService(failingLoader{err: boom}, failingIndex{}, chunker.DefaultOptions(), nil),
			raw:     []byte("x"),
			step:    StepLoad,
			wantErr: boom,
		},
		{
			name:    "empty document",
			svc:     NewIngestService(nil, failingIndex{}, chunker.DefaultOptions(), nil),
			raw:     []byte("   "),
			step:    StepLoad,
			wantErr: ErrEmptyDocument,
		},
		{
			name:    "bad chunker options",
			svc:     NewIngestService(nil, failingIndex{}, chunker.Options{MaxSize: 10, Overlap: 10}, nil),
			raw:     []byte("some text"),
			step:    StepSplit,
			wantErr: chunker.ErrInvalidOptions,
		},
		{
			name:    "index error",
			svc:     NewIngestService(nil, failingIndex{err: boom}, chunker.DefaultOptions(), nil),
			raw:     []byte("some text"),
			step:    StepIndex,
			wantErr: boom,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := tc.svc.Ingest(context.Background(), tc.raw, "doc.txt", nil)
			assert.Nil(t, msg)

			var ingestErr *IngestionError
			require.ErrorAs(t, err, &ingestErr)
			assert.Equal(t, tc.step, ingestErr.Step)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
