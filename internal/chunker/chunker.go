// Package chunker splits loaded document text into overlapping fixed-size
// segments. Sizes are measured in runes.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"docqa/internal/model"
)

const (
	DefaultMaxSize = 500
	DefaultOverlap = 50
)

var ErrInvalidOptions = errors.New("invalid chunker options")

type Options struct {
	MaxSize int
	Overlap int
	Source  string
}

func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize, Overlap: DefaultOverlap}
}

func (o Options) Validate() error {
	if o.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidOptions, o.MaxSize)
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidOptions, o.MaxSize, o.Overlap)
	}
	return nil
}

// Split cuts every block into windows of at most MaxSize runes. Each window
// after the first in a block starts Overlap runes before the previous one
// ended. Whitespace-only blocks produce no chunks.
func Split(blocks []model.TextBlock, opts Options) ([]model.DocumentChunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var chunks []model.DocumentChunk
	for blockIdx, block := range blocks {
		if strings.TrimSpace(block.Text) == "" {
			continue
		}
		for _, span := range windows(block.Text, opts.MaxSize, opts.Overlap) {
			chunks = append(chunks, model.DocumentChunk{
				Text: span.text,
				Metadata: model.ChunkMetadata{
					Source: opts.Source,
					Page:   block.Page,
					Block:  blockIdx,
					Index:  len(chunks),
					Start:  span.start,
					End:    span.end,
				},
			})
		}
	}
	return chunks, nil
}

type span struct {
	text       string
	start, end int
}

func windows(text string, size, overlap int) []span {
	runes := []rune(text)
	if len(runes) <= size {
		return []span{{text: text, start: 0, end: len(runes)}}
	}

	var out []span
	for start := 0; ; {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, span{text: string(runes[start:end]), start: start, end: end})
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}
