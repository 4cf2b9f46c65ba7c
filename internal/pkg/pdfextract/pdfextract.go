package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/internal/model"
)

var magic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// ExtractPages returns one block per page that has extractable text. Page
// numbers are 1-based. A PDF without any text yields no blocks and no error.
func ExtractPages(data []byte) (blocks []model.TextBlock, err error) {
	if len(data) == 0 {
		return nil, errors.New("pdf is empty")
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			blocks, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d failed: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, model.TextBlock{Text: text, Page: i})
	}
	return blocks, nil
}
