package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

var allowedExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

type DocumentUploader interface {
	UploadDocument(ctx context.Context, raw []byte, filename string) (*model.ChatMessage, error)
}

type DocumentHandler struct {
	uploader DocumentUploader
	maxBytes int64
	timeout  time.Duration
}

func NewDocumentHandler(uploader DocumentUploader, maxBytes int64, timeout time.Duration) *DocumentHandler {
	return &DocumentHandler{uploader: uploader, maxBytes: maxBytes, timeout: timeout}
}

// Upload indexes the multipart "file" field and returns the worker's
// confirmation message.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		// multipart framing needs some headroom over the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+64<<10)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeDocumentTooLarge, "document too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeDocumentTooLarge, "document too large")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidDocument, "unsupported document type "+ext)
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, err, "read document failed")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		writeError(c, err, "read document failed")
		return
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	msg, err := h.uploader.UploadDocument(ctx, raw, filepath.Base(header.Filename))
	if err != nil {
		writeError(c, err, "index document failed")
		return
	}

	response.OK(c, gin.H{"filename": header.Filename, "bytes": len(raw), "message": msg})
}
