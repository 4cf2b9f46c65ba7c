package worker

import (
	"context"

	"docqa/internal/model"
)

type CommandType string

const (
	CommandEmbed CommandType = "embed"
	CommandQuery CommandType = "query"
)

type EventType string

const (
	EventLog          EventType = "log"
	EventError        EventType = "error"
	EventInitProgress EventType = "init_progress"
	EventComplete     EventType = "complete"
)

// Command is an inbound request. PDF carries the raw document bytes for
// embed; Messages carries the conversation for query.
type Command struct {
	ID       string              `json:"id,omitempty"`
	Type     CommandType         `json:"type"`
	PDF      []byte              `json:"pdf,omitempty"`
	Filename string              `json:"filename,omitempty"`
	Messages []model.ChatMessage `json:"messages,omitempty"`
	DevMode  bool                `json:"devMode,omitempty"`
}

// Event is an outbound notification. Every known command ends with exactly
// one complete or error event carrying its RequestID.
type Event struct {
	RequestID string               `json:"requestId,omitempty"`
	Type      EventType            `json:"type"`
	Data      any                  `json:"data,omitempty"`
	Progress  *model.ProgressEvent `json:"progress,omitempty"`
	Message   *model.ChatMessage   `json:"message,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Emitter lets handlers publish observational events for their request.
type Emitter interface {
	Log(data any)
	Progress(p model.ProgressEvent)
}

// Handler processes one command and returns the assistant message to send
// back, or an error that becomes the terminal error event.
type Handler func(ctx context.Context, cmd Command, emit Emitter) (*model.ChatMessage, error)

// InitFunc prepares the worker before the first command is processed.
type InitFunc func(ctx context.Context, emit Emitter) error
