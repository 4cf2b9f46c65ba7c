package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/model"
	"docqa/internal/worker"
)

type HistoryStore interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, conversationID string) error
}

// Dispatcher sends a command across the worker boundary and waits for its
// terminal event.
type Dispatcher interface {
	Call(ctx context.Context, cmd worker.Command) (worker.Event, error)
}

type SendInput struct {
	ConversationID string
	Content        string
	DevMode        bool
}

type SendResult struct {
	ConversationID string            `json:"conversation_id"`
	Reply          model.ChatMessage `json:"reply"`
	HistoryLength  int               `json:"history_length"`
}

// ConversationService owns conversation history on the caller side of the
// worker boundary.
type ConversationService struct {
	history    HistoryStore
	dispatcher Dispatcher
	maxContext int
	logger     *zap.Logger
}

func NewConversationService(history HistoryStore, dispatcher Dispatcher, maxContext int, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		history:    history,
		dispatcher: dispatcher,
		maxContext: maxContext,
		logger:     logger.Named("conversation"),
	}
}

// Send asks the worker to answer content in the context of the stored
// history. History is only extended once a reply arrives, so a failed
// request leaves it untouched.
func (s *ConversationService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}
	id := strings.TrimSpace(in.ConversationID)
	if id == "" {
		id = uuid.NewString()
	}

	history, _, err := s.history.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	next := make([]model.ChatMessage, 0, len(history)+2)
	next = append(next, history...)
	next = append(next, model.UserMessage(content))

	ev, err := s.dispatch(ctx, worker.Command{
		Type:     worker.CommandQuery,
		Messages: trimMessages(next, s.maxContext),
		DevMode:  in.DevMode,
	})
	if err != nil {
		return nil, err
	}

	next = append(next, *ev.Message)
	if err := s.history.SetHistory(ctx, id, next); err != nil {
		return nil, err
	}
	return &SendResult{ConversationID: id, Reply: *ev.Message, HistoryLength: len(next)}, nil
}

// UploadDocument hands a document to the worker for indexing and returns the
// confirmation message.
func (s *ConversationService) UploadDocument(ctx context.Context, raw []byte, filename string) (*model.ChatMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidInput)
	}
	ev, err := s.dispatch(ctx, worker.Command{Type: worker.CommandEmbed, PDF: raw, Filename: filename})
	if err != nil {
		return nil, err
	}
	return ev.Message, nil
}

func (s *ConversationService) History(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidInput
	}
	messages, hit, err := s.history.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, ErrConversationNotFound
	}
	return messages, nil
}

func (s *ConversationService) Reset(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrInvalidInput
	}
	return s.history.DeleteHistory(ctx, conversationID)
}

func (s *ConversationService) dispatch(ctx context.Context, cmd worker.Command) (worker.Event, error) {
	ev, err := s.dispatcher.Call(ctx, cmd)
	if err != nil {
		return worker.Event{}, fmt.Errorf("dispatch %s failed: %w", cmd.Type, err)
	}
	if ev.Type == worker.EventError {
		s.logger.Warn("worker reported failure", zap.String("type", string(cmd.Type)), zap.String("error", ev.Error))
		return worker.Event{}, fmt.Errorf("%w: %s", ErrRequestFailed, ev.Error)
	}
	if ev.Message == nil {
		return worker.Event{}, fmt.Errorf("%w: no message in reply", ErrRequestFailed)
	}
	return ev, nil
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
