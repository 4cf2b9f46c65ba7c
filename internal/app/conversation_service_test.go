package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/internal/cache"
	"docqa/internal/model"
	"docqa/internal/worker"
)

type stubDispatcher struct {
	calls []worker.Command
	reply func(cmd worker.Command) (worker.Event, error)
}

func (d *stubDispatcher) Call(_ context.Context, cmd worker.Command) (worker.Event, error) {
	d.calls = append(d.calls, cmd)
	return d.reply(cmd)
}

func completeWith(content string) func(worker.Command) (worker.Event, error) {
	return func(cmd worker.Command) (worker.Event, error) {
		msg := model.AssistantMessage(content)
		return worker.Event{RequestID: cmd.ID, Type: worker.EventComplete, Message: &msg}, nil
	}
}

func TestConversation_SendAppendsHistoryOnComplete(t *testing.T) {
	history := cache.NewMemoryHistory(0)
	dispatcher := &stubDispatcher{reply: completeWith("first answer")}
	svc := NewConversationService(history, dispatcher, 0, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Send(ctx, SendInput{Content: "  first question  "})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, "first answer", res.Reply.Content)
	assert.Equal(t, 2, res.HistoryLength)

	dispatcher.reply = completeWith("second answer")
	res, err = svc.Send(ctx, SendInput{ConversationID: res.ConversationID, Content: "second question", DevMode: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.HistoryLength)

	last := dispatcher.calls[1]
	assert.Equal(t, worker.CommandQuery, last.Type)
	assert.True(t, last.DevMode)
	assert.Equal(t, []model.ChatMessage{
		model.UserMessage("first question"),
		model.AssistantMessage("first answer"),
		model.UserMessage("second question"),
	}, last.Messages)

	stored, err := svc.History(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	assert.Equal(t, model.AssistantMessage("second answer"), stored[3])
}

func TestConversation_FailedRequestLeavesHistoryUntouched(t *testing.T) {
	history := cache.NewMemoryHistory(0)
	ctx := context.Background()
	require.NoError(t, history.SetHistory(ctx, "c1", []model.ChatMessage{
		model.UserMessage("q"), model.AssistantMessage("a"),
	}))

	cases := map[string]func(worker.Command) (worker.Event, error){
		"error event": func(cmd worker.Command) (worker.Event, error) {
			return worker.Event{RequestID: cmd.ID, Type: worker.EventError, Error: "generate failed: gpu lost"}, nil
		},
		"dispatch error": func(worker.Command) (worker.Event, error) {
			return worker.Event{}, worker.ErrClosed
		},
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewConversationService(history, &stubDispatcher{reply: reply}, 0, nil)

			_, err := svc.Send(ctx, SendInput{ConversationID: "c1", Content: "follow-up"})
			require.Error(t, err)

			stored, err := svc.History(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, stored, 2)
		})
	}
}

func TestConversation_ErrorEventSurfacesMessage(t *testing.T) {
	dispatcher := &stubDispatcher{reply: func(cmd worker.Command) (worker.Event, error) {
		return worker.Event{Type: worker.EventError, Error: "generate failed: gpu lost"}, nil
	}}
	svc := NewConversationService(cache.NewMemoryHistory(0), dispatcher, 0, nil)

	_, err := svc.Send(context.Background(), SendInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "gpu lost")
}

func TestConversation_MaxContextTrimsQuery(t *testing.T) {
	history := cache.NewMemoryHistory(0)
	ctx := context.Background()
	var prior []model.ChatMessage
	for i := 0; i < 10; i++ {
		prior = append(prior, model.UserMessage("q"), model.AssistantMessage("a"))
	}
	require.NoError(t, history.SetHistory(ctx, "c1", prior))

	dispatcher := &stubDispatcher{reply: completeWith("ok")}
	svc := NewConversationService(history, dispatcher, 4, nil)
	res, err := svc.Send(ctx, SendInput{ConversationID: "c1", Content: "latest"})
	require.NoError(t, err)

	require.Len(t, dispatcher.calls[0].Messages, 4)
	assert.Equal(t, model.UserMessage("latest"), dispatcher.calls[0].Messages[3])
	assert.Equal(t, 22, res.HistoryLength)
}

func TestConversation_Validation(t *testing.T) {
	svc := NewConversationService(cache.NewMemoryHistory(0), &stubDispatcher{reply: completeWith("x")}, 0, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendInput{Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.History(ctx, "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.ErrorIs(t, svc.Reset(ctx, ""), ErrInvalidInput)

	_, err = svc.UploadDocument(ctx, nil, "a.pdf")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConversation_ResetForgetsHistory(t *testing.T) {
	history := cache.NewMemoryHistory(0)
	svc := NewConversationService(history, &stubDispatcher{reply: completeWith("x")}, 0, nil)
	ctx := context.Background()

	res, err := svc.Send(ctx, SendInput{Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx, res.ConversationID))

	_, err = svc.History(ctx, res.ConversationID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversation_UploadDocument(t *testing.T) {
	dispatcher := &stubDispatcher{reply: completeWith(IngestConfirmation)}
	svc := NewConversationService(cache.NewMemoryHistory(0), dispatcher, 0, nil)

	msg, err := svc.UploadDocument(context.Background(), []byte("%PDF-1.4"), "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, IngestConfirmation, msg.Content)
	assert.Equal(t, worker.CommandEmbed, dispatcher.calls[0].Type)
	assert.Equal(t, "paper.pdf", dispatcher.calls[0].Filename)

	dispatcher.reply = func(worker.Command) (worker.Event, error) {
		return worker.Event{Type: worker.EventError, Error: "document index failed: offline"}, nil
	}
	_, err = svc.UploadDocument(context.Background(), []byte("x"), "x.txt")
	assert.True(t, errors.Is(err, ErrRequestFailed))
}
