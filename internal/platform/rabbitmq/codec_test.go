package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/internal/model"
	"docqa/internal/worker"
)

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"query","messages":[{"role":"user","content":"hi"}],"devMode":true}`), "corr-1")
	require.NoError(t, err)
	assert.Equal(t, worker.CommandQuery, cmd.Type)
	assert.Equal(t, "corr-1", cmd.ID)
	assert.True(t, cmd.DevMode)
	assert.Equal(t, []model.ChatMessage{model.UserMessage("hi")}, cmd.Messages)

	cmd, err = DecodeCommand([]byte(`{"id":"own","type":"embed","pdf":"JVBERi0=","filename":"a.pdf"}`), "corr-2")
	require.NoError(t, err)
	assert.Equal(t, "own", cmd.ID)
	assert.Equal(t, []byte("%PDF-"), cmd.PDF)
}

func TestDecodeCommand_Rejects(t *testing.T) {
	_, err := DecodeCommand([]byte(`not json`), "")
	assert.Error(t, err)

	_, err = DecodeCommand([]byte(`{"messages":[]}`), "")
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	msg := model.AssistantMessage("done")
	pub, err := EncodeEvent(worker.Event{RequestID: "r1", Type: worker.EventComplete, Message: &msg})
	require.NoError(t, err)
	assert.Equal(t, "r1", pub.CorrelationId)
	assert.Equal(t, "complete", pub.Type)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, "complete", decoded["type"])
	assert.Equal(t, map[string]any{"role": "assistant", "content": "done"}, decoded["message"])
	assert.NotContains(t, decoded, "error")

	pub, err = EncodeEvent(worker.Event{Type: worker.EventLog, Data: "received query"})
	require.NoError(t, err)
	assert.Equal(t, amqp.Transient, pub.DeliveryMode)
}

type recordingChannel struct {
	published []amqp.Publishing
	ctxErrs   []error
	deadlines []bool
}

func (r *recordingChannel) PublishWithContext(ctx context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	_, hasDeadline := ctx.Deadline()
	r.published = append(r.published, msg)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.deadlines = append(r.deadlines, hasDeadline)
	return nil
}

func TestEventPublisher_ForwardUsesFreshDeadlinePerMessage(t *testing.T) {
	p := NewEventPublisher(nil, "events", 4, zap.NewNop())

	msg := model.AssistantMessage("done")
	events := make(chan worker.Event, 2)
	events <- worker.Event{RequestID: "r1", Type: worker.EventLog, Data: "received query"}
	events <- worker.Event{RequestID: "r1", Type: worker.EventComplete, Message: &msg}
	close(events)

	ch := &recordingChannel{}
	p.forward(ch, events)

	require.Len(t, ch.published, 2)
	assert.Equal(t, []error{nil, nil}, ch.ctxErrs)
	assert.Equal(t, []bool{true, true}, ch.deadlines)
	assert.Equal(t, "complete", ch.published[1].Type)
	assert.Equal(t, amqp.Persistent, ch.published[1].DeliveryMode)
}
