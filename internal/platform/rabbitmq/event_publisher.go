package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docqa/internal/worker"
)

type Subscriber interface {
	Subscribe(buffer int) *worker.Subscription
}

// EventPublisher mirrors every worker event onto a durable queue.
type EventPublisher struct {
	conn      *amqp.Connection
	queueName string
	buffer    int
	logger    *zap.Logger

	sub *worker.Subscription
	wg  sync.WaitGroup
}

func NewEventPublisher(conn *amqp.Connection, queueName string, buffer int, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		conn:      conn,
		queueName: queueName,
		buffer:    buffer,
		logger:    logger.Named("amqp.events"),
	}
}

const publishTimeout = 5 * time.Second

// channelPublisher is the part of *amqp.Channel the publisher needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Start subscribes to source and publishes until the subscription closes.
// Publishes are not tied to ctx, so events produced while the worker drains
// on shutdown still go out.
func (p *EventPublisher) Start(_ context.Context, source Subscriber) error {
	if p.sub != nil {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	if err := declareQueue(ch, p.queueName); err != nil {
		_ = ch.Close()
		return err
	}

	p.sub = source.Subscribe(p.buffer)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ch.Close()
		p.forward(ch, p.sub.C)
	}()
	return nil
}

func (p *EventPublisher) forward(ch channelPublisher, events <-chan worker.Event) {
	for ev := range events {
		msg, err := EncodeEvent(ev)
		if err != nil {
			p.logger.Warn("encode event failed", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = ch.PublishWithContext(ctx, "", p.queueName, false, false, msg)
		cancel()
		if err != nil {
			p.logger.Warn("publish event failed", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}

func EncodeEvent(ev worker.Event) (amqp.Publishing, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event payload failed: %w", err)
	}
	mode := amqp.Transient
	if ev.Terminal() {
		mode = amqp.Persistent
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		Body:          payload,
		DeliveryMode:  mode,
		CorrelationId: ev.RequestID,
		Type:          string(ev.Type),
	}, nil
}

func (p *EventPublisher) Close() {
	if p.sub != nil {
		p.sub.Close()
	}
	p.wg.Wait()
}
