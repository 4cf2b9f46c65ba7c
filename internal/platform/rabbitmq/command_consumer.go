package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docqa/internal/worker"
)

type Submitter interface {
	Submit(ctx context.Context, cmd worker.Command) (string, error)
}

// CommandConsumer feeds JSON commands from a durable queue into the worker.
// A delivery is acked once the worker has queued it.
type CommandConsumer struct {
	conn      *amqp.Connection
	submitter Submitter
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCommandConsumer(conn *amqp.Connection, submitter Submitter, queueName string, logger *zap.Logger) *CommandConsumer {
	return &CommandConsumer{
		conn:      conn,
		submitter: submitter,
		queueName: queueName,
		logger:    logger.Named("amqp.commands"),
	}
}

func (c *CommandConsumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open consumer channel failed: %w", err)
	}
	if err := declareQueue(ch, c.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	// one unacked delivery at a time; the worker queue does the buffering
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set consumer qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-consumerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				c.handle(consumerCtx, d)
			}
		}
	}()

	return nil
}

func (c *CommandConsumer) handle(ctx context.Context, d amqp.Delivery) {
	cmd, err := DecodeCommand(d.Body, d.CorrelationId)
	if err != nil {
		c.logger.Warn("decode command failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	id, err := c.submitter.Submit(ctx, cmd)
	if err != nil {
		c.logger.Warn("submit command failed", zap.String("type", string(cmd.Type)), zap.Error(err))
		_ = d.Nack(false, !errors.Is(err, worker.ErrClosed))
		return
	}
	c.logger.Debug("command queued", zap.String("request_id", id), zap.String("type", string(cmd.Type)))
	_ = d.Ack(false)
}

// DecodeCommand parses a delivery body. The AMQP correlation id becomes the
// request id when the body carries none.
func DecodeCommand(body []byte, correlationID string) (worker.Command, error) {
	var cmd worker.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return worker.Command{}, fmt.Errorf("unmarshal command failed: %w", err)
	}
	if cmd.Type == "" {
		return worker.Command{}, errors.New("command type is missing")
	}
	if cmd.ID == "" {
		cmd.ID = correlationID
	}
	return cmd, nil
}

func (c *CommandConsumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
