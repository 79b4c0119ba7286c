package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	plog "github.com/tazhibayda/profile-service/internal/log"
)

// ErrDrop tells Consume to ack a message without processing it again,
// e.g. a body that will never parse.
var ErrDrop = errors.New("drop message")

// Handler processes one delivery body.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
}

// NewConsumer declares exchange and a durable queue bound to it with key.
func NewConsumer(url, exchange, queue, key string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	c := &Consumer{conn: conn, prefetch: 50}
	if err := c.declare(exchange, queue, key); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) declare(exchange, queue, key string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	c.ch = ch

	// гарантируем, что exchange/queue существуют и связаны
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s/%s: %w", q.Name, exchange, key, err)
	}
	c.queue = q.Name
	return nil
}

func (c *Consumer) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Consume runs workers until ctx is done (nil) or the broker closes the
// channel (error). A failed message is requeued once; a second failure
// rejects it for good.
func (c *Consumer) Consume(ctx context.Context, workers int, handle Handler) error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if workers <= 0 {
		workers = 1
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.deliver(ctx, d, handle)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("delivery channel closed")
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery, handle Handler) {
	span, ctx := tracer.StartSpanFromContext(ctx, "rabbit.consume",
		tracer.ResourceName(d.RoutingKey),
		tracer.Tag("queue", c.queue),
		tracer.Tag("redelivered", d.Redelivered),
	)
	err := safeHandle(ctx, handle, d.Body)
	span.Finish(tracer.WithError(err))

	lg := plog.Ctx(ctx, zap.String("message_id", d.MessageId), zap.String("key", d.RoutingKey))
	switch settle(err, d.Redelivered) {
	case ack:
		if err != nil {
			lg.Warn("message dropped", zap.Error(err))
		}
		_ = d.Ack(false)
	case requeue:
		lg.Warn("message failed, requeue", zap.Error(err))
		_ = d.Nack(false, true)
	case reject:
		lg.Error("message failed twice, rejecting", zap.Error(err))
		_ = d.Nack(false, false)
	}
}

func safeHandle(ctx context.Context, handle Handler, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrDrop, r)
		}
	}()
	return handle(ctx, body)
}

type verdict int

const (
	ack verdict = iota
	requeue
	reject
)

func settle(err error, redelivered bool) verdict {
	switch {
	case err == nil, errors.Is(err, ErrDrop):
		return ack
	case redelivered:
		return reject
	default:
		return requeue
	}
}
