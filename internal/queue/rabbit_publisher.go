package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const publishTimeout = 3 * time.Second

// RabbitPublisher publishes JSON events in confirm mode: Publish returns
// only after the broker took the message.
type RabbitPublisher struct {
	mu       sync.Mutex // one publish at a time on the channel
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewRabbit dials the broker and declares the topic exchange events go to.
func NewRabbit(url, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	p := &RabbitPublisher{conn: conn, exchange: exchange}
	if p.ch, err = conn.Channel(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := p.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := p.ch.Confirm(false); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	return p, nil
}

func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	return nil
}

// Publish sends event as persistent JSON. An empty exchange means the one
// declared in NewRabbit.
func (p *RabbitPublisher) Publish(ctx context.Context, exchange, key string, event any, reqID string) (err error) {
	if p == nil || p.ch == nil {
		return nil
	}
	if exchange == "" {
		exchange = p.exchange
	}
	span, ctx := tracer.StartSpanFromContext(ctx, "rabbit.publish",
		tracer.ResourceName(key),
		tracer.Tag("exchange", exchange),
	)
	defer func() { span.Finish(tracer.WithError(err)) }()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	// чтобы не повиснуть, если брокер тормозит
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"X-Request-ID": reqID},
	}

	p.mu.Lock()
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: nacked by broker", key)
	}
	return nil
}
