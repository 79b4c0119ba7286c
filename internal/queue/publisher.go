package queue

import (
	"context"
	"sync"
)

type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(ctx context.Context, exchange, key string, event any, reqID string) error {
	return nil
}
func (NoopPub) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Exchange, Key string
	Event         any
	ReqID         string
}

func (r *Recorder) Publish(_ context.Context, exchange, key string, event any, reqID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Exchange: exchange, Key: key, Event: event, ReqID: reqID})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.Events...)
}
