package bus

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"
)

// DefaultTopicCapacity bounds the per-topic buffer. Publishing only blocks once
// a topic's consumer falls this far behind.
const DefaultTopicCapacity = 4096

// Handler consumes one payload of a topic. A non-nil error aborts the topic's
// delivery loop.
type Handler func(ctx context.Context, payload any) error

// PubSub is a topic-keyed broker. Any comparable value is a topic key.
//
// Each topic has exactly one FIFO delivery loop: every published payload is
// handed to all handlers registered at delivery time, sequentially in
// registration order, and the loop waits for each handler to return before the
// next handler and before the next payload. Distinct topics run independently.
type PubSub struct {
	mu       sync.Mutex
	capacity int
	topics   map[any]*topic
}

type topic struct {
	ch chan any

	mu       sync.Mutex
	handlers []Handler
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// New creates a broker with the default per-topic buffer capacity.
func New() *PubSub {
	return NewWithCapacity(DefaultTopicCapacity)
}

// NewWithCapacity creates a broker with the given per-topic buffer capacity.
func NewWithCapacity(capacity int) *PubSub {
	if capacity <= 0 {
		capacity = 1
	}
	return &PubSub{
		capacity: capacity,
		topics:   make(map[any]*topic),
	}
}

// Publish enqueues payload for key. The topic buffer keeps accepting payloads
// whether or not anyone consumes them yet.
func (ps *PubSub) Publish(key any, payload any) {
	ps.topic(key).ch <- payload
}

// Subscribe registers a handler for key. The first subscription of a topic
// starts its delivery loop; a subscription after Stop restarts it, resuming
// from the retained buffer.
func (ps *PubSub) Subscribe(ctx context.Context, key any, handler Handler) {
	t := ps.topic(key)

	t.mu.Lock()
	t.handlers = append(t.handlers, handler)
	start := !t.running
	if start {
		t.running = true
		t.stop = make(chan struct{})
		t.done = make(chan struct{})
	}
	stop, done := t.stop, t.done
	t.mu.Unlock()

	if start {
		go t.deliver(ctx, key, stop, done)
	}
}

// Stop halts the delivery loop for key and waits for it to exit. Buffered
// payloads are retained, not drained; they stay undelivered until a new
// Subscribe restarts the loop.
func (ps *PubSub) Stop(key any) {
	ps.mu.Lock()
	t, ok := ps.topics[key]
	ps.mu.Unlock()
	if !ok {
		return
	}
	if done := t.halt(); done != nil {
		<-done
	}
}

// StopAll halts every topic's delivery loop.
func (ps *PubSub) StopAll() {
	ps.mu.Lock()
	topics := make([]*topic, 0, len(ps.topics))
	for _, t := range ps.topics {
		topics = append(topics, t)
	}
	ps.mu.Unlock()

	pending := make([]chan struct{}, 0, len(topics))
	for _, t := range topics {
		if done := t.halt(); done != nil {
			pending = append(pending, done)
		}
	}
	for _, done := range pending {
		<-done
	}
}

func (ps *PubSub) topic(key any) *topic {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	t, ok := ps.topics[key]
	if !ok {
		t = &topic{ch: make(chan any, ps.capacity)}
		ps.topics[key] = t
	}
	return t
}

// halt signals the delivery loop to exit and returns its done channel, or nil
// when no loop is running.
func (t *topic) halt() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false
	close(t.stop)
	return t.done
}

func (t *topic) deliver(ctx context.Context, key any, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			t.halt()
			return
		case <-stop:
			return
		case payload := <-t.ch:
			t.mu.Lock()
			handlers := make([]Handler, len(t.handlers))
			copy(handlers, t.handlers)
			t.mu.Unlock()

			for _, handler := range handlers {
				if err := handler(ctx, payload); err != nil {
					logs.Errorf("topic %v: handler failed, delivery stopped, err: %+v", key, err)
					t.halt()
					return
				}
			}
		}
	}
}
