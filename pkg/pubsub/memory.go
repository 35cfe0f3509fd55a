package pubsub

import (
	"context"
	"path"
	"sync"
)

// MemoryPubSub implements PubSub for a single process. Events published
// on a channel are delivered to exact-channel subscribers and to pattern
// subscribers whose glob matches the channel name.
type MemoryPubSub struct {
	subs     map[string][]chan *Event // exact channel -> subscribers
	patterns map[string][]chan *Event // glob pattern -> subscribers
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryPubSub creates an in-process PubSub instance.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		subs:     make(map[string][]chan *Event),
		patterns: make(map[string][]chan *Event),
	}
}

// Publish delivers the event to all matching subscribers without blocking.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil
	}

	for _, ch := range m.subs[channel] {
		deliver(ch, event)
	}
	for pattern, chans := range m.patterns {
		if ok, _ := path.Match(pattern, channel); ok {
			for _, ch := range chans {
				deliver(ch, event)
			}
		}
	}
	return nil
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *Event, 100)
	m.subs[channel] = append(m.subs[channel], ch)
	return ch, nil
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *Event, 100)
	m.patterns[pattern] = append(m.patterns[pattern], ch)
	return ch, nil
}

// Unsubscribe drops all subscribers of a channel or pattern.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs[channel] {
		close(ch)
	}
	delete(m.subs, channel)

	for _, ch := range m.patterns[channel] {
		close(ch)
	}
	delete(m.patterns, channel)
	return nil
}

// Close closes all subscriber channels.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for _, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	for _, chans := range m.patterns {
		for _, ch := range chans {
			close(ch)
		}
	}
	m.subs = make(map[string][]chan *Event)
	m.patterns = make(map[string][]chan *Event)
	return nil
}

func deliver(ch chan *Event, event *Event) {
	select {
	case ch <- event:
	default:
		// Subscriber is not keeping up; drop rather than block.
	}
}
