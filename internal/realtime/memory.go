package realtime

import (
	"context"
	"sync"
)

type subscription struct {
	ch   chan Event
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryFeed is an in-process fan-out implementation of Feed. It backs tests
// and single-instance deployments that run without redis.
type MemoryFeed struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	bufSize     int
	closed      bool
}

// NewMemoryFeed creates a MemoryFeed with the given per-subscriber buffer size.
func NewMemoryFeed(bufSize int) *MemoryFeed {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &MemoryFeed{
		subscribers: make(map[string][]*subscription),
		bufSize:     bufSize,
	}
}

// Publish delivers the event to every current subscriber of the channel.
// Subscribers with a full buffer miss the event rather than block the caller.
func (f *MemoryFeed) Publish(_ context.Context, channel string, event Event) error {
	f.mu.RLock()
	subs := append([]*subscription(nil), f.subscribers[channel]...)
	f.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers for events on the provided channels. The same delivery
// channel serves all of them.
func (f *MemoryFeed) Subscribe(_ context.Context, channels ...string) (<-chan Event, func(), error) {
	sub := &subscription{ch: make(chan Event, f.bufSize)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.close()
		return sub.ch, func() {}, nil
	}
	for _, c := range channels {
		f.subscribers[c] = append(f.subscribers[c], sub)
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		for _, c := range channels {
			list := f.subscribers[c]
			for j, s := range list {
				if s == sub {
					f.subscribers[c] = append(list[:j], list[j+1:]...)
					break
				}
			}
		}
		f.mu.Unlock()
		sub.close()
	}

	return sub.ch, cancel, nil
}

// Close drops all subscriptions and closes their delivery channels.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := f.subscribers
	f.subscribers = make(map[string][]*subscription)
	f.mu.Unlock()

	for _, list := range subs {
		for _, s := range list {
			s.close()
		}
	}
	return nil
}

var _ Feed = (*MemoryFeed)(nil)
