// Package capture runs one goroutine per active audio device, turning
// hardware callbacks into a fan-out of mono sample chunks. The publish path
// is non-blocking by construction: the hardware callback must never wait on
// a slow consumer.
package capture

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is each subscriber's chunk backlog before drops begin.
const DefaultCapacity = 1000

// Broadcaster fans chunks out to any number of subscribers. A full
// subscriber drops the chunk and counts the gap; a closed broadcaster
// ignores publishes.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	closed  bool
	dropped atomic.Int64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe returns a fresh receiver. It misses chunks published before the
// call (no replay). Subscribing to a closed broadcaster yields a subscriber
// that reports closed immediately.
func (b *Broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{b: b, ch: make(chan []float32, DefaultCapacity)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers chunk to every subscriber without blocking. Safe to call
// from the hardware callback.
func (b *Broadcaster) Publish(chunk []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- chunk:
		default:
			s.lagged.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Publishes after Close are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// Dropped returns the total chunks dropped across all subscribers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Subscriber receives chunks from one Broadcaster. Owned by a single
// consumer goroutine.
type Subscriber struct {
	b      *Broadcaster
	ch     chan []float32
	lagged atomic.Int64
	closed bool
}

// TryRecv returns the next buffered chunk without blocking. ok is false
// when the backlog is empty or the subscription has ended; distinguish via
// Closed.
func (s *Subscriber) TryRecv() ([]float32, bool) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			s.closed = true
			return nil, false
		}
		return chunk, true
	default:
		return nil, false
	}
}

// Recv blocks for the next chunk; ok is false once the subscription ends.
func (s *Subscriber) Recv() ([]float32, bool) {
	chunk, ok := <-s.ch
	if !ok {
		s.closed = true
	}
	return chunk, ok
}

// Closed reports whether the subscription has ended (observed through a
// failed receive).
func (s *Subscriber) Closed() bool { return s.closed }

// Lagged returns the number of chunks dropped for this subscriber since
// the last call, resetting the count.
func (s *Subscriber) Lagged() int64 {
	return s.lagged.Swap(0)
}

// Unsubscribe detaches the subscriber; buffered chunks are discarded.
func (s *Subscriber) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.subs[s]; ok {
		delete(s.b.subs, s)
		close(s.ch)
	}
}
