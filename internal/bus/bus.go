// Package bus implements the process-wide pub/sub that fans filtered
// thinking fragments out to any number of SSE subscribers, with a bounded
// ring buffer per subscriber and best-effort, oldest-drop-on-overflow
// delivery.
package bus

import (
	"sync"

	"thinkproxy/internal/canonical"
)

// DefaultCapacity is the per-subscriber ring buffer capacity the server
// uses, and the value New substitutes for a non-positive capacity.
const DefaultCapacity = 64

// Subscriber receives fragments over Events until Close is called. Close is
// the only thing that unregisters a subscriber and closes Events; the bus
// never closes it on its own.
type Subscriber struct {
	Events <-chan canonical.Fragment

	bus *Bus
	sub *subscriber
}

// Close unregisters the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.bus.unsubscribe(s.sub)
}

// subscriber guards its channel with its own mutex so a publisher working
// from a stale snapshot can never send on a channel that Close has already
// closed.
type subscriber struct {
	mu     sync.Mutex
	ch     chan canonical.Fragment
	closed bool
}

// send delivers fragment without ever blocking: a full ring drops its
// oldest buffered fragment to make room.
func (s *subscriber) send(fragment canonical.Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- fragment:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- fragment:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bus is the process-wide fragment broadcaster. Callers construct one with
// New and pass it explicitly rather than reaching for a package-level
// global, so tests can run isolated buses and teardown is just dropping
// the handle.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	cap  int
}

// New returns a ready Bus with the given per-subscriber ring capacity. A
// capacity <= 0 is rounded up to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{subs: make(map[*subscriber]struct{}), cap: capacity}
}

// Subscribe registers a new subscriber and returns its handle. Unregister
// via Subscriber.Close when the client's SSE connection ends.
func (b *Bus) Subscribe() *Subscriber {
	sub := &subscriber{ch: make(chan canonical.Fragment, b.cap)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return &Subscriber{Events: sub.ch, bus: b, sub: sub}
}

func (b *Bus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish broadcasts fragment to every current subscriber. It snapshots
// the subscriber list under the bus lock and does the non-blocking sends
// outside it, so slow or blocked readers never hold up the publisher or
// each other. Delivery is best-effort.
func (b *Bus) Publish(fragment canonical.Fragment) {
	b.mu.Lock()
	snapshot := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.Unlock()

	for _, sub := range snapshot {
		sub.send(fragment)
	}
}

// SubscriberCount reports the current number of subscribers. Used by
// tests; not part of the public SSE contract.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
