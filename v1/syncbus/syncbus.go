// Package syncbus carries lock events from an engine to whoever observes it.
// Delivery is best-effort: a subscriber that does not keep up loses events
// instead of slowing the publisher down.
package syncbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("syncbus: closed")

// subscriberBuffer is the number of payloads queued per subscriber before
// deliveries are dropped.
const subscriberBuffer = 64

// Bus is a subject-based pub/sub channel.
type Bus interface {
	// Publish sends payload to every subscriber of subject.
	Publish(ctx context.Context, subject string, payload []byte) error
	// Subscribe returns a channel receiving the payloads published on
	// subject. The channel is closed when ctx ends or the bus is closed.
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
	// Close releases the bus and closes every subscription.
	Close() error
}

// Metrics reports bus activity.
type Metrics struct {
	Published uint64
	Delivered uint64
}

// fanout keeps the local subscriber channels of a bus. onEmpty is called,
// outside the lock, when the last local subscriber of a subject leaves.
type fanout struct {
	mu        sync.Mutex
	subs      map[string][]chan []byte
	closed    bool
	done      chan struct{}
	published atomic.Uint64
	delivered atomic.Uint64
	onEmpty   func(subject string)
}

func newFanout(onEmpty func(string)) *fanout {
	return &fanout{
		subs:    make(map[string][]chan []byte),
		done:    make(chan struct{}),
		onEmpty: onEmpty,
	}
}

// add registers a subscriber that is removed once ctx ends or the fanout is
// closed.
func (f *fanout) add(ctx context.Context, subject string) (chan []byte, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan []byte, subscriberBuffer)
	f.subs[subject] = append(f.subs[subject], ch)
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			f.remove(subject, ch)
		case <-f.done:
		}
	}()
	return ch, nil
}

func (f *fanout) remove(subject string, ch chan []byte) {
	f.mu.Lock()
	subs := f.subs[subject]
	found := false
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			close(c)
			found = true
			break
		}
	}
	empty := found && len(subs) == 0
	if empty {
		delete(f.subs, subject)
	} else if found {
		f.subs[subject] = subs
	}
	f.mu.Unlock()
	if empty && f.onEmpty != nil {
		f.onEmpty(subject)
	}
}

func (f *fanout) deliver(subject string, payload []byte) {
	f.mu.Lock()
	chans := append([]chan []byte(nil), f.subs[subject]...)
	// Deliveries happen under the lock so that remove never closes a
	// channel being written to.
	for _, ch := range chans {
		select {
		case ch <- payload:
			f.delivered.Add(1)
		default:
		}
	}
	f.mu.Unlock()
}

func (f *fanout) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.done)
	for subject, subs := range f.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(f.subs, subject)
	}
	f.mu.Unlock()
}

func (f *fanout) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[subject])
}

func (f *fanout) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fanout) metrics() Metrics {
	return Metrics{Published: f.published.Load(), Delivered: f.delivered.Load()}
}

// InMemoryBus is a local implementation of Bus.
type InMemoryBus struct {
	f *fanout
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{f: newFanout(nil)}
}

// Publish implements Bus.Publish.
func (b *InMemoryBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.f.isClosed() {
		return ErrClosed
	}
	b.f.published.Add(1)
	b.f.deliver(subject, payload)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *InMemoryBus) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	ch, err := b.f.add(ctx, subject)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Close implements Bus.Close.
func (b *InMemoryBus) Close() error {
	b.f.close()
	return nil
}

// Metrics returns the published and delivered counts.
func (b *InMemoryBus) Metrics() Metrics {
	return b.f.metrics()
}
