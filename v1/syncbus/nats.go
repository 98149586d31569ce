package syncbus

import (
	"context"
	"sync"

	nats "github.com/nats-io/nats.go"
)

// NATSBus implements Bus using a NATS backend. One NATS subscription is kept
// per subject while at least one local subscriber listens on it.
type NATSBus struct {
	conn *nats.Conn
	f    *fanout

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NewNATSBus returns a new NATSBus using the provided connection. The
// connection stays owned by the caller.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	b := &NATSBus{conn: conn, subs: make(map[string]*nats.Subscription)}
	b.f = newFanout(b.release)
	return b
}

// Publish implements Bus.Publish.
func (b *NATSBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.f.isClosed() {
		return ErrClosed
	}
	if err := b.conn.Publish(subject, payload); err != nil {
		return err
	}
	b.f.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *NATSBus) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	b.mu.Lock()
	if _, ok := b.subs[subject]; !ok {
		ns, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
			b.f.deliver(subject, m.Data)
		})
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		if err := b.conn.Flush(); err != nil {
			_ = ns.Unsubscribe()
			b.mu.Unlock()
			return nil, err
		}
		b.subs[subject] = ns
	}
	ch, err := b.f.add(ctx, subject)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *NATSBus) release(subject string) {
	b.mu.Lock()
	if b.f.count(subject) > 0 {
		b.mu.Unlock()
		return
	}
	ns, ok := b.subs[subject]
	delete(b.subs, subject)
	b.mu.Unlock()
	if ok {
		_ = ns.Unsubscribe()
	}
}

// Close implements Bus.Close. The NATS connection is left open.
func (b *NATSBus) Close() error {
	b.f.close()
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*nats.Subscription)
	b.mu.Unlock()
	for _, ns := range subs {
		_ = ns.Unsubscribe()
	}
	return nil
}

// Metrics returns the published and delivered counts.
func (b *NATSBus) Metrics() Metrics {
	return b.f.metrics()
}
