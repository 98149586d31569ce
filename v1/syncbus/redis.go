package syncbus

import (
	"context"
	stdErrors "errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

const redisBusTimeout = 5 * time.Second

// RedisBus implements Bus on Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	f      *fanout

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

// NewRedisBus returns a new RedisBus using the provided Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	b := &RedisBus{client: client, subs: make(map[string]*redis.PubSub)}
	b.f = newFanout(b.release)
	return b
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.f.isClosed() {
		return ErrClosed
	}
	cctx, cancel := context.WithTimeout(ctx, redisBusTimeout)
	defer cancel()
	if err := b.client.Publish(cctx, subject, payload).Err(); err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return warperrors.ErrTimeout
		}
		if stdErrors.Is(err, redis.ErrClosed) {
			return warperrors.ErrConnectionClosed
		}
		return err
	}
	b.f.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe. It returns once Redis has confirmed
// the subscription.
func (b *RedisBus) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	b.mu.Lock()
	if _, ok := b.subs[subject]; ok {
		ch, err := b.f.add(ctx, subject)
		b.mu.Unlock()
		return ch, err
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(context.Background(), subject)
	cctx, cancel := context.WithTimeout(ctx, redisBusTimeout)
	_, err := ps.Receive(cctx)
	cancel()
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	b.mu.Lock()
	if _, ok := b.subs[subject]; ok {
		// A concurrent Subscribe registered the subject first.
		ch, err := b.f.add(ctx, subject)
		b.mu.Unlock()
		_ = ps.Close()
		return ch, err
	}
	if b.f.isClosed() {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	b.subs[subject] = ps
	go func() {
		for msg := range ps.Channel() {
			b.f.deliver(subject, []byte(msg.Payload))
		}
	}()
	ch, err := b.f.add(ctx, subject)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *RedisBus) release(subject string) {
	b.mu.Lock()
	if b.f.count(subject) > 0 {
		b.mu.Unlock()
		return
	}
	ps, ok := b.subs[subject]
	delete(b.subs, subject)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Close implements Bus.Close. The Redis client is left open.
func (b *RedisBus) Close() error {
	b.f.close()
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*redis.PubSub)
	b.mu.Unlock()
	for _, ps := range subs {
		_ = ps.Close()
	}
	return nil
}

// Metrics returns the published and delivered counts.
func (b *RedisBus) Metrics() Metrics {
	return b.f.metrics()
}
