package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirkobrombin/go-txlock/v1/locktx"
	"github.com/mirkobrombin/go-txlock/v1/metrics"
)

// Txn is a locktx.Transaction tagged with an ID for logs, spans and events.
// Like the transaction it wraps, it is a value.
type Txn struct {
	ID uuid.UUID
	locktx.Transaction
}

// Lock is locktx.Transaction.Lock keeping the ID.
func (t Txn) Lock(topic locktx.Topic, kind locktx.Kind) (Txn, error) {
	next, err := t.Transaction.Lock(topic, kind)
	if err != nil {
		return t, err
	}
	return Txn{ID: t.ID, Transaction: next}, nil
}

// WithLock is locktx.Transaction.WithLock keeping the ID.
func (t Txn) WithLock(topic locktx.Topic, kind locktx.Kind, body func(Txn) error) error {
	return t.Transaction.WithLock(topic, kind, func(elevated locktx.Transaction) error {
		return body(Txn{ID: t.ID, Transaction: elevated})
	})
}

// BeginOption configures a transaction started by Begin.
type BeginOption func(*Txn)

// WithInitialState starts the transaction from s instead of holding nothing.
func WithInitialState(s locktx.State) BeginOption {
	return func(t *Txn) {
		t.Transaction = locktx.NewWithState(s)
	}
}

// WithID sets the transaction ID instead of generating one.
func WithID(id uuid.UUID) BeginOption {
	return func(t *Txn) {
		t.ID = id
	}
}

// Begin starts a transaction. It holds no locks unless WithInitialState is
// given.
func (e *Engine) Begin(opts ...BeginOption) Txn {
	t := Txn{ID: uuid.New(), Transaction: locktx.New()}
	for _, opt := range opts {
		opt(&t)
	}
	e.logger.Debug("txlock: begin", "txn", t.ID, "state", t.State().String())
	return t
}

// Lock acquires kind on topic for tx. On failure tx is returned unchanged
// together with the error; a *locktx.ConflictError is also counted, logged
// and published as a conflict event.
func (e *Engine) Lock(ctx context.Context, tx Txn, topic locktx.Topic, kind locktx.Kind) (Txn, error) {
	ctx, span := e.startSpan(ctx, "Engine.Lock", tx,
		attribute.String("txlock.topic", topic.String()),
		attribute.String("txlock.kind", kind.String()))
	defer span.End()

	next, err := tx.Lock(topic, kind)
	if err != nil {
		failSpan(span, err)
		var cerr *locktx.ConflictError
		if errors.As(err, &cerr) {
			if e.metrics {
				metrics.ConflictCounter.WithLabelValues(topic.String()).Inc()
			}
			e.logger.InfoContext(ctx, "txlock: lock conflict", "txn", tx.ID, "topic", topic, "kind", kind)
			e.publish(ctx, newEvent(e.now(), tx, EventConflict, topic, kind))
		}
		return tx, err
	}
	if e.metrics {
		metrics.AcquireCounter.WithLabelValues(topic.String(), kind.String()).Inc()
	}
	e.logger.DebugContext(ctx, "txlock: lock acquired", "txn", tx.ID, "topic", topic, "kind", kind)
	e.publish(ctx, newEvent(e.now(), tx, EventAcquired, topic, kind))
	return next, nil
}

// WithLock runs body with tx elevated to kind on topic. body is not called
// if the elevation is rejected. tx is never modified; the elevation ends when
// body returns.
func (e *Engine) WithLock(ctx context.Context, tx Txn, topic locktx.Topic, kind locktx.Kind, body func(context.Context, Txn) error) error {
	ctx, span := e.startSpan(ctx, "Engine.WithLock", tx,
		attribute.String("txlock.topic", topic.String()),
		attribute.String("txlock.kind", kind.String()))
	defer span.End()

	elevated, err := e.Lock(ctx, tx, topic, kind)
	if err != nil {
		failSpan(span, err)
		return err
	}
	if e.metrics {
		metrics.ElevationGauge.Inc()
		defer metrics.ElevationGauge.Dec()
	}
	if err := body(ctx, elevated); err != nil {
		failSpan(span, err)
		return err
	}
	return nil
}

// require runs the capability gate and reports denials.
func (e *Engine) require(ctx context.Context, tx Txn, c locktx.Capability) error {
	err := tx.Require(c)
	if err == nil {
		return nil
	}
	if e.metrics {
		metrics.DeniedCounter.WithLabelValues(c.String()).Inc()
	}
	held := tx.KindOf(c.Topic())
	e.logger.InfoContext(ctx, "txlock: operation denied", "txn", tx.ID, "capability", c.String(), "held", held)
	ev := newEvent(e.now(), tx, EventDenied, c.Topic(), held)
	ev.Capability = c.String()
	e.publish(ctx, ev)
	return err
}
