package locktx

import (
	"fmt"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

// Transaction carries the lock state of one unit of work. It is a value:
// Lock never modifies the receiver, it returns the transaction to continue
// with.
type Transaction struct {
	state State
}

// New returns a transaction holding no locks.
func New() Transaction {
	return Transaction{}
}

// NewWithState returns a transaction starting from an externally supplied
// lock state, such as one handed over by the owning storage engine.
func NewWithState(s State) Transaction {
	return Transaction{state: s}
}

// State returns a copy of the lock state record.
func (t Transaction) State() State {
	return t.state
}

// KindOf returns the kind held on topic.
func (t Transaction) KindOf(topic Topic) Kind {
	return t.state.Kind(topic)
}

// Lock requests kind on topic according to the topic's policy. On success it
// returns a transaction whose state differs from t only on topic. On failure
// it returns t unchanged with the error, so the caller can retry with another
// kind or topic.
func (t Transaction) Lock(topic Topic, kind Kind) (Transaction, error) {
	if !topic.Valid() {
		return t, fmt.Errorf("%w: %v", warperrors.ErrUnknownTopic, topic)
	}
	if !kind.Valid() {
		return t, fmt.Errorf("%w: %v", warperrors.ErrUnknownKind, kind)
	}
	next, ok := PolicyOf(topic).transition(t.state.Kind(topic), kind)
	if !ok {
		return t, &ConflictError{Topic: topic, Kind: kind}
	}
	return Transaction{state: t.state.With(topic, next)}, nil
}

// WithLock runs body with a copy of t elevated to kind on topic. If the
// elevation is rejected, body is not called and the error is returned.
// Otherwise the result of body is returned. The elevated copy is dropped when
// body returns or panics; t itself is never affected.
func (t Transaction) WithLock(topic Topic, kind Kind, body func(Transaction) error) error {
	elevated, err := t.Lock(topic, kind)
	if err != nil {
		return err
	}
	return body(elevated)
}
