package errors

import "errors"

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConflict matches every acquisition rejected by a topic policy.
	ErrConflict = errors.New("txlock: lock conflict")
	// ErrNotPermitted matches every operation denied by the capability gate.
	ErrNotPermitted = errors.New("txlock: operation not permitted")
	ErrUnknownTopic = errors.New("txlock: unknown topic")
	ErrUnknownKind  = errors.New("txlock: unknown lock kind")
	ErrNotFound     = errors.New("txlock: not found")
)
