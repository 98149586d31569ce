package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mirkobrombin/go-txlock/v1/locktx"
)

// EventType classifies a lock event.
type EventType string

const (
	EventAcquired EventType = "acquired"
	EventConflict EventType = "conflict"
	EventDenied   EventType = "denied"
)

// Event is the JSON payload published for every acquisition, conflict and
// denied operation. For denials Kind is the kind that was held.
type Event struct {
	ID         uuid.UUID    `json:"id"`
	Txn        uuid.UUID    `json:"txn"`
	Type       EventType    `json:"type"`
	Topic      locktx.Topic `json:"topic"`
	Kind       locktx.Kind  `json:"kind"`
	Capability string       `json:"capability,omitempty"`
	Time       time.Time    `json:"time"`
}

func newEvent(now time.Time, tx Txn, typ EventType, topic locktx.Topic, kind locktx.Kind) Event {
	return Event{
		ID:    uuid.New(),
		Txn:   tx.ID,
		Type:  typ,
		Topic: topic,
		Kind:  kind,
		Time:  now.UTC(),
	}
}

// publish is best-effort: failures are logged and never reach the caller.
func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.WarnContext(ctx, "txlock: encode event failed", "type", ev.Type, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, e.subject, data); err != nil {
		e.logger.WarnContext(ctx, "txlock: publish event failed", "type", ev.Type, "error", err)
	}
}

// DecodeEvent parses a payload received from the event subject.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
