package locktx

import "fmt"

// Capability is an operation gated on the lock state of a transaction.
type Capability uint8

const (
	CapReadChunk Capability = iota
	CapWriteChunk
	CapDeleteChunk
	CapReadIndex
	CapUpdateIndex

	numCapabilities
)

type gate struct {
	name      string
	topic     Topic
	exclusive bool
}

// Shared is enough for chunk writes; the model does not separate read-only
// from read-write shared access.
var gates = [numCapabilities]gate{
	CapReadChunk:   {name: "read chunk", topic: TopicChunks},
	CapWriteChunk:  {name: "write chunk", topic: TopicChunks},
	CapDeleteChunk: {name: "delete chunk", topic: TopicChunks, exclusive: true},
	CapReadIndex:   {name: "read index", topic: TopicIndex},
	CapUpdateIndex: {name: "update index", topic: TopicIndex, exclusive: true},
}

// Capabilities returns every gated capability.
func Capabilities() []Capability {
	out := make([]Capability, 0, numCapabilities)
	for c := Capability(0); c < numCapabilities; c++ {
		out = append(out, c)
	}
	return out
}

func (c Capability) String() string {
	if c >= numCapabilities {
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
	return gates[c].name
}

// Topic returns the topic whose kind decides c.
func (c Capability) Topic() Topic {
	if c >= numCapabilities {
		return numTopics
	}
	return gates[c].topic
}

// Allows reports whether s grants c.
func (s State) Allows(c Capability) bool {
	if c >= numCapabilities {
		return false
	}
	g := gates[c]
	k := s.Kind(g.topic)
	if g.exclusive {
		return k.IsExclusive()
	}
	return k.IsLocked()
}

// CanRead reports whether s may read chunks.
func CanRead(s State) bool { return s.Allows(CapReadChunk) }

// CanWrite reports whether s may write chunks.
func CanWrite(s State) bool { return s.Allows(CapWriteChunk) }

// CanDelete reports whether s may delete chunks.
func CanDelete(s State) bool { return s.Allows(CapDeleteChunk) }

// CanReadIndex reports whether s may look up the index.
func CanReadIndex(s State) bool { return s.Allows(CapReadIndex) }

// CanUpdateIndex reports whether s may modify the index.
func CanUpdateIndex(s State) bool { return s.Allows(CapUpdateIndex) }

// Require returns nil if t holds c and a *PermissionError otherwise.
func (t Transaction) Require(c Capability) error {
	if t.state.Allows(c) {
		return nil
	}
	topic := c.Topic()
	return &PermissionError{Capability: c, Topic: topic, Held: t.state.Kind(topic)}
}

// Read is the guarded probe for chunk reads.
func (t Transaction) Read() error { return t.Require(CapReadChunk) }

// Write is the guarded probe for chunk writes.
func (t Transaction) Write() error { return t.Require(CapWriteChunk) }

// Delete is the guarded probe for chunk deletion.
func (t Transaction) Delete() error { return t.Require(CapDeleteChunk) }

// ReadIndex is the guarded probe for index lookups.
func (t Transaction) ReadIndex() error { return t.Require(CapReadIndex) }

// UpdateIndex is the guarded probe for index updates.
func (t Transaction) UpdateIndex() error { return t.Require(CapUpdateIndex) }
