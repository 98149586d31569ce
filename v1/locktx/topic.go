package locktx

import (
	"fmt"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

// Topic identifies a lockable resource domain of a transaction.
type Topic uint8

const (
	// TopicChunks guards bulk chunk content.
	TopicChunks Topic = iota
	// TopicIndex guards the shared index structure.
	TopicIndex

	numTopics
)

var topicNames = [numTopics]string{
	TopicChunks: "chunks",
	TopicIndex:  "index",
}

// Topics returns every topic in declaration order.
func Topics() []Topic {
	out := make([]Topic, 0, numTopics)
	for t := Topic(0); t < numTopics; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t belongs to the topic registry.
func (t Topic) Valid() bool {
	return t < numTopics
}

func (t Topic) String() string {
	if !t.Valid() {
		return fmt.Sprintf("topic(%d)", uint8(t))
	}
	return topicNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t Topic) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", warperrors.ErrUnknownTopic, uint8(t))
	}
	return []byte(topicNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topic) UnmarshalText(b []byte) error {
	v, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTopic returns the topic with the given name.
func ParseTopic(s string) (Topic, error) {
	for i, name := range topicNames {
		if name == s {
			return Topic(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", warperrors.ErrUnknownTopic, s)
}
