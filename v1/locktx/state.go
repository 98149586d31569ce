package locktx

import (
	"fmt"
	"strings"
)

// State is the lock state record of a transaction: the kind held on every
// topic. A State is a plain value; copies never alias each other, and the
// zero value holds KindNone on every topic.
type State struct {
	kinds [numTopics]Kind
}

// NewState returns a State holding KindNone on every topic.
func NewState() State {
	return State{}
}

// Kind returns the kind held on topic. Topics outside the registry hold
// nothing.
func (s State) Kind(topic Topic) Kind {
	if !topic.Valid() {
		return KindNone
	}
	return s.kinds[topic]
}

// With returns a copy of s with topic set to kind. Every other topic is
// preserved. It panics if topic or kind is outside its closed set.
func (s State) With(topic Topic, kind Kind) State {
	if !topic.Valid() {
		panic(fmt.Sprintf("locktx: With on %v", topic))
	}
	if !kind.Valid() {
		panic(fmt.Sprintf("locktx: With %v", kind))
	}
	s.kinds[topic] = kind
	return s
}

// Equal reports whether s and o hold the same kind on every topic.
func (s State) Equal(o State) bool {
	return s.kinds == o.kinds
}

func (s State) String() string {
	var b strings.Builder
	for t := Topic(0); t < numTopics; t++ {
		if t > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.String())
		b.WriteByte('=')
		b.WriteString(s.kinds[t].String())
	}
	return b.String()
}
