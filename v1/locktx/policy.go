package locktx

// Policy decides how a topic reacts to a new acquisition.
type Policy uint8

const (
	// PolicyOverwrite always replaces the held kind with the requested one.
	PolicyOverwrite Policy = iota
	// PolicyNoRedundant rejects a request for the kind already held.
	// Upgrades and downgrades are accepted. It only guards against the same
	// transaction re-acquiring what it holds; it does not arbitrate between
	// transactions.
	PolicyNoRedundant
)

func (p Policy) String() string {
	switch p {
	case PolicyOverwrite:
		return "overwrite"
	case PolicyNoRedundant:
		return "no-redundant"
	default:
		return "unknown"
	}
}

var policies = [numTopics]Policy{
	TopicChunks: PolicyOverwrite,
	TopicIndex:  PolicyNoRedundant,
}

// PolicyOf returns the acquisition policy of topic.
func PolicyOf(topic Topic) Policy {
	if !topic.Valid() {
		return PolicyOverwrite
	}
	return policies[topic]
}

// transition applies p to the kind currently held. It returns the kind to
// store and whether the request is accepted.
func (p Policy) transition(held, requested Kind) (Kind, bool) {
	switch p {
	case PolicyNoRedundant:
		if held == requested {
			return held, false
		}
		return requested, true
	default:
		return requested, true
	}
}
