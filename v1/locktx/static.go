package locktx

// Marker types carry a lock kind in the type of a Static transaction.
type (
	NoLock        struct{}
	SharedLock    struct{}
	ExclusiveLock struct{}
)

// Marker is satisfied by every kind marker.
type Marker interface {
	NoLock | SharedLock | ExclusiveLock
}

// Held is satisfied by the markers that count as holding a lock.
type Held interface {
	SharedLock | ExclusiveLock
}

// Static is a transaction whose chunk kind C and index kind I are part of its
// type. Chunk operations take a Static constrained on C, so calling them
// without a sufficient lock is a compile error instead of a runtime denial.
type Static[C, I Marker] struct{}

// NewStatic returns a static transaction holding no locks.
func NewStatic() Static[NoLock, NoLock] {
	return Static[NoLock, NoLock]{}
}

func kindOf[M Marker]() Kind {
	var m M
	switch any(m).(type) {
	case SharedLock:
		return KindShared
	case ExclusiveLock:
		return KindExclusive
	default:
		return KindNone
	}
}

// Dynamic returns the runtime view of s.
func (s Static[C, I]) Dynamic() Transaction {
	return NewWithState(NewState().
		With(TopicChunks, kindOf[C]()).
		With(TopicIndex, kindOf[I]()))
}

// StaticFrom returns t as a Static with the given markers. It reports false
// when the kinds held by t do not match C and I.
func StaticFrom[C, I Marker](t Transaction) (Static[C, I], bool) {
	ok := t.KindOf(TopicChunks) == kindOf[C]() && t.KindOf(TopicIndex) == kindOf[I]()
	return Static[C, I]{}, ok
}

// LockChunks acquires K on the chunks topic. The chunks policy overwrites, so
// it cannot fail.
func LockChunks[K, C, I Marker](s Static[C, I]) Static[K, I] {
	return Static[K, I]{}
}

// LockIndex acquires K on the index topic. It fails with a *ConflictError
// when I and K are the same kind; in that case the returned value has the
// type and state of s.
func LockIndex[K, C, I Marker](s Static[C, I]) (Static[C, K], error) {
	if kindOf[K]() == kindOf[I]() {
		return Static[C, K]{}, &ConflictError{Topic: TopicIndex, Kind: kindOf[K]()}
	}
	return Static[C, K]{}, nil
}

// WithChunks runs body with s elevated to K on the chunks topic.
func WithChunks[K, C, I Marker](s Static[C, I], body func(Static[K, I]) error) error {
	return body(LockChunks[K](s))
}

// WithIndex runs body with s elevated to K on the index topic. body is not
// called if the elevation conflicts.
func WithIndex[K, C, I Marker](s Static[C, I], body func(Static[C, K]) error) error {
	elevated, err := LockIndex[K](s)
	if err != nil {
		return err
	}
	return body(elevated)
}

// ReadChunk runs read, which only compiles for transactions holding a chunk
// lock.
func ReadChunk[C Held, I Marker](s Static[C, I], read func() error) error {
	return read()
}

// WriteChunk runs write, which only compiles for transactions holding a chunk
// lock.
func WriteChunk[C Held, I Marker](s Static[C, I], write func() error) error {
	return write()
}

// DeleteChunk runs del, which only compiles for transactions holding an
// exclusive chunk lock.
func DeleteChunk[I Marker](s Static[ExclusiveLock, I], del func() error) error {
	return del()
}
