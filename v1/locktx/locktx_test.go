package locktx

import (
	"errors"
	"testing"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

// allStates enumerates every lock state record.
func allStates() []State {
	var out []State
	for _, c := range Kinds() {
		for _, i := range Kinds() {
			out = append(out, NewState().With(TopicChunks, c).With(TopicIndex, i))
		}
	}
	return out
}

func sharedBoth() Transaction {
	return NewWithState(NewState().With(TopicChunks, KindShared).With(TopicIndex, KindShared))
}

func TestNewHoldsNothing(t *testing.T) {
	txn := New()
	for _, topic := range Topics() {
		if k := txn.KindOf(topic); k != KindNone {
			t.Fatalf("topic %v: expected none, got %v", topic, k)
		}
	}
}

func TestStateWithPreservesOtherTopics(t *testing.T) {
	for _, s := range allStates() {
		for _, topic := range Topics() {
			for _, k := range Kinds() {
				next := s.With(topic, k)
				if next.Kind(topic) != k {
					t.Fatalf("%v.With(%v, %v): got %v", s, topic, k, next.Kind(topic))
				}
				for _, other := range Topics() {
					if other != topic && next.Kind(other) != s.Kind(other) {
						t.Fatalf("%v.With(%v, %v) changed %v", s, topic, k, other)
					}
				}
			}
		}
	}
}

func TestCapabilitySoundness(t *testing.T) {
	for _, s := range allStates() {
		txn := NewWithState(s)
		held := s.Kind(TopicChunks)
		locked := held == KindShared || held == KindExclusive
		exclusive := held == KindExclusive

		if CanRead(s) != locked || (txn.Read() == nil) != locked {
			t.Fatalf("%v: read gate mismatch", s)
		}
		if CanWrite(s) != locked || (txn.Write() == nil) != locked {
			t.Fatalf("%v: write gate mismatch", s)
		}
		if CanDelete(s) != exclusive || (txn.Delete() == nil) != exclusive {
			t.Fatalf("%v: delete gate mismatch", s)
		}

		idx := s.Kind(TopicIndex)
		if CanReadIndex(s) != idx.IsLocked() || CanUpdateIndex(s) != idx.IsExclusive() {
			t.Fatalf("%v: index gate mismatch", s)
		}
	}
}

func TestDeniedProbeReturnsPermissionError(t *testing.T) {
	txn := NewWithState(NewState().With(TopicChunks, KindShared))
	err := txn.Delete()
	if !errors.Is(err, warperrors.ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PermissionError, got %T", err)
	}
	if perr.Capability != CapDeleteChunk || perr.Topic != TopicChunks || perr.Held != KindShared {
		t.Fatalf("unexpected error fields: %+v", perr)
	}
}

func TestOverwritePolicyAlwaysSucceeds(t *testing.T) {
	for _, s := range allStates() {
		for _, k := range Kinds() {
			got, err := NewWithState(s).Lock(TopicChunks, k)
			if err != nil {
				t.Fatalf("%v lock chunks %v: %v", s, k, err)
			}
			if got.KindOf(TopicChunks) != k {
				t.Fatalf("%v lock chunks %v: holding %v", s, k, got.KindOf(TopicChunks))
			}
			if got.KindOf(TopicIndex) != s.Kind(TopicIndex) {
				t.Fatalf("%v lock chunks %v changed index", s, k)
			}
		}
	}
}

func TestOverwriteIsIdempotent(t *testing.T) {
	for _, s := range allStates() {
		for _, k := range Kinds() {
			once, err := NewWithState(s).Lock(TopicChunks, k)
			if err != nil {
				t.Fatalf("lock: %v", err)
			}
			twice, err := once.Lock(TopicChunks, k)
			if err != nil {
				t.Fatalf("relock: %v", err)
			}
			if !once.State().Equal(twice.State()) {
				t.Fatalf("%v: %v != %v", s, once.State(), twice.State())
			}
		}
	}
}

func TestConflictDetection(t *testing.T) {
	for _, s := range allStates() {
		for _, k := range Kinds() {
			txn := NewWithState(s)
			got, err := txn.Lock(TopicIndex, k)
			wantConflict := s.Kind(TopicIndex) == k
			if wantConflict {
				if !errors.Is(err, warperrors.ErrConflict) {
					t.Fatalf("%v lock index %v: expected conflict, got %v", s, k, err)
				}
				if !got.State().Equal(s) {
					t.Fatalf("%v: conflict changed state to %v", s, got.State())
				}
				continue
			}
			if err != nil {
				t.Fatalf("%v lock index %v: %v", s, k, err)
			}
			if got.KindOf(TopicIndex) != k || got.KindOf(TopicChunks) != s.Kind(TopicChunks) {
				t.Fatalf("%v lock index %v: got %v", s, k, got.State())
			}
		}
	}
}

func TestConflictMessage(t *testing.T) {
	_, err := sharedBoth().Lock(TopicIndex, KindShared)
	if err == nil || err.Error() != "already holding requested kind for index" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLockRejectsUnknownValues(t *testing.T) {
	txn := sharedBoth()
	got, err := txn.Lock(Topic(42), KindExclusive)
	if !errors.Is(err, warperrors.ErrUnknownTopic) || !got.State().Equal(txn.State()) {
		t.Fatalf("unknown topic: %v %v", err, got.State())
	}
	got, err = txn.Lock(TopicChunks, Kind(9))
	if !errors.Is(err, warperrors.ErrUnknownKind) || !got.State().Equal(txn.State()) {
		t.Fatalf("unknown kind: %v %v", err, got.State())
	}
}

func TestWithLockIsolation(t *testing.T) {
	bodyErr := errors.New("body")
	for _, s := range allStates() {
		for _, topic := range Topics() {
			for _, k := range Kinds() {
				txn := NewWithState(s)
				called := false
				err := txn.WithLock(topic, k, func(e Transaction) error {
					called = true
					if e.KindOf(topic) != k {
						t.Fatalf("elevated %v holds %v, want %v", topic, e.KindOf(topic), k)
					}
					return bodyErr
				})
				conflict := PolicyOf(topic) == PolicyNoRedundant && s.Kind(topic) == k
				if conflict {
					if called || !errors.Is(err, warperrors.ErrConflict) {
						t.Fatalf("%v %v %v: called=%v err=%v", s, topic, k, called, err)
					}
				} else if !called || !errors.Is(err, bodyErr) {
					t.Fatalf("%v %v %v: called=%v err=%v", s, topic, k, called, err)
				}
				if !txn.State().Equal(s) {
					t.Fatalf("%v leaked into %v", s, txn.State())
				}
			}
		}
	}
}

func TestWithLockRestoresAfterPanic(t *testing.T) {
	txn := sharedBoth()
	func() {
		defer func() { _ = recover() }()
		_ = txn.WithLock(TopicChunks, KindExclusive, func(Transaction) error {
			panic("boom")
		})
	}()
	if txn.KindOf(TopicChunks) != KindShared {
		t.Fatalf("panic leaked elevation: %v", txn.State())
	}
}

func TestExclusiveChunksEnableDelete(t *testing.T) {
	txn := sharedBoth()
	if CanDelete(txn.State()) {
		t.Fatal("delete permitted before elevation")
	}
	txn, err := txn.Lock(TopicChunks, KindExclusive)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := txn.Delete(); err != nil {
		t.Fatalf("delete after elevation: %v", err)
	}
}

func TestRedundantSharedIndexConflicts(t *testing.T) {
	txn := sharedBoth()
	got, err := txn.Lock(TopicIndex, KindShared)
	var cerr *ConflictError
	if !errors.As(err, &cerr) || cerr.Topic != TopicIndex || cerr.Kind != KindShared {
		t.Fatalf("expected conflict on index, got %v", err)
	}
	if !got.State().Equal(txn.State()) {
		t.Fatalf("state changed: %v", got.State())
	}
}

func TestIndexUpgradeSucceeds(t *testing.T) {
	got, err := sharedBoth().Lock(TopicIndex, KindExclusive)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got.KindOf(TopicIndex) != KindExclusive {
		t.Fatalf("index holds %v", got.KindOf(TopicIndex))
	}
}

func TestNestedElevationRestores(t *testing.T) {
	txn := sharedBoth()
	before := txn.State()
	inner := false
	err := txn.WithLock(TopicChunks, KindExclusive, func(c Transaction) error {
		return c.WithLock(TopicIndex, KindExclusive, func(ci Transaction) error {
			inner = true
			if err := ci.Delete(); err != nil {
				return err
			}
			if ci.KindOf(TopicChunks) != KindExclusive {
				t.Fatalf("outer elevation lost: %v", ci.State())
			}
			return ci.UpdateIndex()
		})
	})
	if err != nil || !inner {
		t.Fatalf("nested elevation: inner=%v err=%v", inner, err)
	}
	if !txn.State().Equal(before) {
		t.Fatalf("outer transaction changed: %v", txn.State())
	}
}

func TestTextForms(t *testing.T) {
	for _, topic := range Topics() {
		b, err := topic.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", topic, err)
		}
		var back Topic
		if err := back.UnmarshalText(b); err != nil || back != topic {
			t.Fatalf("topic %s: got %v err %v", b, back, err)
		}
	}
	for _, k := range Kinds() {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(b); err != nil || back != k {
			t.Fatalf("kind %s: got %v err %v", b, back, err)
		}
	}
	if _, err := ParseKind("upgrade"); !errors.Is(err, warperrors.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if got := sharedBoth().State().String(); got != "chunks=shared index=shared" {
		t.Fatalf("unexpected state string %q", got)
	}
}

func BenchmarkLock(b *testing.B) {
	txn := sharedBoth()
	kinds := Kinds()
	for i := 0; i < b.N; i++ {
		next, err := txn.Lock(TopicIndex, kinds[i%len(kinds)])
		if err == nil {
			txn = next
		}
	}
}
