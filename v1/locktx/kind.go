package locktx

import (
	"fmt"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

// Kind is the strength of a lock held on a topic. Kinds are ordered from
// weakest to strongest; there is nothing stronger than KindExclusive.
type Kind uint8

const (
	// KindNone means no lock is held.
	KindNone Kind = iota
	// KindShared grants reads and writes of chunk content.
	KindShared
	// KindExclusive grants everything KindShared does plus deletion.
	KindExclusive

	numKinds
)

var kindNames = [numKinds]string{
	KindNone:      "none",
	KindShared:    "shared",
	KindExclusive: "exclusive",
}

// Kinds returns every kind from weakest to strongest.
func Kinds() []Kind {
	return []Kind{KindNone, KindShared, KindExclusive}
}

// Valid reports whether k belongs to the kind lattice.
func (k Kind) Valid() bool {
	return k < numKinds
}

// IsLocked reports whether k is Shared or Exclusive.
func (k Kind) IsLocked() bool {
	return k == KindShared || k == KindExclusive
}

// IsExclusive reports whether k is Exclusive.
func (k Kind) IsExclusive() bool {
	return k == KindExclusive
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", warperrors.ErrUnknownKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", warperrors.ErrUnknownKind, s)
}
