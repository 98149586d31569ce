package locktx

import (
	"fmt"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
)

// ConflictError is returned when a topic policy rejects an acquisition.
type ConflictError struct {
	Topic Topic
	Kind  Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("already holding requested kind for %s", e.Topic)
}

// Is makes errors.Is(err, errors.ErrConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == warperrors.ErrConflict
}

// PermissionError is returned when the capability gate denies an operation.
type PermissionError struct {
	Capability Capability
	Topic      Topic
	Held       Kind
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s not permitted: holding %s on %s", e.Capability, e.Held, e.Topic)
}

// Is makes errors.Is(err, errors.ErrNotPermitted) hold.
func (e *PermissionError) Is(target error) bool {
	return target == warperrors.ErrNotPermitted
}
