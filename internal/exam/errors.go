package exam

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDefinition = errors.New("invalid test definition")
	ErrTestNotFound      = errors.New("test not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// InvalidDefinitionError reports the first structural problem found in a
// definition. It matches ErrInvalidDefinition with errors.Is.
type InvalidDefinitionError struct {
	TestID string
	Field  string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid test definition %q: %s", e.TestID, e.Reason)
	}
	return fmt.Sprintf("invalid test definition %q: %s %s", e.TestID, e.Field, e.Reason)
}

func (e *InvalidDefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// Unavailable wraps a transport or backend failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
