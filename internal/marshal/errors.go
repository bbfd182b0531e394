package marshal

import (
	"errors"
	"fmt"

	"github.com/grixate/fnbridge/internal/schema"
)

var (
	// ErrTypeMismatch marks a value or descriptor whose kind disagrees with
	// the declared schema type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// MissingArgumentError reports a required, non-nullable argument that was
// absent or JSON null.
type MissingArgumentError struct {
	Name string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Name)
}

// ArgumentError wraps any failure while writing one argument with the
// argument's name and declared type.
type ArgumentError struct {
	Name string
	Type schema.DataType
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("failed to parse argument '%s' for type %s: %v", e.Name, e.Type, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func argumentError(name string, t schema.DataType, err error) error {
	if err == nil {
		return nil
	}
	return &ArgumentError{Name: name, Type: t, Err: err}
}
