package schema

import "errors"

var (
	// ErrUnsupportedType marks a descriptor kind or data type outside the
	// closed set this package understands.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrInvalidSchema marks a structurally broken schema, such as an array
	// without an items definition.
	ErrInvalidSchema = errors.New("invalid schema")
)
