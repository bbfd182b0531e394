// Package metadata models the descriptors a capability package publishes:
// per-function parameter and response data types plus a components registry
// of shared, referenceable data types.
package metadata

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindBoolean   Kind = "bool"
	KindInt       Kind = "int"
	KindLong      Kind = "long"
	KindFloat     Kind = "float"
	KindDouble    Kind = "double"
	KindString    Kind = "string"
	KindUnit      Kind = "unit"
	KindArray     Kind = "array"
	KindObject    Kind = "object"
	KindReference Kind = "reference"
)

var ErrUnresolvedReference = errors.New("unresolved reference")

// DataTypeMetadata is a tagged union over Kind. Only the fields belonging to
// Kind are meaningful: ItemType for arrays, Properties and Required for
// objects, ReferenceID for references, EnumValues for int and string.
type DataTypeMetadata struct {
	Kind        Kind                         `json:"kind"`
	Description string                       `json:"description,omitempty"`
	Nullable    bool                         `json:"nullable,omitempty"`
	EnumValues  []any                        `json:"enumValues,omitempty"`
	ItemType    *DataTypeMetadata            `json:"itemType,omitempty"`
	Properties  map[string]*DataTypeMetadata `json:"properties,omitempty"`
	Required    []string                     `json:"required,omitempty"`
	ReferenceID string                       `json:"referenceDataType,omitempty"`
}

func (t *DataTypeMetadata) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind == KindReference {
		return fmt.Sprintf("reference(%s)", t.ReferenceID)
	}
	return string(t.Kind)
}

func Primitive(kind Kind, description string) *DataTypeMetadata {
	return &DataTypeMetadata{Kind: kind, Description: description}
}

func ArrayOf(item *DataTypeMetadata, description string) *DataTypeMetadata {
	return &DataTypeMetadata{Kind: KindArray, ItemType: item, Description: description}
}

func ObjectOf(properties map[string]*DataTypeMetadata, required ...string) *DataTypeMetadata {
	return &DataTypeMetadata{Kind: KindObject, Properties: properties, Required: required}
}

func Ref(id string) *DataTypeMetadata {
	return &DataTypeMetadata{Kind: KindReference, ReferenceID: id}
}

// ComponentsMetadata is the registry of shared data types, keyed by
// reference id. One registry is shared by every function of a package.
type ComponentsMetadata struct {
	DataTypes map[string]*DataTypeMetadata `json:"dataTypes,omitempty"`
}

func (c ComponentsMetadata) Resolve(id string) (*DataTypeMetadata, error) {
	t, ok := c.DataTypes[id]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %q not found in components", ErrUnresolvedReference, id)
	}
	return t, nil
}

// Deref follows reference chains until it reaches a non-reference type.
func (c ComponentsMetadata) Deref(t *DataTypeMetadata) (*DataTypeMetadata, error) {
	if t == nil {
		return nil, errors.New("nil data type")
	}
	seen := map[string]struct{}{}
	for t.Kind == KindReference {
		if _, ok := seen[t.ReferenceID]; ok {
			return nil, fmt.Errorf("reference cycle through %q", t.ReferenceID)
		}
		seen[t.ReferenceID] = struct{}{}
		next, err := c.Resolve(t.ReferenceID)
		if err != nil {
			return nil, err
		}
		t = next
	}
	return t, nil
}

type ParameterMetadata struct {
	Name        string            `json:"name"`
	DataType    *DataTypeMetadata `json:"dataType"`
	Required    bool              `json:"isRequired"`
	Description string            `json:"description,omitempty"`
}

type ResponseMetadata struct {
	ValueType *DataTypeMetadata `json:"valueType"`
}

type FunctionMetadata struct {
	ID               string              `json:"id"`
	Description      string              `json:"description,omitempty"`
	EnabledByDefault bool                `json:"isEnabledByDefault"`
	Parameters       []ParameterMetadata `json:"parameters,omitempty"`
	Response         ResponseMetadata    `json:"response"`
	Components       ComponentsMetadata  `json:"components"`
}

// Parameter finds a parameter by name.
func (f FunctionMetadata) Parameter(name string) (ParameterMetadata, bool) {
	for _, p := range f.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterMetadata{}, false
}

type PackageMetadata struct {
	PackageName string             `json:"packageName"`
	Functions   []FunctionMetadata `json:"appFunctions"`
	Components  ComponentsMetadata `json:"components"`
}
