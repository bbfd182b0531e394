package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataType is the closed set of value shapes a Schema can describe.
type DataType int

const (
	Unspecified DataType = iota
	Boolean
	Object
	Double
	Float
	Long
	Int
	String
	Array
	Unit
)

var dataTypeNames = [...]string{
	Unspecified: "UNSPECIFIED",
	Boolean:     "BOOLEAN",
	Object:      "OBJECT",
	Double:      "DOUBLE",
	Float:       "FLOAT",
	Long:        "LONG",
	Int:         "INT",
	String:      "STRING",
	Array:       "ARRAY",
	Unit:        "UNIT",
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

func ParseDataType(value string) (DataType, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return Unspecified, nil
	}
	for i, name := range dataTypeNames {
		if name == value {
			return DataType(i), nil
		}
	}
	return Unspecified, fmt.Errorf("unknown data type %q", value)
}

func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DataType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseDataType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schema describes the shape of one value. Items is only meaningful for
// Array, Properties and Required only for Object; consumers treat them as
// empty otherwise.
type Schema struct {
	Type        DataType           `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// IsRequired reports whether name is listed in Required of an Object schema.
func (s *Schema) IsRequired(name string) bool {
	if s == nil || s.Type != Object {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Property returns the schema of a declared property of an Object schema.
func (s *Schema) Property(name string) (*Schema, bool) {
	if s == nil || s.Type != Object {
		return nil, false
	}
	p, ok := s.Properties[name]
	return p, ok && p != nil
}

// ItemSchema returns the element schema of an Array schema.
func (s *Schema) ItemSchema() *Schema {
	if s == nil || s.Type != Array {
		return nil
	}
	return s.Items
}

// WithDescription returns a shallow copy of s carrying description.
func (s Schema) WithDescription(description string) *Schema {
	s.Description = description
	return &s
}

// FunctionDeclaration is the externally visible identity and i/o shape of
// one invocable capability. Parameters, when present, is always an Object
// schema wrapping every parameter.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	ShortName   string  `json:"shortName"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
	Response    *Schema `json:"response,omitempty"`
}

// NamespaceSeparator splits a function name into package and short name.
const NamespaceSeparator = "#"

// ShortNameOf keeps the segment after the last namespace separator.
func ShortNameOf(name string) string {
	if i := strings.LastIndex(name, NamespaceSeparator); i >= 0 {
		return name[i+len(NamespaceSeparator):]
	}
	return name
}
