package schema

import (
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToJSONSchema converts s into a JSON-Schema document with the same type
// mapping as ExportSchema.
func ToJSONSchema(s *Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}
	out := &jsonschema.Schema{}
	if tag, ok := JSONType(s.Type); ok {
		out.Type = tag
	}
	if strings.TrimSpace(s.Description) != "" {
		out.Description = s.Description
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]any(nil), s.Enum...)
	}
	switch s.Type {
	case Object:
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
			for name, prop := range s.Properties {
				out.Properties[name] = ToJSONSchema(prop)
			}
		}
		if len(s.Required) > 0 {
			out.Required = append([]string(nil), s.Required...)
		}
	case Array:
		out.Items = ToJSONSchema(s.Items)
	}
	return out
}
