package schema

import (
	"encoding/json"
	"strings"
)

// JSONType maps a DataType to its JSON-Schema type tag. Unspecified and Unit
// have no tag and are left out of rendered schemas.
func JSONType(t DataType) (string, bool) {
	switch t {
	case Object:
		return "object", true
	case String:
		return "string", true
	case Array:
		return "array", true
	case Boolean:
		return "boolean", true
	case Int, Long:
		return "integer", true
	case Float, Double:
		return "number", true
	default:
		return "", false
	}
}

// ExportDeclaration renders decl in the OpenAI function-calling layout:
// name, description and, when the function takes arguments, parameters.
func ExportDeclaration(decl FunctionDeclaration) map[string]any {
	out := map[string]any{
		"name":        decl.Name,
		"description": decl.Description,
	}
	if decl.Parameters != nil {
		out["parameters"] = ExportSchema(decl.Parameters)
	}
	return out
}

// MarshalDeclarationJSON is ExportDeclaration rendered as indented JSON.
func MarshalDeclarationJSON(decl FunctionDeclaration) ([]byte, error) {
	return json.MarshalIndent(ExportDeclaration(decl), "", "  ")
}

func ExportSchema(s *Schema) map[string]any {
	out := map[string]any{}
	if s == nil {
		return out
	}
	if tag, ok := JSONType(s.Type); ok {
		out["type"] = tag
	}
	if strings.TrimSpace(s.Description) != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	switch s.Type {
	case Object:
		if len(s.Properties) > 0 {
			props := make(map[string]any, len(s.Properties))
			for name, prop := range s.Properties {
				props[name] = ExportSchema(prop)
			}
			out["properties"] = props
		}
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	case Array:
		if s.Items != nil {
			out["items"] = ExportSchema(s.Items)
		}
	}
	return out
}
