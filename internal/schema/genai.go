package schema

import (
	"fmt"

	"google.golang.org/genai"
)

func genaiType(t DataType) genai.Type {
	switch t {
	case Object:
		return genai.TypeObject
	case String:
		return genai.TypeString
	case Array:
		return genai.TypeArray
	case Boolean:
		return genai.TypeBoolean
	case Int, Long:
		return genai.TypeInteger
	case Float, Double:
		return genai.TypeNumber
	default:
		return genai.TypeUnspecified
	}
}

// ToGenAI converts decl into a Gemini function declaration. Enum values are
// rendered as strings since Gemini only accepts string enums.
func ToGenAI(decl FunctionDeclaration) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        decl.Name,
		Description: decl.Description,
		Parameters:  ToGenAISchema(decl.Parameters),
	}
}

func ToGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
	}
	if s.Nullable {
		nullable := true
		out.Nullable = &nullable
	}
	for _, v := range s.Enum {
		out.Enum = append(out.Enum, fmt.Sprint(v))
	}
	switch s.Type {
	case Object:
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*genai.Schema, len(s.Properties))
			for name, prop := range s.Properties {
				out.Properties[name] = ToGenAISchema(prop)
			}
		}
		out.Required = append(out.Required, s.Required...)
	case Array:
		out.Items = ToGenAISchema(s.Items)
	}
	return out
}
