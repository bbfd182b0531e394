package catalog

import (
	"fmt"
	"slices"

	"github.com/grixate/fnbridge/internal/metadata"
	"github.com/grixate/fnbridge/internal/schema"
)

// ToSchema converts a descriptor into a Schema. References are resolved
// through components and never appear in the result.
func ToSchema(t *metadata.DataTypeMetadata, components metadata.ComponentsMetadata) (*schema.Schema, error) {
	return toSchema(t, components, nil)
}

func toSchema(t *metadata.DataTypeMetadata, components metadata.ComponentsMetadata, refs []string) (*schema.Schema, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing data type", schema.ErrUnsupportedType)
	}
	switch t.Kind {
	case metadata.KindInt:
		return primitive(schema.Int, t, true), nil
	case metadata.KindLong:
		return primitive(schema.Long, t, false), nil
	case metadata.KindFloat:
		return primitive(schema.Float, t, false), nil
	case metadata.KindDouble:
		return primitive(schema.Double, t, false), nil
	case metadata.KindBoolean:
		return primitive(schema.Boolean, t, false), nil
	case metadata.KindString:
		return primitive(schema.String, t, true), nil
	case metadata.KindUnit:
		return primitive(schema.Unit, t, false), nil
	case metadata.KindArray:
		items, err := toSchema(t.ItemType, components, refs)
		if err != nil {
			return nil, fmt.Errorf("array items: %w", err)
		}
		return &schema.Schema{
			Type:        schema.Array,
			Description: t.Description,
			Nullable:    t.Nullable,
			Items:       items,
		}, nil
	case metadata.KindObject:
		props := make(map[string]*schema.Schema, len(t.Properties))
		for name, prop := range t.Properties {
			ps, err := toSchema(prop, components, refs)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			props[name] = ps
		}
		return &schema.Schema{
			Type:        schema.Object,
			Description: t.Description,
			Nullable:    t.Nullable,
			Properties:  props,
			Required:    slices.Clone(t.Required),
		}, nil
	case metadata.KindReference:
		if slices.Contains(refs, t.ReferenceID) {
			return nil, fmt.Errorf("%w: recursive reference %q", schema.ErrUnsupportedType, t.ReferenceID)
		}
		resolved, err := components.Resolve(t.ReferenceID)
		if err != nil {
			return nil, err
		}
		return toSchema(resolved, components, append(slices.Clone(refs), t.ReferenceID))
	default:
		return nil, fmt.Errorf("%w: unexpected data type %q", schema.ErrUnsupportedType, t.Kind)
	}
}

func primitive(dt schema.DataType, t *metadata.DataTypeMetadata, withEnum bool) *schema.Schema {
	s := &schema.Schema{Type: dt, Description: t.Description, Nullable: t.Nullable}
	if withEnum && len(t.EnumValues) > 0 {
		s.Enum = slices.Clone(t.EnumValues)
	}
	return s
}

// ToFunctionDeclaration derives the declaration of one function. Parameters
// are wrapped into a single object whose property descriptions come from
// the parameters rather than their types.
func ToFunctionDeclaration(fn metadata.FunctionMetadata) (schema.FunctionDeclaration, error) {
	params, err := ParametersSchema(fn)
	if err != nil {
		return schema.FunctionDeclaration{}, fmt.Errorf("function %s: %w", fn.ID, err)
	}
	var response *schema.Schema
	if fn.Response.ValueType != nil {
		response, err = ToSchema(fn.Response.ValueType, fn.Components)
		if err != nil {
			return schema.FunctionDeclaration{}, fmt.Errorf("function %s response: %w", fn.ID, err)
		}
	}
	return schema.FunctionDeclaration{
		Name:        fn.ID,
		ShortName:   schema.ShortNameOf(fn.ID),
		Description: fn.Description,
		Parameters:  params,
		Response:    response,
	}, nil
}

// ParametersSchema wraps the parameter list into one object schema, or
// returns nil when the function takes no parameters.
func ParametersSchema(fn metadata.FunctionMetadata) (*schema.Schema, error) {
	if len(fn.Parameters) == 0 {
		return nil, nil
	}
	props := make(map[string]*schema.Schema, len(fn.Parameters))
	var required []string
	for _, p := range fn.Parameters {
		base, err := ToSchema(p.DataType, fn.Components)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		props[p.Name] = base.WithDescription(p.Description)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &schema.Schema{Type: schema.Object, Properties: props, Required: required}, nil
}
