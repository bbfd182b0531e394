// Package marshal converts JSON argument trees into typed appdata containers
// and typed results back into JSON-compatible values, driven by a Schema.
package marshal

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/grixate/fnbridge/internal/appdata"
	"github.com/grixate/fnbridge/internal/metadata"
	"github.com/grixate/fnbridge/internal/schema"
	"github.com/grixate/fnbridge/internal/telemetry"
)

// Marshaller holds no per-call state and may be shared across goroutines.
type Marshaller struct {
	metrics *telemetry.Metrics
	log     *log.Logger
}

func New(metrics *telemetry.Metrics, logger *log.Logger) *Marshaller {
	if logger == nil {
		logger = log.Default()
	}
	return &Marshaller{metrics: metrics, log: logger}
}

// descriptors yields the type descriptor backing one property of the
// object currently being built.
type descriptors func(name string) *metadata.DataTypeMetadata

func parameterDescriptors(params []metadata.ParameterMetadata) descriptors {
	return func(name string) *metadata.DataTypeMetadata {
		for _, p := range params {
			if p.Name == name {
				return p.DataType
			}
		}
		return nil
	}
}

func propertyDescriptors(object *metadata.DataTypeMetadata) descriptors {
	return func(name string) *metadata.DataTypeMetadata {
		return object.Properties[name]
	}
}

// Build writes args into a new container. Iteration follows s.Properties
// only, so argument keys the schema does not declare are ignored. A nil
// schema describes a function without parameters and yields an empty
// container.
func (m *Marshaller) Build(s *schema.Schema, params []metadata.ParameterMetadata, components metadata.ComponentsMetadata, args map[string]json.RawMessage) (appdata.Data, error) {
	if s == nil {
		return appdata.Empty, nil
	}
	if err := Validate(s); err != nil {
		return appdata.Data{}, err
	}
	return buildObject(s, parameterDescriptors(params), components, args)
}

// Validate rejects schemas that can never be built, currently arrays
// without an item schema.
func Validate(s *schema.Schema) error {
	return validate(s, "")
}

func validate(s *schema.Schema, path string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case schema.Array:
		if s.Items == nil {
			return fmt.Errorf("%w: array %s has no item schema", schema.ErrInvalidSchema, displayPath(path))
		}
		return validate(s.Items, path+"[]")
	case schema.Object:
		for _, name := range sortedProperties(s) {
			if err := validate(s.Properties[name], joinPath(path, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildObject(s *schema.Schema, descs descriptors, components metadata.ComponentsMetadata, args map[string]json.RawMessage) (appdata.Data, error) {
	b := appdata.NewBuilder()
	for _, name := range sortedProperties(s) {
		ps := s.Properties[name]
		raw, present := args[name]
		if !present || isNull(raw) {
			if s.IsRequired(name) && !ps.Nullable {
				return appdata.Data{}, &MissingArgumentError{Name: name}
			}
			continue
		}
		if err := writeValue(b, name, ps, descs(name), components, raw); err != nil {
			return appdata.Data{}, argumentError(name, ps.Type, err)
		}
	}
	return b.Build(), nil
}

func writeValue(b *appdata.Builder, key string, ps *schema.Schema, desc *metadata.DataTypeMetadata, components metadata.ComponentsMetadata, raw json.RawMessage) error {
	if desc == nil {
		return fmt.Errorf("%w: no descriptor for %q", schema.ErrInvalidSchema, key)
	}
	resolved, err := components.Deref(desc)
	if err != nil {
		return err
	}
	switch ps.Type {
	case schema.String:
		v, err := toString(raw)
		if err != nil {
			return err
		}
		b.SetString(key, v)
	case schema.Int:
		v, err := toInt(raw)
		if err != nil {
			return err
		}
		b.SetInt(key, v)
	case schema.Long:
		v, err := toLong(raw)
		if err != nil {
			return err
		}
		b.SetLong(key, v)
	case schema.Boolean:
		v, err := toBool(raw)
		if err != nil {
			return err
		}
		b.SetBool(key, v)
	case schema.Float:
		v, err := toFloat(raw, 32)
		if err != nil {
			return err
		}
		b.SetFloat(key, float32(v))
	case schema.Double:
		v, err := toFloat(raw, 64)
		if err != nil {
			return err
		}
		b.SetDouble(key, v)
	case schema.Object:
		if resolved.Kind != metadata.KindObject {
			return fmt.Errorf("%w: descriptor is %s, want object", ErrTypeMismatch, resolved)
		}
		fields, err := toObject(raw)
		if err != nil {
			return err
		}
		nested, err := buildObject(ps, propertyDescriptors(resolved), components, fields)
		if err != nil {
			return err
		}
		b.SetData(key, nested)
	case schema.Array:
		return writeArray(b, key, ps, resolved, components, raw)
	default:
		return fmt.Errorf("%w: %s", schema.ErrUnsupportedType, ps.Type)
	}
	return nil
}

func writeArray(b *appdata.Builder, key string, ps *schema.Schema, resolved *metadata.DataTypeMetadata, components metadata.ComponentsMetadata, raw json.RawMessage) error {
	items := ps.ItemSchema()
	if items == nil {
		return fmt.Errorf("%w: array has no item schema", schema.ErrInvalidSchema)
	}
	if resolved.Kind != metadata.KindArray {
		return fmt.Errorf("%w: descriptor is %s, want array", ErrTypeMismatch, resolved)
	}
	elems, err := toArray(raw)
	if err != nil {
		return err
	}
	switch items.Type {
	case schema.String:
		out, err := convertEach(elems, toString)
		if err != nil {
			return err
		}
		b.SetStringList(key, out)
	case schema.Int:
		out, err := convertEach(elems, toInt)
		if err != nil {
			return err
		}
		b.SetIntArray(key, out)
	case schema.Long:
		out, err := convertEach(elems, toLong)
		if err != nil {
			return err
		}
		b.SetLongArray(key, out)
	case schema.Object:
		itemDesc, err := components.Deref(resolved.ItemType)
		if err != nil {
			return fmt.Errorf("array items: %w", err)
		}
		if itemDesc.Kind != metadata.KindObject {
			return fmt.Errorf("%w: item descriptor is %s, want object", ErrTypeMismatch, itemDesc)
		}
		out, err := convertEach(elems, func(elem json.RawMessage) (appdata.Data, error) {
			fields, err := toObject(elem)
			if err != nil {
				return appdata.Data{}, err
			}
			return buildObject(items, propertyDescriptors(itemDesc), components, fields)
		})
		if err != nil {
			return err
		}
		b.SetDataList(key, out)
	default:
		return fmt.Errorf("%w: array of %s", schema.ErrUnsupportedType, items.Type)
	}
	return nil
}

func convertEach[T any](elems []json.RawMessage, convert func(json.RawMessage) (T, error)) ([]T, error) {
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		v, err := convert(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Parse reads the return value of a result container as a JSON-compatible
// value. A nil or UNIT schema, or a container without a return value,
// parses to nil.
func (m *Marshaller) Parse(s *schema.Schema, result appdata.Data) (any, error) {
	if s == nil || s.Type == schema.Unit || !result.ContainsKey(appdata.ReturnValueKey) {
		return nil, nil
	}
	return m.readValue(result, appdata.ReturnValueKey, s, "")
}

func (m *Marshaller) readValue(d appdata.Data, key string, s *schema.Schema, path string) (any, error) {
	switch s.Type {
	case schema.String:
		return read(d, key, appdata.KindString, d.String)
	case schema.Int:
		return read(d, key, appdata.KindInt, d.Int)
	case schema.Long:
		return read(d, key, appdata.KindLong, d.Long)
	case schema.Boolean:
		return read(d, key, appdata.KindBool, d.Bool)
	case schema.Float:
		return read(d, key, appdata.KindFloat, d.Float)
	case schema.Double:
		return read(d, key, appdata.KindDouble, d.Double)
	case schema.Object:
		nested, err := read(d, key, appdata.KindData, d.Data)
		if err != nil {
			return nil, err
		}
		return m.readObject(nested.(appdata.Data), s, path)
	case schema.Array:
		return m.readArray(d, key, s, path)
	default:
		return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedType, s.Type)
	}
}

func (m *Marshaller) readObject(d appdata.Data, s *schema.Schema, path string) (map[string]any, error) {
	out := make(map[string]any, len(s.Properties))
	for _, name := range sortedProperties(s) {
		fieldPath := joinPath(path, name)
		if !d.ContainsKey(name) {
			if s.IsRequired(name) {
				m.log.Printf("event=response_field_missing field=%s", fieldPath)
				if m.metrics != nil {
					m.metrics.ResponseFieldsMissing.Add(1)
				}
			}
			continue
		}
		v, err := m.readValue(d, name, s.Properties[name], fieldPath)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldPath, err)
		}
		out[name] = v
	}
	return out, nil
}

func (m *Marshaller) readArray(d appdata.Data, key string, s *schema.Schema, path string) (any, error) {
	items := s.ItemSchema()
	if items == nil {
		return nil, fmt.Errorf("%w: array %s has no item schema", schema.ErrInvalidSchema, displayPath(path))
	}
	switch items.Type {
	case schema.String:
		return readList(d, key, appdata.KindStringList, d.StringList)
	case schema.Int:
		return readList(d, key, appdata.KindIntArray, d.IntArray)
	case schema.Long:
		return readList(d, key, appdata.KindLongArray, d.LongArray)
	case schema.Object:
		list, ok := d.DataList(key)
		if !ok {
			return nil, kindError(d, key, appdata.KindDataList)
		}
		out := make([]any, 0, len(list))
		for i, elem := range list {
			v, err := m.readObject(elem, items, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: array of %s", schema.ErrUnsupportedType, items.Type)
	}
}

func read[T any](d appdata.Data, key string, kind appdata.Kind, get func(string) (T, bool)) (any, error) {
	v, ok := get(key)
	if !ok {
		return nil, kindError(d, key, kind)
	}
	return v, nil
}

func readList[T any](d appdata.Data, key string, kind appdata.Kind, get func(string) ([]T, bool)) (any, error) {
	list, ok := get(key)
	if !ok {
		return nil, kindError(d, key, kind)
	}
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out, nil
}

func kindError(d appdata.Data, key string, want appdata.Kind) error {
	got, ok := d.Kind(key)
	if !ok {
		return fmt.Errorf("%w: %q is missing, want %s", ErrTypeMismatch, key, want)
	}
	return fmt.Errorf("%w: %q holds %s, want %s", ErrTypeMismatch, key, got, want)
}

func sortedProperties(s *schema.Schema) []string {
	if s == nil || s.Type != schema.Object {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name, ps := range s.Properties {
		if ps != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
