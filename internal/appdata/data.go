// Package appdata is the strongly typed key/value container exchanged with
// capabilities: parameters going in, return values coming out.
package appdata

import (
	"fmt"
	"slices"
	"sort"
)

// ReturnValueKey holds a capability's return value in a result container.
const ReturnValueKey = "returnValue"

type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindLong
	KindBool
	KindFloat
	KindDouble
	KindData
	KindDataList
	KindStringList
	KindIntArray
	KindLongArray
)

var kindNames = map[Kind]string{
	KindString:     "string",
	KindInt:        "int",
	KindLong:       "long",
	KindBool:       "bool",
	KindFloat:      "float",
	KindDouble:     "double",
	KindData:       "data",
	KindDataList:   "dataList",
	KindStringList: "stringList",
	KindIntArray:   "intArray",
	KindLongArray:  "longArray",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type slot struct {
	kind  Kind
	value any
}

// Data is immutable once built. The zero value is an empty container.
type Data struct {
	slots map[string]slot
}

var Empty = Data{}

func (d Data) Len() int { return len(d.slots) }

func (d Data) ContainsKey(key string) bool {
	_, ok := d.slots[key]
	return ok
}

// Kind reports the slot kind stored under key.
func (d Data) Kind(key string) (Kind, bool) {
	s, ok := d.slots[key]
	return s.kind, ok
}

func (d Data) Keys() []string {
	keys := make([]string, 0, len(d.slots))
	for k := range d.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func get[T any](d Data, key string, kind Kind) (T, bool) {
	var zero T
	s, ok := d.slots[key]
	if !ok || s.kind != kind {
		return zero, false
	}
	v, ok := s.value.(T)
	return v, ok
}

func (d Data) String(key string) (string, bool) { return get[string](d, key, KindString) }
func (d Data) Int(key string) (int32, bool) { return get[int32](d, key, KindInt) }
func (d Data) Long(key string) (int64, bool) { return get[int64](d, key, KindLong) }
func (d Data) Bool(key string) (bool, bool) { return get[bool](d, key, KindBool) }
func (d Data) Float(key string) (float32, bool) { return get[float32](d, key, KindFloat) }
func (d Data) Double(key string) (float64, bool) { return get[float64](d, key, KindDouble) }
func (d Data) Data(key string) (Data, bool) { return get[Data](d, key, KindData) }
func (d Data) DataList(key string) ([]Data, bool) { return cloned(get[[]Data](d, key, KindDataList)) }
func (d Data) StringList(key string) ([]string, bool) {
	return cloned(get[[]string](d, key, KindStringList))
}
func (d Data) IntArray(key string) ([]int32, bool) { return cloned(get[[]int32](d, key, KindIntArray)) }
func (d Data) LongArray(key string) ([]int64, bool) { return cloned(get[[]int64](d, key, KindLongArray)) }

func cloned[S ~[]E, E any](s S, ok bool) (S, bool) {
	return slices.Clone(s), ok
}

// Builder accumulates slots for exactly one Data. Build finalizes it; any
// further use of the builder panics.
type Builder struct {
	slots map[string]slot
	done  bool
}

func NewBuilder() *Builder {
	return &Builder{slots: map[string]slot{}}
}

func (b *Builder) set(key string, kind Kind, value any) *Builder {
	if b.done {
		panic("appdata: builder used after Build")
	}
	b.slots[key] = slot{kind: kind, value: value}
	return b
}

func (b *Builder) SetString(key, v string) *Builder { return b.set(key, KindString, v) }
func (b *Builder) SetInt(key string, v int32) *Builder { return b.set(key, KindInt, v) }
func (b *Builder) SetLong(key string, v int64) *Builder { return b.set(key, KindLong, v) }
func (b *Builder) SetBool(key string, v bool) *Builder { return b.set(key, KindBool, v) }
func (b *Builder) SetFloat(key string, v float32) *Builder {
	return b.set(key, KindFloat, v)
}
func (b *Builder) SetDouble(key string, v float64) *Builder {
	return b.set(key, KindDouble, v)
}
func (b *Builder) SetData(key string, v Data) *Builder { return b.set(key, KindData, v) }
func (b *Builder) SetDataList(key string, v []Data) *Builder {
	return b.set(key, KindDataList, slices.Clone(v))
}
func (b *Builder) SetStringList(key string, v []string) *Builder {
	return b.set(key, KindStringList, slices.Clone(v))
}
func (b *Builder) SetIntArray(key string, v []int32) *Builder {
	return b.set(key, KindIntArray, slices.Clone(v))
}
func (b *Builder) SetLongArray(key string, v []int64) *Builder {
	return b.set(key, KindLongArray, slices.Clone(v))
}

func (b *Builder) Build() Data {
	if b.done {
		panic("appdata: Build called twice")
	}
	b.done = true
	slots := b.slots
	b.slots = nil
	return Data{slots: slots}
}

// Result builds a container whose only slot is ReturnValueKey, the layout
// capabilities answer with.
func Result(set func(b *Builder, key string)) Data {
	b := NewBuilder()
	set(b, ReturnValueKey)
	return b.Build()
}
