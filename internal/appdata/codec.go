package appdata

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes every slot as a single-entry object naming its kind,
// e.g. {"task":{"string":"buy milk"}}, so the types survive a round trip.
func (d Data) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]any, len(d.slots))
	for key, s := range d.slots {
		out[key] = map[string]any{s.kind.String(): s.value}
	}
	return json.Marshal(out)
}

func (d *Data) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b := NewBuilder()
	for key, tagged := range raw {
		if len(tagged) != 1 {
			return fmt.Errorf("appdata: slot %q must name exactly one kind", key)
		}
		for name, value := range tagged {
			if err := decodeSlot(b, key, name, value); err != nil {
				return fmt.Errorf("appdata: slot %q: %w", key, err)
			}
		}
	}
	*d = b.Build()
	return nil
}

func decodeSlot(b *Builder, key, kind string, value json.RawMessage) error {
	switch kind {
	case KindString.String():
		var v string
		return setDecoded(value, &v, func() { b.SetString(key, v) })
	case KindInt.String():
		var v int32
		return setDecoded(value, &v, func() { b.SetInt(key, v) })
	case KindLong.String():
		var v int64
		return setDecoded(value, &v, func() { b.SetLong(key, v) })
	case KindBool.String():
		var v bool
		return setDecoded(value, &v, func() { b.SetBool(key, v) })
	case KindFloat.String():
		var v float32
		return setDecoded(value, &v, func() { b.SetFloat(key, v) })
	case KindDouble.String():
		var v float64
		return setDecoded(value, &v, func() { b.SetDouble(key, v) })
	case KindData.String():
		var v Data
		return setDecoded(value, &v, func() { b.SetData(key, v) })
	case KindDataList.String():
		var v []Data
		return setDecoded(value, &v, func() { b.SetDataList(key, v) })
	case KindStringList.String():
		var v []string
		return setDecoded(value, &v, func() { b.SetStringList(key, v) })
	case KindIntArray.String():
		var v []int32
		return setDecoded(value, &v, func() { b.SetIntArray(key, v) })
	case KindLongArray.String():
		var v []int64
		return setDecoded(value, &v, func() { b.SetLongArray(key, v) })
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}

func setDecoded(value json.RawMessage, target any, set func()) error {
	if err := json.Unmarshal(value, target); err != nil {
		return err
	}
	set()
	return nil
}
