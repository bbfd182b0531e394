package appdata

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestBuilderTypedAccessors(t *testing.T) {
	inner := NewBuilder().SetString("task", "buy milk").Build()
	d := NewBuilder().
		SetString("s", "x").
		SetInt("i", 7).
		SetLong("l", 1<<40).
		SetBool("b", true).
		SetFloat("f", 1.5).
		SetDouble("d", 2.25).
		SetData("o", inner).
		SetDataList("os", []Data{inner}).
		SetStringList("ss", []string{"a", "b"}).
		SetIntArray("is", []int32{1, 2}).
		SetLongArray("ls", []int64{3}).
		Build()

	if v, ok := d.String("s"); !ok || v != "x" {
		t.Fatalf("string: %v %v", v, ok)
	}
	if v, ok := d.Int("i"); !ok || v != 7 {
		t.Fatalf("int: %v %v", v, ok)
	}
	if v, ok := d.Long("l"); !ok || v != 1<<40 {
		t.Fatalf("long: %v %v", v, ok)
	}
	if v, ok := d.Bool("b"); !ok || !v {
		t.Fatalf("bool: %v %v", v, ok)
	}
	if v, ok := d.Float("f"); !ok || v != 1.5 {
		t.Fatalf("float: %v %v", v, ok)
	}
	if v, ok := d.Double("d"); !ok || v != 2.25 {
		t.Fatalf("double: %v %v", v, ok)
	}
	if v, ok := d.Data("o"); !ok || !v.ContainsKey("task") {
		t.Fatalf("data: %v %v", v, ok)
	}
	if v, ok := d.DataList("os"); !ok || len(v) != 1 {
		t.Fatalf("data list: %v %v", v, ok)
	}
	if v, ok := d.StringList("ss"); !ok || !reflect.DeepEqual(v, []string{"a", "b"}) {
		t.Fatalf("string list: %v %v", v, ok)
	}
	if v, ok := d.IntArray("is"); !ok || !reflect.DeepEqual(v, []int32{1, 2}) {
		t.Fatalf("int array: %v %v", v, ok)
	}
	if v, ok := d.LongArray("ls"); !ok || !reflect.DeepEqual(v, []int64{3}) {
		t.Fatalf("long array: %v %v", v, ok)
	}
	if d.Len() != 11 {
		t.Fatalf("unexpected len %d", d.Len())
	}
}

func TestWrongKindReadReportsMissing(t *testing.T) {
	d := NewBuilder().SetInt("n", 1).Build()
	if _, ok := d.Long("n"); ok {
		t.Fatal("int slot must not read as long")
	}
	if _, ok := d.String("absent"); ok {
		t.Fatal("absent key must not read")
	}
	if k, ok := d.Kind("n"); !ok || k != KindInt {
		t.Fatalf("unexpected kind %v", k)
	}
}

func TestBuiltDataIsIsolatedFromCallerSlices(t *testing.T) {
	list := []string{"a"}
	d := NewBuilder().SetStringList("l", list).Build()
	list[0] = "mutated"
	got, _ := d.StringList("l")
	got[0] = "also mutated"
	again, _ := d.StringList("l")
	if again[0] != "a" {
		t.Fatalf("container leaked mutation: %v", again)
	}
}

func TestBuilderRejectsUseAfterBuild(t *testing.T) {
	b := NewBuilder()
	b.Build()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on reuse")
		}
	}()
	b.SetString("x", "y")
}

func TestResultUsesReturnValueKey(t *testing.T) {
	d := Result(func(b *Builder, key string) { b.SetBool(key, true) })
	if v, ok := d.Bool(ReturnValueKey); !ok || !v {
		t.Fatalf("unexpected result container: %v", d.Keys())
	}
}

func TestJSONRoundTripKeepsKinds(t *testing.T) {
	inner := NewBuilder().SetString("task", "buy milk").SetInt("n", 3).Build()
	d := NewBuilder().
		SetData("item", inner).
		SetLongArray("ids", []int64{9007199254740993}).
		SetFloat("ratio", 0.5).
		Build()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var back Data
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	item, ok := back.Data("item")
	if !ok {
		t.Fatalf("missing nested data in %s", raw)
	}
	if n, ok := item.Int("n"); !ok || n != 3 {
		t.Fatalf("nested int lost its kind: %s", raw)
	}
	if ids, ok := back.LongArray("ids"); !ok || ids[0] != 9007199254740993 {
		t.Fatalf("long array lost precision: %v", ids)
	}
	if _, ok := back.Float("ratio"); !ok {
		t.Fatalf("float slot lost its kind: %s", raw)
	}
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	var d Data
	if err := json.Unmarshal([]byte(`{"x":{"decimal":1}}`), &d); err == nil {
		t.Fatal("expected unknown kind error")
	}
	if err := json.Unmarshal([]byte(`{"x":{"int":1,"long":2}}`), &d); err == nil {
		t.Fatal("expected ambiguous slot error")
	}
}
