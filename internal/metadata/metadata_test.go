package metadata

import "testing"

func TestCanonical_SortsMapKeysDeterministically(t *testing.T) {
	m1 := Map(map[string]Value{"b": Int(2), "a": Int(1)})
	m2 := Map(map[string]Value{"a": Int(1), "b": Int(2)})

	if m1.Canonical() != m2.Canonical() {
		t.Fatalf("expected identical canonical forms, got %q and %q", m1.Canonical(), m2.Canonical())
	}
	if m1.Canonical() != `{"a":1,"b":2}` {
		t.Fatalf("unexpected canonical form: %q", m1.Canonical())
	}
}

func TestCanonical_NestedStructures(t *testing.T) {
	v := Map(map[string]Value{
		"tags":   List(String("pqc"), String("audit")),
		"count":  Int(3),
		"active": Bool(true),
		"note":   Null(),
	})
	want := `{"active":true,"count":3,"note":null,"tags":["pqc","audit"]}`
	if got := v.Canonical(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonical_EscapesSpecialCharacters(t *testing.T) {
	v := String("line1\nline2\t\"quoted\"\\")
	want := `"line1\nline2\t\"quoted\"\\"`
	if got := v.Canonical(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAccessors_ReturnUnderlyingPayload(t *testing.T) {
	if s, ok := String("x").AsString(); !ok || s != "x" {
		t.Fatalf("AsString: got (%q, %v)", s, ok)
	}
	if i, ok := Int(42).AsInt(); !ok || i != 42 {
		t.Fatalf("AsInt: got (%d, %v)", i, ok)
	}
	if String("x").AsMap() != nil {
		t.Fatal("expected nil AsMap on non-map value")
	}
	if Int(1).AsList() != nil {
		t.Fatal("expected nil AsList on non-list value")
	}

	list := List(Int(1), Int(2)).AsList()
	if len(list) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(list))
	}
}

func TestMap_CopiesInputSoCallerMutationDoesNotLeak(t *testing.T) {
	src := map[string]Value{"a": Int(1)}
	v := Map(src)
	src["a"] = Int(999)

	got, _ := v.AsMap()["a"].AsInt()
	if got != 1 {
		t.Fatalf("expected Map to copy its input, got mutated value %d", got)
	}
}
