package flow

import (
	"testing"

	"github.com/contentforge/forge/route"
)

func TestCoercionAddsIntegerAndFloat(t *testing.T) {
	store := NewDefinitionStore()

	left, err := ResolveRefData(route.Lit("3", route.TypeInteger), store, 0)
	if err != nil {
		t.Fatal(err)
	}
	right, err := ResolveRefData(route.Lit("1.5", route.TypeFloat), store, 0)
	if err != nil {
		t.Fatal(err)
	}

	sum, err := ApplyOperation(left, right, route.OpAdd)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Kind != KindFloat || sum.Float != 4.5 {
		t.Errorf("expected FLOAT(4.5), got %s %v", sum.Kind, sum.Value())
	}
}

func TestCoerceBoolean(t *testing.T) {
	cases := []struct {
		in   DefinitionData
		want bool
	}{
		{String("true"), true},
		{String("FALSE"), false},
		{String("1"), true},
		{Integer(0), false},
		{Integer(-2), true},
		{Float(0.5), true},
		{Structured(map[string]any{}), true},
		{Null(), false},
	}
	for _, c := range cases {
		got, err := Coerce(c.in, route.TypeBoolean)
		if err != nil {
			t.Fatalf("coerce %v: %v", c.in.Value(), err)
		}
		if got.Bool != c.want {
			t.Errorf("coerce %v: got %v want %v", c.in.Value(), got.Bool, c.want)
		}
	}

	if _, err := Coerce(String("maybe"), route.TypeBoolean); err == nil {
		t.Error("unreadable boolean text should fail")
	}
}

func TestCoerceNumbersAndStrings(t *testing.T) {
	if v, err := Coerce(Float(3.9), route.TypeInteger); err != nil || v.Int != 3 {
		t.Errorf("float to integer should truncate, got %v %v", v.Value(), err)
	}
	if v, err := Coerce(String(" 42 "), route.TypeInteger); err != nil || v.Int != 42 {
		t.Errorf("string to integer should trim and parse, got %v %v", v.Value(), err)
	}
	if v, err := Coerce(Boolean(true), route.TypeString); err != nil || v.Str != "true" {
		t.Errorf("boolean to string, got %v %v", v.Value(), err)
	}
	if v, err := Coerce(Float(4.5), route.TypeString); err != nil || v.Str != "4.5" {
		t.Errorf("float to string, got %v %v", v.Value(), err)
	}
	if v, err := Coerce(Null(), route.TypeString); err != nil || v.Str != "" {
		t.Errorf("null to string is empty, got %v %v", v.Value(), err)
	}
	if _, err := Coerce(String("x"), route.TypeFloat); err == nil {
		t.Error("unparseable float should fail")
	}
}

func TestConditionsFoldLeftToRight(t *testing.T) {
	store := NewDefinitionStore()
	boolCond := func(v string, next route.NextType) route.Condition {
		return route.Condition{
			Left:     route.Lit(v, route.TypeBoolean),
			Right:    route.Lit("true", route.TypeBoolean),
			Operator: route.OpEq,
			Next:     next,
		}
	}

	// true OR true AND false folds strictly left to right: false.
	conds := []route.Condition{
		boolCond("true", route.NextOr),
		boolCond("true", route.NextAnd),
		boolCond("false", route.NextNone),
	}
	out, err := ResolveConditions(conds, store, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out {
		t.Error("left-to-right folding must not give AND precedence")
	}

	// false AND true OR true: (false AND true) OR true = true.
	conds = []route.Condition{
		boolCond("false", route.NextAnd),
		boolCond("true", route.NextOr),
		boolCond("true", route.NextNone),
	}
	out, err = ResolveConditions(conds, store, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !out {
		t.Error("expected true from (false AND true) OR true")
	}
}

func TestConditionNotFlag(t *testing.T) {
	store := NewDefinitionStore()
	cond := route.Condition{
		Left:     route.Lit("2", route.TypeInteger),
		Right:    route.Lit("2", route.TypeInteger),
		Operator: route.OpEq,
		Not:      true,
		Next:     route.NextNone,
	}
	out, err := ResolveConditions([]route.Condition{cond}, store, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out {
		t.Error("not flag should invert an equal comparison")
	}
}

func TestCompareStringAgainstNumberByLength(t *testing.T) {
	out, err := Compare(String("abc"), Integer(5), route.OpLt)
	if err != nil {
		t.Fatal(err)
	}
	if !out {
		t.Error("a 3-char string should order below 5")
	}

	out, err = Compare(String("abcdef"), Integer(5), route.OpGt)
	if err != nil {
		t.Fatal(err)
	}
	if !out {
		t.Error("a 6-char string should order above 5")
	}
}

func TestIncludes(t *testing.T) {
	seq := Structured([]any{"a", "b", "c"})
	out, err := Compare(seq, String("b"), route.OpIncludes)
	if err != nil {
		t.Fatal(err)
	}
	if !out {
		t.Error("sequence should include its element")
	}

	out, err = Compare(String("hello world"), String("wor"), route.OpIncludes)
	if err != nil {
		t.Fatal(err)
	}
	if !out {
		t.Error("string includes should test substrings")
	}
}

func TestOperationNonePrefersLeft(t *testing.T) {
	v, err := ApplyOperation(String("left"), String("right"), route.OpNone)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "left" {
		t.Errorf("NONE should prefer a non-empty left, got %q", v.Str)
	}

	v, err = ApplyOperation(Null(), String("right"), route.OpNone)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "right" {
		t.Errorf("NONE should fall back to right on null, got %q", v.Str)
	}
}

func TestOperationArithmetic(t *testing.T) {
	if v, _ := ApplyOperation(Integer(7), Integer(2), route.OpMod); v.Int != 1 {
		t.Errorf("7 %% 2 = %v", v.Value())
	}
	if v, _ := ApplyOperation(Integer(7), Integer(2), route.OpDiv); v.Int != 3 {
		t.Errorf("integer division should truncate, got %v", v.Value())
	}
	if _, err := ApplyOperation(Integer(7), Integer(0), route.OpDiv); err == nil {
		t.Error("division by zero should fail")
	}
	if v, _ := ApplyOperation(String("a"), Integer(1), route.OpAdd); v.Str != "a1" {
		t.Errorf("string + number concatenates, got %q", v.Str)
	}
}

func TestDefinitionStoreLexicalLookup(t *testing.T) {
	store := NewDefinitionStore()
	store.Set("x", 0, Integer(1))
	store.Set("x", 5, Integer(2))

	v, err := store.Get("x", 3)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 1 {
		t.Errorf("lookup at 3 should see the binding at 0, got %v", v.Value())
	}

	v, err = store.Get("x", 5)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 2 {
		t.Errorf("lookup at 5 should see the binding at 5, got %v", v.Value())
	}

	if _, err := store.Get("y", 10); err == nil {
		t.Error("undefined name must fail to resolve")
	}

	// Rebinding at the same index overwrites in place.
	store.Set("x", 5, Integer(9))
	v, _ = store.Get("x", 5)
	if v.Int != 9 || store.Len() != 2 {
		t.Errorf("rebind at same index should replace, got %v len %d", v.Value(), store.Len())
	}
}
