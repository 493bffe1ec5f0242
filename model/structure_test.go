package model

import (
	"testing"
)

func TestParseStructureTypeClosedSet(t *testing.T) {
	for _, name := range []string{
		"TEXT", "EMAIL", "PASSWORD", "MARKDOWN", "INTEGER", "FLOAT", "ENUM",
		"DATE", "DATETIME", "MEDIA", "BOOLEAN", "UID", "JSON",
	} {
		parsed := ParseStructureType(name)
		if parsed.Kind == KindCustom {
			t.Errorf("%s should not parse as CUSTOM", name)
		}
		if parsed.String() != name {
			t.Errorf("expected %s to round trip, got %s", name, parsed.String())
		}
	}
}

func TestParseStructureTypeUnknownIsCustom(t *testing.T) {
	parsed := ParseStructureType("geo_point")
	if parsed.Kind != KindCustom {
		t.Fatalf("expected CUSTOM kind, got %v", parsed.Kind)
	}
	if parsed.String() != "geo_point" {
		t.Errorf("custom type should keep its name, got %s", parsed.String())
	}
}

func TestNewStructureValidatesFields(t *testing.T) {
	if _, err := NewStructure("", "Title", "", StructureType{Kind: KindText}); err == nil {
		t.Error("empty id should be rejected")
	}
	s, err := NewStructure("title", "Title", "the post title", StructureType{Kind: KindText})
	if err != nil {
		t.Fatalf("valid structure rejected: %v", err)
	}
	if s.ID != "title" || s.Name != "Title" {
		t.Errorf("unexpected structure fields: %+v", s)
	}
}

func TestSetMinMaxOrdering(t *testing.T) {
	s, err := NewStructure("title", "Title", "", StructureType{Kind: KindText})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetMax(10); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMin(11); err == nil {
		t.Error("min above max should be rejected")
	}
	if err := s.SetMin(5); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMax(4); err == nil {
		t.Error("max below min should be rejected")
	}
}

func TestMinEqualsMaxAcceptsExactLengthOnly(t *testing.T) {
	s, err := NewStructure("code", "Code", "", StructureType{Kind: KindText})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetMax(4); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMin(4); err != nil {
		t.Fatal(err)
	}

	if err := s.CheckValue("abcd"); err != nil {
		t.Errorf("exact length should pass: %v", err)
	}
	if err := s.CheckValue("abc"); err == nil {
		t.Error("shorter value should fail")
	}
	if err := s.CheckValue("abcde"); err == nil {
		t.Error("longer value should fail")
	}
}

func TestSetRegexRejectsBadPattern(t *testing.T) {
	s, _ := NewStructure("slug", "Slug", "", StructureType{Kind: KindText})
	if err := s.SetRegex("([a-z"); err == nil {
		t.Error("non-compiling pattern should be rejected")
	}
	if err := s.SetRegex("^[a-z-]+$"); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
}

func TestEmptyMatchRegexRejectsNonEmptyDefault(t *testing.T) {
	s, _ := NewStructure("blank", "Blank", "", StructureType{Kind: KindText})
	if err := s.SetRegex("^$"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDefault("something"); err == nil {
		t.Error("^$ should reject any non-empty default")
	}
	if err := s.SetDefault(""); err != nil {
		t.Errorf("empty default should pass ^$: %v", err)
	}
}

func TestSetDefaultChecksType(t *testing.T) {
	s, _ := NewStructure("count", "Count", "", StructureType{Kind: KindInteger})
	if err := s.SetDefault("fortytwo"); err == nil {
		t.Error("non-integer default for INTEGER should fail")
	}
	if err := s.SetDefault("42"); err != nil {
		t.Errorf("integer default rejected: %v", err)
	}
}

func TestSetDefaultArrayValidatesPerElement(t *testing.T) {
	s, _ := NewStructure("scores", "Scores", "", StructureType{Kind: KindInteger})
	s.SetFlags(false, false, true, false)

	if err := s.SetDefault("1,2,3"); err != nil {
		t.Errorf("all-integer array default rejected: %v", err)
	}
	if err := s.SetDefault("1,two,3"); err == nil {
		t.Error("array default with a bad element should fail")
	}
}

func TestCheckValueForType(t *testing.T) {
	cases := []struct {
		value string
		t     StructureType
		ok    bool
	}{
		{"42", StructureType{Kind: KindInteger}, true},
		{"4.5", StructureType{Kind: KindInteger}, false},
		{"4.5", StructureType{Kind: KindFloat}, true},
		{"true", StructureType{Kind: KindBoolean}, true},
		{"TRUE", StructureType{Kind: KindBoolean}, true},
		{"yes", StructureType{Kind: KindBoolean}, false},
		{"a@b.co", StructureType{Kind: KindEmail}, true},
		{"nope", StructureType{Kind: KindEmail}, false},
		{"2026-08-25", StructureType{Kind: KindDate}, true},
		{"25/08/2026", StructureType{Kind: KindDate}, false},
		{`{"k":1}`, StructureType{Kind: KindJSON}, true},
		{`{"k":`, StructureType{Kind: KindJSON}, false},
		{"anything", StructureType{Kind: KindText}, true},
		{"anything", StructureType{Kind: KindCustom, Custom: "geo"}, true},
	}
	for _, c := range cases {
		err := CheckValueForType(c.value, c.t)
		if c.ok && err != nil {
			t.Errorf("value %q for %s should pass: %v", c.value, c.t, err)
		}
		if !c.ok && err == nil {
			t.Errorf("value %q for %s should fail", c.value, c.t)
		}
	}
}

func TestStructureSerialisationRoundTrip(t *testing.T) {
	s := Structure{
		ID: "title", Name: "Title", Description: "the title",
		SType: StructureType{Kind: KindText}, Default: "untitled",
		Min: 1, Max: 120, Encrypted: false, Unique: true,
		RegexPattern: "^[a-z]+$", Array: true, Required: true,
	}
	parsed, err := ParseStructure(s.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != s {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", parsed, s)
	}
}
