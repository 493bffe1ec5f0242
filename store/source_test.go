package store

import (
	"testing"
)

func TestFlowSourceFetchTypesValues(t *testing.T) {
	s := newTestStore(t)
	seedSchema(t, s)
	seedRecord(t, s, "hello")

	src, err := s.NewFlowSource()
	if err != nil {
		t.Fatal(err)
	}
	records, err := src.Fetch("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec["title"] != "hello" {
		t.Errorf("title: expected hello, got %v", rec["title"])
	}
	if rec["views"] != int64(0) {
		t.Errorf("views should load as int64, got %T %v", rec["views"], rec["views"])
	}
	if _, ok := rec["id"].(string); !ok {
		t.Errorf("record should carry its id, got %v", rec["id"])
	}
	if _, ok := rec["published"].(bool); !ok {
		t.Errorf("record should carry its published flag, got %v", rec["published"])
	}
}

func TestFlowSourceUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	seedSchema(t, s)

	src, err := s.NewFlowSource()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Fetch("konnect", "nope"); err == nil {
		t.Error("unknown collection should fail")
	}
	if _, err := src.Fetch("other", "posts"); err == nil {
		t.Error("collection of another project should not resolve")
	}
}

func TestFlowSourceDeferredPersistence(t *testing.T) {
	s := newTestStore(t)
	seedSchema(t, s)
	d := seedRecord(t, s, "hello")

	src, err := s.NewFlowSource()
	if err != nil {
		t.Fatal(err)
	}
	records, err := src.Fetch("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	records[0]["views"] = int64(42)

	// save=false: the change is visible to later fetches of the same
	// request but never reaches disk.
	if err := src.Update("konnect", "posts", records, false); err != nil {
		t.Fatal(err)
	}
	again, err := src.Fetch("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if again[0]["views"] != int64(42) {
		t.Errorf("update should be visible in-request, got %v", again[0]["views"])
	}
	if err := src.Flush(); err != nil {
		t.Fatal(err)
	}
	stored, err := s.LoadData("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := stored[0].Pair("views"); p.Value != "0" {
		t.Errorf("unsaved update must not persist, got %s", p.Value)
	}

	// save=true: Flush writes the collection.
	if err := src.Update("konnect", "posts", records, true); err != nil {
		t.Fatal(err)
	}
	if err := src.Flush(); err != nil {
		t.Fatal(err)
	}
	stored, err = s.LoadData("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := stored[0].Pair("views"); p.Value != "42" {
		t.Errorf("saved update should persist, got %s", p.Value)
	}
	if stored[0].ID != d.ID {
		t.Errorf("update must not change the record id")
	}
}

func TestFlowSourceCreateValidatesShape(t *testing.T) {
	s := newTestStore(t)
	seedSchema(t, s)

	src, err := s.NewFlowSource()
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Create("konnect", "posts", map[string]any{
		"title": "fresh",
		"views": int64(3),
	}, true); err != nil {
		t.Fatal(err)
	}

	records, err := src.Fetch("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0]["title"] != "fresh" {
		t.Fatalf("created record should be fetchable in-request: %+v", records)
	}

	if err := src.Flush(); err != nil {
		t.Fatal(err)
	}
	stored, err := s.LoadData("konnect", "posts")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(stored))
	}
	if p, _ := stored[0].Pair("views"); p.Value != "3" {
		t.Errorf("views: expected 3, got %s", p.Value)
	}
}
