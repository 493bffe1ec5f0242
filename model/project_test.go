package model

import "testing"

func TestCreateProjectValidatesAndRollsBack(t *testing.T) {
	var list []Project
	if err := CreateProject(&list, "konnect", "Konnect", "demo project", "/api/v1/konnect"); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	if err := CreateProject(&list, "bad id", "X", "", "/x"); err == nil {
		t.Error("invalid id should be rejected")
	}
	if len(list) != 1 {
		t.Errorf("failed create must not leave a partial entity, got %d", len(list))
	}
}

func TestProjectDuplicateIDConflicts(t *testing.T) {
	var list []Project
	if err := CreateProject(&list, "konnect", "Konnect", "", "/api"); err != nil {
		t.Fatal(err)
	}
	if err := CreateProject(&list, "KONNECT", "Other", "", "/api2"); err == nil {
		t.Error("duplicate id (case-insensitive) should conflict")
	}
}

func TestProjectByAPIPathLongestPrefix(t *testing.T) {
	var list []Project
	if err := CreateProject(&list, "a", "A", "", "/api"); err != nil {
		t.Fatal(err)
	}
	if err := CreateProject(&list, "b", "B", "", "/api/v1"); err != nil {
		t.Fatal(err)
	}

	p, err := ProjectByAPIPath(list, "/api/v1/posts")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "b" {
		t.Errorf("expected longest prefix match b, got %s", p.ID)
	}

	if _, err := ProjectByAPIPath(list, "/other"); err == nil {
		t.Error("unmatched path should fail")
	}
}

func TestProjectMembers(t *testing.T) {
	var list []Project
	if err := CreateProject(&list, "konnect", "Konnect", "", "/api"); err != nil {
		t.Fatal(err)
	}
	p := &list[0]

	if err := p.AddMember("u1"); err != nil {
		t.Fatal(err)
	}
	if err := p.AddMember("u1"); err == nil {
		t.Error("duplicate member should conflict")
	}
	if err := p.RemoveMember("u1"); err != nil {
		t.Fatal(err)
	}
	if err := p.RemoveMember("u1"); err == nil {
		t.Error("removing absent member should fail")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	p := Project{
		ID: "konnect", Name: "Konnect", Description: "demo",
		APIPath: "/api/v1/konnect", Members: []string{"u1", "u2"},
	}
	parsed, err := ParseProject(p.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ID != p.ID || parsed.APIPath != p.APIPath {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if len(parsed.Members) != 2 || parsed.Members[0] != "u1" {
		t.Errorf("members mismatch: %v", parsed.Members)
	}

	projects, err := ParseProjects(ProjectsToText([]Project{p}))
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
}

func TestUpdateProjectID(t *testing.T) {
	var list []Project
	if err := CreateProject(&list, "konnect", "Konnect", "", "/api"); err != nil {
		t.Fatal(err)
	}
	if err := CreateProject(&list, "other", "Other", "", "/other"); err != nil {
		t.Fatal(err)
	}

	if err := UpdateProjectID(&list, "konnect", "other"); err == nil {
		t.Error("rename onto a taken id should conflict")
	}
	if err := UpdateProjectID(&list, "konnect", "fresh"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetProject(list, "fresh"); err != nil {
		t.Error("renamed project not found")
	}
}
