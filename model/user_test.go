package model

import (
	"strings"
	"testing"
)

func TestCreateUserHashesPassword(t *testing.T) {
	var list []User
	err := CreateUser(&list, "u1", "Ada", "Lovelace", "ada", "ada@example.com", "s3cretpass", RoleAdmin)
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	u := list[0]
	if u.PasswordHash == "s3cretpass" || u.PasswordHash == "" {
		t.Error("password must be stored as a hash")
	}
	if !u.VerifyPassword("s3cretpass") {
		t.Error("correct password should verify")
	}
	if u.VerifyPassword("wrong") {
		t.Error("wrong password must not verify")
	}
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	var list []User
	err := CreateUser(&list, "u1", "Ada", "Lovelace", "ada", "ada@example.com", "short", RoleAuthor)
	if err == nil {
		t.Fatal("short password should be rejected")
	}
	if len(list) != 0 {
		t.Error("failed create must not leave a partial entity")
	}
}

func TestCreateUserRejectsTakenUsername(t *testing.T) {
	var list []User
	if err := CreateUser(&list, "u1", "Ada", "Lovelace", "ada", "ada@example.com", "s3cretpass", RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if err := CreateUser(&list, "u2", "Other", "Person", "ADA", "o@example.com", "s3cretpass", RoleAuthor); err == nil {
		t.Error("taken username should conflict")
	}
}

func TestUserRoundTripKeepsHash(t *testing.T) {
	var list []User
	if err := CreateUser(&list, "u1", "Ada", "Lovelace", "ada", "ada@example.com", "s3cretpass", RoleRoot); err != nil {
		t.Fatal(err)
	}

	text := UsersToText(list)
	if strings.Contains(text, "s3cretpass") {
		t.Fatal("serialised users leak a plaintext password")
	}

	parsed, err := ParseUsers(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 user, got %d", len(parsed))
	}
	if parsed[0].Role != RoleRoot {
		t.Errorf("expected ROOT role, got %s", parsed[0].Role)
	}
	if !parsed[0].VerifyPassword("s3cretpass") {
		t.Error("hash must survive the round trip")
	}
}

func TestParseRoleUnknownIsAuthor(t *testing.T) {
	if ParseRole("SUPERVISOR") != RoleAuthor {
		t.Error("unknown role should default to AUTHOR")
	}
	if ParseRole("root") != RoleRoot {
		t.Error("role parse should be case-insensitive")
	}
}
