package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserCloneIsolatesChildren(t *testing.T) {
	u := User{ID: 1, Name: "Ada", Children: []Column{{Column: "team", Value: "core"}}}
	cp := u.Clone()
	cp.Children[0].Value = "ops"
	if u.Children[0].Value != "core" {
		t.Fatalf("clone shares children backing array")
	}
	if (User{}).Clone().Children != nil {
		t.Fatalf("nil children must stay nil")
	}
}

func TestCloneUsers(t *testing.T) {
	if CloneUsers(nil) != nil {
		t.Fatalf("expected nil pass-through")
	}
	src := []User{{ID: 2}, {ID: 1, Children: []Column{{Column: "a", Value: "1"}}}}
	cp := CloneUsers(src)
	if len(cp) != 2 || cp[0].ID != 2 || cp[1].ID != 1 {
		t.Fatalf("order not preserved: %+v", cp)
	}
	cp[1].Children[0].Value = "2"
	if src[1].Children[0].Value != "1" {
		t.Fatalf("expected deep copy")
	}
}

func TestChunkColumns(t *testing.T) {
	cols := []Column{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"a", "4"}, {"e", "5"}}
	chunks := ChunkColumns(cols, 2)
	if len(chunks) != 3 || len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if chunks[1][1].Value != "4" {
		t.Fatalf("duplicates must keep insertion order: %+v", chunks)
	}
	if ChunkColumns(cols, 0) != nil || ChunkColumns(nil, 3) != nil {
		t.Fatalf("expected nil for empty input or non-positive size")
	}
}

func TestUserJSONLayout(t *testing.T) {
	u := User{ID: 3, Name: "Jo", Age: 30, Email: "jo@example.com", RegisteredDate: "2024-01-02", IsActive: true, Role: RoleEditor}
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{`"id":3`, `"registeredDate":"2024-01-02"`, `"isActive":true`, `"role":3`} {
		if !strings.Contains(s, key) {
			t.Fatalf("expected %s in %s", key, s)
		}
	}
	if strings.Contains(s, "children") {
		t.Fatalf("empty children must be omitted: %s", s)
	}
}

func TestDefaultFilterState(t *testing.T) {
	f := DefaultFilterState()
	if f.Status != StatusActive || !f.Role.IsAll() || f.Search != "" || f.CurrentPage != 1 || f.ItemsPerPage != 5 {
		t.Fatalf("unexpected defaults: %+v", f)
	}
}

func TestRoleFilter(t *testing.T) {
	all := AllRoles()
	if !all.IsAll() || !all.Matches(RoleAdmin) || all.String() != "all" {
		t.Fatalf("all filter misbehaves")
	}
	only := OnlyRole(RoleAuthor)
	if only.IsAll() || !only.Matches(RoleAuthor) || only.Matches(RoleEditor) {
		t.Fatalf("only filter misbehaves")
	}
	if r, ok := only.Role(); !ok || r != RoleAuthor {
		t.Fatalf("Role() = %v %v", r, ok)
	}
	if (RoleFilter{}) != AllRoles() {
		t.Fatalf("zero value must be all")
	}
}

func TestStatusFilter(t *testing.T) {
	for _, s := range []StatusFilter{StatusAll, StatusActive, StatusInactive} {
		got, err := ParseStatusFilter(s.String())
		if err != nil || got != s {
			t.Fatalf("round trip %v: %v %v", s, got, err)
		}
	}
	if StatusFilter(9).Valid() {
		t.Fatalf("expected invalid status")
	}
	if _, err := ParseStatusFilter("archived"); err == nil {
		t.Fatalf("expected error")
	}
}
