package openapi

import (
	"bytes"
	"os"
	"testing"
)

func TestSpecReturnsCopyAndMatchesFile(t *testing.T) {
	want, err := os.ReadFile("roster.yaml")
	if err != nil {
		t.Fatalf("read roster.yaml: %v", err)
	}
	spec := Spec()
	if !bytes.Equal(spec, want) {
		t.Fatalf("Spec does not match embedded contents")
	}
	spec[0] ^= 0xFF
	if !bytes.Equal(Spec(), want) {
		t.Fatalf("Spec mutation leaked into embedded content")
	}
}

func TestSpecDocumentsRoutes(t *testing.T) {
	spec := string(Spec())
	for _, path := range []string{"/users:", "/users/{id}:", "/users/{id}/toggle:", "/users/{id}/columns:", "/exports:", "/roles:"} {
		if !bytes.Contains([]byte(spec), []byte(path)) {
			t.Fatalf("missing path %s", path)
		}
	}
}
