package trace

import (
	"path/filepath"
	"testing"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createMemoryStore creates an in-memory store.
func createMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates an event with minimal fields.
func createTestEvent(seq int64, kind object.EventKind, class string) object.Event {
	return object.Event{
		Seq:   seq,
		Kind:  kind,
		Class: class,
	}
}

// createTestDeclaration creates a declaration row for a trivial class.
func createTestDeclaration(t *testing.T, name, version string) Declaration {
	t.Helper()
	d := &decl.ClassDecl{Name: name, Version: version}
	canonical, err := decl.ClassCanonical(d)
	if err != nil {
		t.Fatalf("ClassCanonical() failed: %v", err)
	}
	return Declaration{
		Kind:        "class",
		Name:        name,
		Version:     version,
		Fingerprint: decl.MustClassFingerprint(d),
		Canonical:   string(canonical),
	}
}
