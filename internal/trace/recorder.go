package trace

import (
	"context"
	"fmt"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// Recorder persists runtime lifecycle events as they happen. It
// implements object.Observer; attach it with object.WithObserver.
//
// A write failure surfaces as the observer error, which the runtime
// logs and drops: a broken trace never changes program behavior.
type Recorder struct {
	store *Store
}

// NewRecorder wraps a trace store as a runtime observer.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Store returns the underlying trace store, for reads after a run.
func (r *Recorder) Store() *Store {
	return r.store
}

// LifecycleEvent implements object.Observer.
func (r *Recorder) LifecycleEvent(ev object.Event) error {
	return r.store.WriteEvent(context.Background(), ev)
}

// RecordClass writes the declaration row for a registered class. The
// stored version is normalized the way the store orders it, so an
// unversioned class records as 0.0.0.
func (r *Recorder) RecordClass(d *decl.ClassDecl) error {
	version, err := decl.ParseVersion(d.Version)
	if err != nil {
		return fmt.Errorf("record class %q: %w", d.Name, err)
	}
	canonical, err := decl.ClassCanonical(d)
	if err != nil {
		return fmt.Errorf("record class %q: %w", d.Name, err)
	}
	fingerprint, err := decl.ClassFingerprint(d)
	if err != nil {
		return fmt.Errorf("record class %q: %w", d.Name, err)
	}

	return r.store.WriteDeclaration(context.Background(), Declaration{
		Kind:        "class",
		Name:        d.Name,
		Version:     version.String(),
		Fingerprint: fingerprint,
		Canonical:   string(canonical),
	})
}

// RecordRole writes the declaration row for a registered role.
func (r *Recorder) RecordRole(d *decl.RoleDecl) error {
	canonical, err := decl.RoleCanonical(d)
	if err != nil {
		return fmt.Errorf("record role %q: %w", d.Name, err)
	}
	fingerprint, err := decl.RoleFingerprint(d)
	if err != nil {
		return fmt.Errorf("record role %q: %w", d.Name, err)
	}

	return r.store.WriteDeclaration(context.Background(), Declaration{
		Kind:        "role",
		Name:        d.Name,
		Fingerprint: fingerprint,
		Canonical:   string(canonical),
	})
}
