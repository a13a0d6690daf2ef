package object

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/rwp0/Cor/internal/decl"
)

// registry is the class registry: the lazily built table of fully
// linearized classes. Resolution is memoized per name+version under one
// mutex; an in-progress set catches inheritance cycles before they
// recurse forever. Failed linearizations are not cached - the offending
// declaration simply stays unusable while everything else keeps
// working.
type registry struct {
	mu       sync.Mutex
	store    *DeclStore
	classes  map[classKey]*Class
	visiting map[string]bool
	stack    []string

	// onLinearized fires once per freshly linearized class, parents
	// before children, while the registry lock is held.
	onLinearized func(c *Class)
}

type classKey struct {
	name    string
	version string
}

func newRegistry(store *DeclStore) *registry {
	return &registry{
		store:    store,
		classes:  make(map[classKey]*Class),
		visiting: make(map[string]bool),
	}
}

// resolve returns the linearized class for name at the highest
// registered version >= min (nil min accepts any).
func (r *registry) resolve(name string, min *semver.Version) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name, min)
}

func (r *registry) resolveLocked(name string, min *semver.Version) (*Class, error) {
	d, v, err := r.store.LookupClass(name, min)
	if err != nil {
		return nil, err
	}

	key := classKey{name: d.Name, version: v.String()}
	if c, ok := r.classes[key]; ok {
		return c, nil
	}

	if r.visiting[d.Name] {
		chain := append(slices.Clone(r.stack), d.Name)
		return nil, NewCyclicInheritanceError(chain)
	}
	r.visiting[d.Name] = true
	r.stack = append(r.stack, d.Name)
	defer func() {
		delete(r.visiting, d.Name)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	var parent *Class
	if d.Parent != nil {
		var parentMin *semver.Version
		if d.Parent.MinVersion != "" {
			parentMin = decl.MustVersion(d.Parent.MinVersion)
		}
		parent, err = r.resolveLocked(d.Parent.Name, parentMin)
		if err != nil {
			if IsVersionTooLow(err) {
				var le *LookupError
				errors.As(err, &le)
				return nil, NewVersionConstraintError(d.Name, d.Parent.Name, le.Required, le.Highest)
			}
			if IsCyclicInheritance(err) {
				return nil, err
			}
			return nil, fmt.Errorf("class %q parent %q: %w", d.Name, d.Parent.Name, err)
		}
	}

	c, err := r.linearize(d, v, parent)
	if err != nil {
		return nil, err
	}

	r.classes[key] = c
	if r.onLinearized != nil {
		r.onLinearized(c)
	}
	return c, nil
}
