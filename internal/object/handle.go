package object

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/rwp0/Cor/internal/decl"
)

// IDGenerator produces instance handle ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 handle ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so handle
// ids sort by creation time in traces.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string. Panics if UUID
// generation fails, which does not happen in practice.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// instance is the runtime representation of a constructed object: its
// class, its slot array, and its liveness state. Instances are reached
// only through handles; nothing else in the process holds one.
type instance struct {
	class *Class
	slots []decl.Value

	mu        sync.Mutex
	refs      int
	destroyed bool
	handleIDs []string
}

// Handle is one owning reference to an instance. Construction returns
// the first handle; Retain mints more. Releasing the last live handle
// triggers the destruction protocol, which is what makes teardown
// deterministic: the drop of the final owner is the signal, not a
// collector sweep.
type Handle struct {
	id   string
	inst *instance

	mu       sync.Mutex
	released bool
}

// ID returns the handle id.
func (h *Handle) ID() string { return h.id }

// Ref returns the handle as a value that can flow through method
// arguments and results.
func (h *Handle) Ref() decl.Ref { return decl.Ref(h.id) }

// ClassName returns the name of the instance's class.
func (h *Handle) ClassName() string { return h.inst.class.Name() }

// Class returns the instance's linearized class.
func (h *Handle) Class() *Class { return h.inst.class }

// markReleased flips the handle's released flag exactly once.
func (h *Handle) markReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	return true
}

// isReleased reports whether this handle has been released.
func (h *Handle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// trackID records a handle id so destruction can later unregister
// every handle that ever pointed at the instance.
func (i *instance) trackID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handleIDs = append(i.handleIDs, id)
}

// trackedIDs returns a copy of every handle id minted for the
// instance.
func (i *instance) trackedIDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.handleIDs)
}

// live reports whether the underlying instance has not been destroyed.
func (i *instance) live() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.destroyed
}

// addRef increments the reference count, failing once destruction has
// begun.
func (i *instance) addRef() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return false
	}
	i.refs++
	return true
}

// dropRef decrements the reference count. The boolean is true when the
// count reached zero and the caller must run destruction; the flag
// flips inside the lock so teardown starts exactly once.
func (i *instance) dropRef() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refs--
	if i.refs > 0 || i.destroyed {
		return false
	}
	i.destroyed = true
	return true
}
