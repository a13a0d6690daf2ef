package object

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/rwp0/Cor/internal/decl"
)

// slotKey identifies a field by its declarer and name. Two declarers
// may use the same field name; each sees only its own slot.
type slotKey struct {
	Owner string
	Name  string
}

// slotDef is one entry in a class's flattened instance-slot table.
type slotDef struct {
	key   slotKey
	index int
	field decl.FieldDecl
}

// paramSlot links a constructor argument key to the slot it fills.
// Param names are unique across the flattened table (checked at
// linearization), so the key is the bare field name.
type paramSlot struct {
	key    slotKey
	index  int
	policy decl.ParamPolicy
	def    decl.DefaultThunk
}

// sharedCell is one unit of class-level storage. Cells are allocated
// once at linearization and never reallocated; every read or write
// goes through the cell's mutex.
type sharedCell struct {
	mu  sync.Mutex
	val decl.Value
}

func (c *sharedCell) get() decl.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

func (c *sharedCell) set(v decl.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = v
}

// methodImpl is one implementation in a dispatch list.
type methodImpl struct {
	owner string // declaring class or role
	scope decl.DispatchScope
	arity int
	body  decl.Body
}

// methodEntry is a method's resolved dispatch list, innermost first.
type methodEntry struct {
	name  string
	impls []methodImpl
}

// hookImpl is one lifecycle hook bound to its declaring class.
type hookImpl struct {
	owner string
	kind  decl.HookKind
	body  decl.HookBody
}

// Class is a fully linearized, ready-to-instantiate class: resolved
// ancestor chain, flattened slot and shared tables, and per-method
// dispatch lists. Built once by the registry and immutable afterwards
// except for the values inside shared cells.
type Class struct {
	name        string
	version     *semver.Version
	fingerprint string
	d           *decl.ClassDecl
	parent      *Class
	ancestry    []*Class // self-first
	abstract    bool
	composed    map[string]bool // roles flattened in, across the whole chain

	slots     []slotDef
	slotIndex map[slotKey]int
	params    map[string]paramSlot
	shared    map[slotKey]*sharedCell
	sharedOrd []slotKey // declaration order across the chain, root-first
	methods   map[string]*methodEntry

	adjust   []hookImpl // root-first
	destruct []hookImpl // child-first
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Version returns the registered version the class was linearized from.
func (c *Class) Version() *semver.Version { return c.version }

// Fingerprint returns the declaration fingerprint.
func (c *Class) Fingerprint() string { return c.fingerprint }

// Abstract reports whether the class was declared abstract. Abstract
// classes linearize (for inheritance) but never instantiate.
func (c *Class) Abstract() bool { return c.abstract }

// Parent returns the linearized parent, nil for a root class.
func (c *Class) Parent() *Class { return c.parent }

// Ancestry returns the ancestor chain names, self first.
func (c *Class) Ancestry() []string {
	names := make([]string, len(c.ancestry))
	for i, a := range c.ancestry {
		names[i] = a.name
	}
	return names
}

// SlotInfo describes one instance slot for inspection.
type SlotInfo struct {
	Index int    `json:"index"`
	Owner string `json:"owner"`
	Field string `json:"field"`
}

// Slots returns the flattened instance-slot table, inherited first.
func (c *Class) Slots() []SlotInfo {
	out := make([]SlotInfo, len(c.slots))
	for i, s := range c.slots {
		out[i] = SlotInfo{Index: s.index, Owner: s.key.Owner, Field: s.key.Name}
	}
	return out
}

// SharedInfo describes one shared cell for inspection.
type SharedInfo struct {
	Owner string `json:"owner"`
	Field string `json:"field"`
}

// SharedCells returns the visible shared cells, root-first in
// declaration order.
func (c *Class) SharedCells() []SharedInfo {
	out := make([]SharedInfo, len(c.sharedOrd))
	for i, k := range c.sharedOrd {
		out[i] = SharedInfo{Owner: k.Owner, Field: k.Name}
	}
	return out
}

// SharedValue reads a shared cell by its declaring owner and field
// name. Used by inspection and test assertions; bodies go through
// their Frame instead.
func (c *Class) SharedValue(owner, field string) (decl.Value, bool) {
	cell, ok := c.shared[slotKey{Owner: owner, Name: field}]
	if !ok {
		return nil, false
	}
	return cell.get(), true
}

// AdjustOwners returns the declaring class of each adjust hook in
// firing order, root-first. A class contributes one entry per hook
// it declares.
func (c *Class) AdjustOwners() []string {
	out := make([]string, len(c.adjust))
	for i, hk := range c.adjust {
		out[i] = hk.owner
	}
	return out
}

// DestructOwners returns the declaring class of each destruct hook in
// firing order, child-first.
func (c *Class) DestructOwners() []string {
	out := make([]string, len(c.destruct))
	for i, hk := range c.destruct {
		out[i] = hk.owner
	}
	return out
}

// ImplInfo describes one dispatch-list entry for inspection.
type ImplInfo struct {
	Owner string `json:"owner"`
	Scope string `json:"scope"`
	Arity int    `json:"arity"`
}

// Resolve returns a method's ordered dispatch list, innermost first.
// The second return is false when the method is absent.
func (c *Class) Resolve(method string) ([]ImplInfo, bool) {
	entry, ok := c.methods[method]
	if !ok {
		return nil, false
	}
	out := make([]ImplInfo, len(entry.impls))
	for i, impl := range entry.impls {
		out[i] = ImplInfo{Owner: impl.owner, Scope: string(impl.scope), Arity: impl.arity}
	}
	return out, true
}

// MethodNames returns the resolved method names, sorted.
func (c *Class) MethodNames() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sharedCellFor resolves the cell for a declarer's shared field.
func (c *Class) sharedCellFor(owner, field string) (*sharedCell, bool) {
	cell, ok := c.shared[slotKey{Owner: owner, Name: field}]
	return cell, ok
}

// slotFor resolves a declarer's instance slot index.
func (c *Class) slotFor(owner, field string) (int, bool) {
	idx, ok := c.slotIndex[slotKey{Owner: owner, Name: field}]
	return idx, ok
}
