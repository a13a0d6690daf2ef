package object

import (
	"fmt"

	"github.com/rwp0/Cor/internal/decl"
)

// The instance layout engine flattens storage deterministically:
// inherited slots first in the parent's own order, then each freshly
// composed role's fields in role declaration order, then the class's
// own fields. A subclass instance is therefore layout-compatible with
// every ancestor accessor.

// layout is the storage shape computed for one class.
type layout struct {
	slots     []slotDef
	slotIndex map[slotKey]int
	params    map[string]paramSlot
	shared    map[slotKey]*sharedCell
	sharedOrd []slotKey
}

// fieldSource pairs a declarer with its field list, in flattening order.
type fieldSource struct {
	owner  string
	fields []decl.FieldDecl
}

// buildLayout computes the flattened slot, parameter, and shared-cell
// tables. sources lists only the declarers being added at this level
// (fresh roles, then the class itself); inherited storage is copied
// from the parent.
func buildLayout(class string, parent *Class, sources []fieldSource) (*layout, error) {
	l := &layout{
		slotIndex: make(map[slotKey]int),
		params:    make(map[string]paramSlot),
		shared:    make(map[slotKey]*sharedCell),
	}

	if parent != nil {
		l.slots = append(l.slots, parent.slots...)
		for k, v := range parent.slotIndex {
			l.slotIndex[k] = v
		}
		for k, v := range parent.params {
			l.params[k] = v
		}
		// Shared cells are inherited by reference: the subtree mutates
		// the declarer's cell until it shadows the field.
		for k, cell := range parent.shared {
			l.shared[k] = cell
		}
		l.sharedOrd = append(l.sharedOrd, parent.sharedOrd...)
	}

	for _, src := range sources {
		for _, f := range src.fields {
			key := slotKey{Owner: src.owner, Name: f.Name}

			if f.Scope == decl.ScopeShared {
				cell, err := newSharedCell(f)
				if err != nil {
					return nil, &RegistrationError{
						Code:    ErrCodeInvalidDeclaration,
						Message: fmt.Sprintf("shared field %q default failed: %v", f.Name, err),
						Class:   class,
						Field:   f.Name,
					}
				}
				// Redeclaring replaces the visible cell for this
				// subtree; the parent's cell stays reachable through
				// its own key.
				l.shared[key] = cell
				l.sharedOrd = append(l.sharedOrd, key)
				continue
			}

			idx := len(l.slots)
			l.slots = append(l.slots, slotDef{key: key, index: idx, field: f})
			l.slotIndex[key] = idx

			if f.Policy == decl.ParamRequired || f.Policy == decl.ParamOptional {
				if prior, dup := l.params[f.Name]; dup {
					return nil, &RegistrationError{
						Code: ErrCodeDuplicateParamName,
						Message: fmt.Sprintf("constructor parameter %q is declared by both %q and %q",
							f.Name, prior.key.Owner, src.owner),
						Class: class,
						Field: f.Name,
					}
				}
				l.params[f.Name] = paramSlot{key: key, index: idx, policy: f.Policy, def: f.Default}
			}
		}
	}

	return l, nil
}

// newSharedCell allocates a shared cell, evaluating the default thunk
// once for the declaring class. Cells with no default start Null.
func newSharedCell(f decl.FieldDecl) (*sharedCell, error) {
	val := decl.Value(decl.Null{})
	if f.Default != nil {
		v, err := f.Default()
		if err != nil {
			return nil, err
		}
		val = v
	}
	return &sharedCell{val: val}, nil
}
