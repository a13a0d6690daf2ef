package object

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/rwp0/Cor/internal/decl"
)

// namedImpl is a method implementation being layered into the table,
// before it is keyed by name.
type namedImpl struct {
	name      string
	overrides bool
	impl      methodImpl
}

// linearize turns a stored declaration into a Class. The parent has
// already been resolved through the registry; this function flattens
// storage, composes roles, checks conflicts and override targets, and
// builds the dispatch table.
func (r *registry) linearize(d *decl.ClassDecl, v *semver.Version, parent *Class) (*Class, error) {
	composed := make(map[string]bool)
	if parent != nil {
		for name := range parent.composed {
			composed[name] = true
		}
	}

	// Roles already flattened into an ancestor stay flattened; composing
	// them again would duplicate their slots.
	var freshRoles []*decl.RoleDecl
	for _, roleName := range d.Roles {
		if composed[roleName] {
			continue
		}
		role, err := r.store.LookupRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("class %q consumes role %q: %w", d.Name, roleName, err)
		}
		freshRoles = append(freshRoles, role)
		composed[roleName] = true
	}

	sources := make([]fieldSource, 0, len(freshRoles)+1)
	for _, role := range freshRoles {
		sources = append(sources, fieldSource{owner: role.Name, fields: role.Fields})
	}
	sources = append(sources, fieldSource{owner: d.Name, fields: d.Fields})

	l, err := buildLayout(d.Name, parent, sources)
	if err != nil {
		return nil, err
	}

	own := layerImpls(d.Name, d.Methods, d.Fields)

	roleLayers := make([][]namedImpl, len(freshRoles))
	for i, role := range freshRoles {
		roleLayers[i] = layerImpls(role.Name, role.Methods, role.Fields)
	}

	methods, err := buildMethodTable(d.Name, parent, own, freshRoles, roleLayers)
	if err != nil {
		return nil, err
	}

	adjust, destruct := buildHooks(d, parent)

	fingerprint, err := decl.ClassFingerprint(d)
	if err != nil {
		return nil, &RegistrationError{
			Code:    ErrCodeInvalidDeclaration,
			Message: fmt.Sprintf("fingerprint: %v", err),
			Class:   d.Name,
		}
	}

	c := &Class{
		name:        d.Name,
		version:     v,
		fingerprint: fingerprint,
		d:           d,
		parent:      parent,
		abstract:    d.Abstract,
		composed:    composed,
		slots:       l.slots,
		slotIndex:   l.slotIndex,
		params:      l.params,
		shared:      l.shared,
		sharedOrd:   l.sharedOrd,
		methods:     methods,
		adjust:      adjust,
		destruct:    destruct,
	}
	c.ancestry = append(c.ancestry, c)
	if parent != nil {
		c.ancestry = append(c.ancestry, parent.ancestry...)
	}
	return c, nil
}

// layerImpls builds one declarer's contribution to the method table:
// declared methods in order, then the accessors generated from its
// field attributes. Accessors are ordinary methods owned by the
// declarer; readers take no arguments, writers one. Shared-field
// accessors are class-scoped so the cell is observable through the
// class and every instance.
func layerImpls(owner string, methods []decl.MethodDecl, fields []decl.FieldDecl) []namedImpl {
	out := make([]namedImpl, 0, len(methods))
	for _, m := range methods {
		out = append(out, namedImpl{
			name:      m.Name,
			overrides: m.Overrides,
			impl:      methodImpl{owner: owner, scope: m.Scope, arity: m.Arity, body: m.Body},
		})
	}

	for _, f := range fields {
		scope := decl.DispatchInstance
		if f.Scope == decl.ScopeShared {
			scope = decl.DispatchClass
		}
		if f.Reader != "" {
			field := f.Name
			out = append(out, namedImpl{
				name: f.Reader,
				impl: methodImpl{owner: owner, scope: scope, arity: 0,
					body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
						return fr.Get(field)
					}},
			})
		}
		if f.Writer != "" {
			field := f.Name
			out = append(out, namedImpl{
				name: f.Writer,
				impl: methodImpl{owner: owner, scope: scope, arity: 1,
					body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
						if err := fr.Set(field, args[0]); err != nil {
							return nil, err
						}
						return args[0], nil
					}},
			})
		}
	}

	return out
}

// buildMethodTable layers implementations in dispatch precedence: own
// declarations, then each composed role in declaration order, then the
// parent's resolved lists. Role collisions the class does not resolve
// and override markers with no target fail here.
func buildMethodTable(class string, parent *Class, own []namedImpl, roles []*decl.RoleDecl, roleLayers [][]namedImpl) (map[string]*methodEntry, error) {
	ownByName := make(map[string]methodImpl, len(own))
	for _, ni := range own {
		ownByName[ni.name] = ni.impl
	}

	roleImpls := make(map[string][]methodImpl)
	firstRole := make(map[string]string)
	for i, layer := range roleLayers {
		roleName := roles[i].Name
		for _, ni := range layer {
			if prior, seen := firstRole[ni.name]; seen {
				if _, resolved := ownByName[ni.name]; !resolved {
					return nil, NewAmbiguousRoleMethodError(class, prior, roleName, ni.name)
				}
			} else {
				firstRole[ni.name] = roleName
			}
			roleImpls[ni.name] = append(roleImpls[ni.name], ni.impl)
		}
	}

	// Override markers need a target in the parent chain. The parent's
	// table already covers its whole chain, including methods it gained
	// from its own roles.
	checkOverride := func(ni namedImpl) error {
		if !ni.overrides {
			return nil
		}
		if parent == nil || parent.methods[ni.name] == nil {
			return NewMissingOverrideTargetError(class, ni.name)
		}
		return nil
	}
	for _, ni := range own {
		if err := checkOverride(ni); err != nil {
			return nil, err
		}
	}
	for _, layer := range roleLayers {
		for _, ni := range layer {
			if err := checkOverride(ni); err != nil {
				return nil, err
			}
		}
	}

	table := make(map[string]*methodEntry)

	if parent != nil {
		for name, entry := range parent.methods {
			table[name] = entry
		}
	}

	touched := make(map[string]bool)
	for _, ni := range own {
		touched[ni.name] = true
	}
	for name := range roleImpls {
		touched[name] = true
	}

	for name := range touched {
		var impls []methodImpl
		if impl, ok := ownByName[name]; ok {
			impls = append(impls, impl)
		}
		impls = append(impls, roleImpls[name]...)
		if parent != nil {
			if pe, ok := parent.methods[name]; ok {
				impls = append(impls, pe.impls...)
			}
		}
		table[name] = &methodEntry{name: name, impls: impls}
	}

	return table, nil
}

// buildHooks flattens lifecycle hooks across the chain: adjust hooks
// run root-first, destruct hooks child-first, declaration order within
// one class in both cases.
func buildHooks(d *decl.ClassDecl, parent *Class) (adjust, destruct []hookImpl) {
	var ownAdjust, ownDestruct []hookImpl
	for _, h := range d.Hooks {
		impl := hookImpl{owner: d.Name, kind: h.Kind, body: h.Body}
		switch h.Kind {
		case decl.HookAdjust:
			ownAdjust = append(ownAdjust, impl)
		case decl.HookDestruct:
			ownDestruct = append(ownDestruct, impl)
		}
	}

	if parent != nil {
		adjust = append(adjust, parent.adjust...)
	}
	adjust = append(adjust, ownAdjust...)

	destruct = append(destruct, ownDestruct...)
	if parent != nil {
		destruct = append(destruct, parent.destruct...)
	}
	return adjust, destruct
}
