package decl

import (
	"fmt"
)

// FieldScope says whether a field lives in each instance's slot array
// or in one cell shared by the declaring class and its subtree.
type FieldScope string

const (
	ScopeInstance FieldScope = "instance"
	ScopeShared   FieldScope = "shared"
)

// ValidFieldScopes defines the allowed field scopes.
var ValidFieldScopes = map[FieldScope]bool{
	ScopeInstance: true,
	ScopeShared:   true,
}

// ParamPolicy controls how a field interacts with constructor arguments.
type ParamPolicy string

const (
	// ParamRequired fields must be supplied at construction.
	ParamRequired ParamPolicy = "required"
	// ParamOptional fields take the supplied value or their default.
	ParamOptional ParamPolicy = "optional"
	// ParamNone fields may not be supplied at construction.
	ParamNone ParamPolicy = "none"
)

// ValidParamPolicies defines the allowed parameter policies.
var ValidParamPolicies = map[ParamPolicy]bool{
	ParamRequired: true,
	ParamOptional: true,
	ParamNone:     true,
}

// ContainerKind distinguishes scalar fields from ordered sequences.
type ContainerKind string

const (
	KindScalar   ContainerKind = "scalar"
	KindSequence ContainerKind = "sequence"
)

// ValidContainerKinds defines the allowed container kinds.
var ValidContainerKinds = map[ContainerKind]bool{
	KindScalar:   true,
	KindSequence: true,
}

// DispatchScope says whether a method binds an instance or only a class.
type DispatchScope string

const (
	DispatchInstance DispatchScope = "instance"
	DispatchClass    DispatchScope = "class"
)

// ValidDispatchScopes defines the allowed dispatch scopes.
var ValidDispatchScopes = map[DispatchScope]bool{
	DispatchInstance: true,
	DispatchClass:    true,
}

// HookKind identifies the lifecycle point a hook runs at.
type HookKind string

const (
	// HookAdjust hooks run after field initialization, root-first.
	HookAdjust HookKind = "adjust"
	// HookDestruct hooks run at teardown, child-first.
	HookDestruct HookKind = "destruct"
)

// ValidHookKinds defines the allowed hook kinds.
var ValidHookKinds = map[HookKind]bool{
	HookAdjust:   true,
	HookDestruct: true,
}

// MethodNew is reserved: construction is routed through the runtime's
// construction protocol, never through a declared method record.
const MethodNew = "new"

// MethodBuildArgs names the optional alternate-arguments method. When a
// class resolves one, construction passes the raw pairs through it
// first. Declared like any class-scoped arity-1 method.
const MethodBuildArgs = "BUILDARGS"

// DefaultThunk lazily produces a field's default value. It is evaluated
// at most once per instance (once per class for shared fields).
type DefaultThunk func() (Value, error)

// ParentRef names a class's parent and the minimum acceptable
// registered version. An empty MinVersion accepts any version.
type ParentRef struct {
	Name       string `json:"name"`
	MinVersion string `json:"min_version,omitempty"`
}

// FieldDecl declares one unit of instance or shared storage.
type FieldDecl struct {
	Name    string        `json:"name"`
	Scope   FieldScope    `json:"scope"`
	Policy  ParamPolicy   `json:"policy"`
	Kind    ContainerKind `json:"kind"`
	Default DefaultThunk  `json:"-"`
	// Reader/Writer, when non-empty, name the accessor methods
	// generated at linearization for this field.
	Reader string `json:"reader,omitempty"`
	Writer string `json:"writer,omitempty"`
}

// MethodDecl declares a method. Body is opaque to the runtime: it is
// scheduled, never interpreted.
type MethodDecl struct {
	Name      string        `json:"name"`
	Arity     int           `json:"arity"`
	Scope     DispatchScope `json:"scope"`
	Overrides bool          `json:"overrides,omitempty"`
	Body      Body          `json:"-"`
}

// HookDecl declares a lifecycle hook.
type HookDecl struct {
	Kind HookKind `json:"kind"`
	Body HookBody `json:"-"`
}

// ClassDecl is a complete parsed class declaration. Immutable once
// registered: the runtime copies nothing back into it and callers must
// not mutate it after RegisterClass.
type ClassDecl struct {
	Name     string       `json:"name"`
	Version  string       `json:"version,omitempty"`
	Parent   *ParentRef   `json:"parent,omitempty"`
	Roles    []string     `json:"roles,omitempty"`
	Abstract bool         `json:"abstract,omitempty"`
	Fields   []FieldDecl  `json:"fields,omitempty"`
	Methods  []MethodDecl `json:"methods,omitempty"`
	Hooks    []HookDecl   `json:"hooks,omitempty"`
}

// RoleDecl is a complete parsed role declaration. Roles carry no
// version and may not declare shared fields.
type RoleDecl struct {
	Name    string       `json:"name"`
	Fields  []FieldDecl  `json:"fields,omitempty"`
	Methods []MethodDecl `json:"methods,omitempty"`
}

// Validate checks the declaration against structural rules. Returns all
// errors, not fail-fast.
func (d *ClassDecl) Validate() []ValidationError {
	var errs []ValidationError

	if !ValidName(d.Name) {
		errs = append(errs, ValidationError{Field: "name", Message: fmt.Sprintf("invalid class name %q", d.Name)})
	}
	if d.Version != "" {
		if _, err := ParseVersion(d.Version); err != nil {
			errs = append(errs, ValidationError{Field: "version", Message: fmt.Sprintf("invalid version %q: %v", d.Version, err)})
		}
	}
	if d.Parent != nil {
		if !ValidName(d.Parent.Name) {
			errs = append(errs, ValidationError{Field: "parent.name", Message: fmt.Sprintf("invalid parent name %q", d.Parent.Name)})
		}
		if d.Parent.MinVersion != "" {
			if _, err := ParseVersion(d.Parent.MinVersion); err != nil {
				errs = append(errs, ValidationError{Field: "parent.min_version", Message: fmt.Sprintf("invalid minimum version %q: %v", d.Parent.MinVersion, err)})
			}
		}
	}

	seenRoles := make(map[string]bool)
	for i, r := range d.Roles {
		if !ValidName(r) {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("roles[%d]", i), Message: fmt.Sprintf("invalid role name %q", r)})
		}
		if seenRoles[r] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("roles[%d]", i), Message: fmt.Sprintf("role %q consumed twice", r)})
		}
		seenRoles[r] = true
	}

	methodNames := make(map[string]bool)
	for i, m := range d.Methods {
		errs = append(errs, m.validate(fmt.Sprintf("methods[%d]", i), methodNames)...)
	}

	errs = append(errs, validateFields(d.Fields, methodNames, true)...)

	for i, h := range d.Hooks {
		if !ValidHookKinds[h.Kind] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("hooks[%d].kind", i),
				Message: fmt.Sprintf("invalid hook kind %q, must be adjust or destruct", h.Kind),
			})
		}
		if h.Body == nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("hooks[%d].body", i), Message: "hook body is required"})
		}
	}

	return errs
}

// Validate checks the role declaration against structural rules.
func (d *RoleDecl) Validate() []ValidationError {
	var errs []ValidationError

	if !ValidName(d.Name) {
		errs = append(errs, ValidationError{Field: "name", Message: fmt.Sprintf("invalid role name %q", d.Name)})
	}

	methodNames := make(map[string]bool)
	for i, m := range d.Methods {
		errs = append(errs, m.validate(fmt.Sprintf("methods[%d]", i), methodNames)...)
	}

	errs = append(errs, validateFields(d.Fields, methodNames, false)...)

	return errs
}

func (m *MethodDecl) validate(path string, seen map[string]bool) []ValidationError {
	var errs []ValidationError

	if !ValidMemberName(m.Name) {
		errs = append(errs, ValidationError{Field: path + ".name", Message: fmt.Sprintf("invalid method name %q", m.Name)})
	}
	if m.Name == MethodNew {
		errs = append(errs, ValidationError{Field: path + ".name", Message: "method name \"new\" is reserved for construction"})
	}
	if seen[m.Name] {
		errs = append(errs, ValidationError{Field: path + ".name", Message: fmt.Sprintf("duplicate method name %q", m.Name)})
	}
	seen[m.Name] = true

	if m.Arity < 0 {
		errs = append(errs, ValidationError{Field: path + ".arity", Message: "arity must be zero or positive"})
	}
	if !ValidDispatchScopes[m.Scope] {
		errs = append(errs, ValidationError{
			Field:   path + ".scope",
			Message: fmt.Sprintf("invalid dispatch scope %q, must be instance or class", m.Scope),
		})
	}
	if m.Name == MethodBuildArgs {
		if m.Scope != DispatchClass {
			errs = append(errs, ValidationError{Field: path + ".scope", Message: "BUILDARGS must be class-scoped"})
		}
		if m.Arity != 1 {
			errs = append(errs, ValidationError{Field: path + ".arity", Message: "BUILDARGS takes exactly one argument"})
		}
	}
	if m.Body == nil {
		errs = append(errs, ValidationError{Field: path + ".body", Message: "method body is required"})
	}

	return errs
}

// validateFields covers the rules shared by classes and roles;
// sharedAllowed is false for roles.
func validateFields(fields []FieldDecl, methodNames map[string]bool, sharedAllowed bool) []ValidationError {
	var errs []ValidationError

	fieldNames := make(map[string]bool)
	for i, f := range fields {
		path := fmt.Sprintf("fields[%d]", i)

		if !ValidMemberName(f.Name) {
			errs = append(errs, ValidationError{Field: path + ".name", Message: fmt.Sprintf("invalid field name %q", f.Name)})
		}
		if fieldNames[f.Name] {
			errs = append(errs, ValidationError{Field: path + ".name", Message: fmt.Sprintf("duplicate field name %q", f.Name)})
		}
		fieldNames[f.Name] = true

		if !ValidFieldScopes[f.Scope] {
			errs = append(errs, ValidationError{
				Field:   path + ".scope",
				Message: fmt.Sprintf("invalid field scope %q, must be instance or shared", f.Scope),
			})
		}
		if !ValidParamPolicies[f.Policy] {
			errs = append(errs, ValidationError{
				Field:   path + ".policy",
				Message: fmt.Sprintf("invalid parameter policy %q, must be required, optional or none", f.Policy),
			})
		}
		if !ValidContainerKinds[f.Kind] {
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("invalid container kind %q, must be scalar or sequence", f.Kind),
			})
		}

		if f.Scope == ScopeShared {
			if !sharedAllowed {
				errs = append(errs, ValidationError{Field: path + ".scope", Message: "roles may not declare shared fields"})
			}
			if f.Kind == KindSequence {
				errs = append(errs, ValidationError{Field: path + ".kind", Message: "only scalar fields may be shared"})
			}
			if f.Policy != ParamNone {
				errs = append(errs, ValidationError{Field: path + ".policy", Message: "shared fields may not be constructor parameters"})
			}
		}

		if f.Policy == ParamOptional && f.Default == nil {
			errs = append(errs, ValidationError{Field: path + ".default", Message: "optional parameter fields need a default"})
		}

		for _, acc := range []struct {
			label string
			name  string
		}{{"reader", f.Reader}, {"writer", f.Writer}} {
			if acc.name == "" {
				continue
			}
			if !ValidMemberName(acc.name) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s", path, acc.label),
					Message: fmt.Sprintf("invalid accessor name %q", acc.name),
				})
			}
			if methodNames[acc.name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s", path, acc.label),
					Message: fmt.Sprintf("accessor %q collides with a declared method", acc.name),
				})
			}
			methodNames[acc.name] = true
		}
	}

	return errs
}
