package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/rwp0/Cor/internal/decl"
)

// CompileClass parses a CUE value into a class declaration.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the class struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`class: Animal: { ... }`)
//	d, err := CompileClass(v.LookupPath(cue.ParsePath("class.Animal")))
//
// The returned declaration is not yet validated against structural
// rules; registration runs decl.Validate and rejects what it finds.
func CompileClass(v cue.Value) (*decl.ClassDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &decl.ClassDecl{Name: declName(v)}

	// Parse version (optional, unversioned registers as 0.0.0)
	versionVal := v.LookupPath(cue.ParsePath("version"))
	if versionVal.Exists() {
		version, err := versionVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		d.Version = version
	}

	// Parse abstract marker (optional)
	abstractVal := v.LookupPath(cue.ParsePath("abstract"))
	if abstractVal.Exists() {
		abstract, err := abstractVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		d.Abstract = abstract
	}

	// Parse parent reference (optional) - a class name or {class, min}
	isaVal := v.LookupPath(cue.ParsePath("isa"))
	if isaVal.Exists() {
		parent, err := parseParent(isaVal)
		if err != nil {
			return nil, err
		}
		d.Parent = parent
	}

	// Parse consumed roles (optional), kept in declaration order
	doesVal := v.LookupPath(cue.ParsePath("does"))
	if doesVal.Exists() {
		roles, err := parseRoleRefs(doesVal)
		if err != nil {
			return nil, err
		}
		d.Roles = roles
	}

	var err error
	d.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	d.Methods, err = parseMethods(v)
	if err != nil {
		return nil, err
	}
	d.Hooks, err = parseHooks(v)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// parseParent parses an isa clause. Supports:
// - Single string: "Animal"
// - Object with minimum version: { class: "Animal", min: "1.2.0" }
func parseParent(v cue.Value) (*decl.ParentRef, error) {
	// Try as string first (no version constraint)
	if name, err := v.String(); err == nil {
		return &decl.ParentRef{Name: name}, nil
	}

	classVal := v.LookupPath(cue.ParsePath("class"))
	if !classVal.Exists() {
		return nil, &CompileError{
			Field:   "isa",
			Message: "must be a class name or an object with class field",
			Pos:     v.Pos(),
		}
	}
	name, err := classVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	ref := &decl.ParentRef{Name: name}

	minVal := v.LookupPath(cue.ParsePath("min"))
	if minVal.Exists() {
		min, err := minVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref.MinVersion = min
	}

	return ref, nil
}

// parseRoleRefs parses a does clause: a list of role names.
func parseRoleRefs(v cue.Value) ([]string, error) {
	var roles []string

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		role, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		roles = append(roles, role)
	}

	return roles, nil
}

// parseFields extracts field declarations, in declaration order.
func parseFields(v cue.Value) ([]decl.FieldDecl, error) {
	var fields []decl.FieldDecl

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return fields, nil // fields are optional
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		field, err := parseField(labelOf(iter.Selector()), iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	return fields, nil
}

// parseField parses one field struct. Absent attributes fall back to
// the quiet defaults: instance scope, scalar, not a parameter.
func parseField(name string, v cue.Value) (decl.FieldDecl, error) {
	field := decl.FieldDecl{
		Name:   name,
		Scope:  decl.ScopeInstance,
		Policy: decl.ParamNone,
		Kind:   decl.KindScalar,
	}

	sharedVal := v.LookupPath(cue.ParsePath("shared"))
	if sharedVal.Exists() {
		shared, err := sharedVal.Bool()
		if err != nil {
			return field, formatCUEError(err)
		}
		if shared {
			field.Scope = decl.ScopeShared
		}
	}

	seqVal := v.LookupPath(cue.ParsePath("sequence"))
	if seqVal.Exists() {
		seq, err := seqVal.Bool()
		if err != nil {
			return field, formatCUEError(err)
		}
		if seq {
			field.Kind = decl.KindSequence
		}
	}

	paramVal := v.LookupPath(cue.ParsePath("param"))
	if paramVal.Exists() {
		param, err := paramVal.String()
		if err != nil {
			return field, formatCUEError(err)
		}
		switch param {
		case "required":
			field.Policy = decl.ParamRequired
		case "optional":
			field.Policy = decl.ParamOptional
		default:
			return field, &CompileError{
				Field:   fmt.Sprintf("fields.%s.param", name),
				Message: fmt.Sprintf("invalid param policy %q, must be \"required\" or \"optional\"", param),
				Pos:     paramVal.Pos(),
			}
		}
	}

	defVal := v.LookupPath(cue.ParsePath("default"))
	if defVal.Exists() {
		dv, err := decodeValue(defVal)
		if err != nil {
			return field, err
		}
		field.Default = func() (decl.Value, error) { return dv, nil }
	}

	var err error
	field.Reader, err = accessorName(v, "reader", name)
	if err != nil {
		return field, err
	}
	field.Writer, err = accessorName(v, "writer", "set_"+name)
	if err != nil {
		return field, err
	}

	return field, nil
}

// accessorName parses a reader/writer attribute. Supports:
// - true: generate the accessor under its conventional name
// - false or absent: no accessor
// - string: generate the accessor under an explicit name
func accessorName(v cue.Value, key, fallback string) (string, error) {
	accVal := v.LookupPath(cue.ParsePath(key))
	if !accVal.Exists() {
		return "", nil
	}

	if enabled, err := accVal.Bool(); err == nil {
		if enabled {
			return fallback, nil
		}
		return "", nil
	}

	name, err := accVal.String()
	if err != nil {
		return "", &CompileError{
			Field:   key,
			Message: "must be a bool or an accessor name",
			Pos:     accVal.Pos(),
		}
	}
	return name, nil
}

// parseMethods extracts method declarations, in declaration order.
func parseMethods(v cue.Value) ([]decl.MethodDecl, error) {
	var methods []decl.MethodDecl

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if !methodsVal.Exists() {
		return methods, nil
	}

	iter, err := methodsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		m, err := parseMethod(labelOf(iter.Selector()), iter.Value())
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	return methods, nil
}

// parseMethod parses one method struct. Arity is the length of the
// args list; the named args are how the body references them.
func parseMethod(name string, v cue.Value) (decl.MethodDecl, error) {
	m := decl.MethodDecl{Name: name, Scope: decl.DispatchInstance}

	var params []string
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		iter, err := argsVal.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for iter.Next() {
			arg, err := iter.Value().String()
			if err != nil {
				return m, formatCUEError(err)
			}
			params = append(params, arg)
		}
	}
	m.Arity = len(params)

	classVal := v.LookupPath(cue.ParsePath("class"))
	if classVal.Exists() {
		classScoped, err := classVal.Bool()
		if err != nil {
			return m, formatCUEError(err)
		}
		if classScoped {
			m.Scope = decl.DispatchClass
		}
	}

	overridesVal := v.LookupPath(cue.ParsePath("overrides"))
	if overridesVal.Exists() {
		overrides, err := overridesVal.Bool()
		if err != nil {
			return m, formatCUEError(err)
		}
		m.Overrides = overrides
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return m, &CompileError{
			Field:   fmt.Sprintf("methods.%s.body", name),
			Message: "method body is required",
			Pos:     v.Pos(),
		}
	}
	body, err := CompileBody(bodyVal, params)
	if err != nil {
		return m, err
	}
	m.Body = body

	return m, nil
}

// parseHooks extracts lifecycle hooks. The hooks struct groups op
// trees by kind; order within each list is the declaration order the
// runtime fires them in.
func parseHooks(v cue.Value) ([]decl.HookDecl, error) {
	var hooks []decl.HookDecl

	hooksVal := v.LookupPath(cue.ParsePath("hooks"))
	if !hooksVal.Exists() {
		return hooks, nil
	}

	for _, kind := range []decl.HookKind{decl.HookAdjust, decl.HookDestruct} {
		listVal := hooksVal.LookupPath(cue.ParsePath(string(kind)))
		if !listVal.Exists() {
			continue
		}
		iter, err := listVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			body, err := compileHookBody(iter.Value())
			if err != nil {
				return nil, err
			}
			hooks = append(hooks, decl.HookDecl{Kind: kind, Body: body})
		}
	}

	return hooks, nil
}

// declName extracts the declaration name from the struct label (the
// path selector).
func declName(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return labelOf(sels[len(sels)-1])
}

// labelOf returns the unquoted field label. Namespaced names like
// "Zoo::Keeper" must be quoted in CUE source, and String() would keep
// the quotes.
func labelOf(sel cue.Selector) string {
	if sel.IsString() {
		return sel.Unquoted()
	}
	return sel.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
