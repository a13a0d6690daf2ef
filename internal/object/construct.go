package object

import (
	"fmt"

	"github.com/rwp0/Cor/internal/decl"
)

// Instantiate constructs an instance of the highest registered version
// of className and returns its first owning handle.
func (rt *Runtime) Instantiate(className string, argPairs []decl.Value) (*Handle, error) {
	cls, err := rt.registry.resolve(className, nil)
	if err != nil {
		return nil, err
	}
	return rt.construct(cls, argPairs)
}

// construct runs the construction protocol against a linearized class.
// Field resolution across the whole ancestor chain completes before
// the first adjust hook runs, so a failed construction never has to
// roll shared state back.
func (rt *Runtime) construct(cls *Class, argPairs []decl.Value) (*Handle, error) {
	if cls.abstract {
		return nil, &ConstructionError{
			Code:    ErrCodeAbstractInstantiation,
			Message: "abstract classes cannot be instantiated",
			Class:   cls.name,
		}
	}
	argv, order, err := parseArgPairs(cls.name, argPairs)
	if err != nil {
		return nil, err
	}
	if _, ok := cls.methods[decl.MethodBuildArgs]; ok {
		if argv, order, err = rt.transformArgs(cls, argPairs); err != nil {
			return nil, err
		}
	}
	slots, consumed, err := resolveFields(cls, argv)
	if err != nil {
		return nil, err
	}
	for _, k := range order {
		if consumed[k] {
			continue
		}
		return nil, &ConstructionError{
			Code:    ErrCodeUnexpectedConstructorArgument,
			Message: fmt.Sprintf("%q does not name a constructor parameter", k),
			Class:   cls.name,
			Field:   k,
		}
	}

	inst := &instance{class: cls, slots: slots, refs: 1}
	id := rt.ids.Generate()
	rt.emit(Event{Kind: EventInstantiate, Class: cls.name, Handle: id})
	for _, hk := range cls.adjust {
		rt.emit(Event{Kind: EventAdjust, Class: cls.name, Owner: hk.owner, Handle: id})
		if err := hk.body(rt.hookFrame(cls, inst, hk.owner)); err != nil {
			rt.emit(Event{Kind: EventAbort, Class: cls.name, Handle: id})
			return nil, &ConstructionError{
				Code:    ErrCodeAdjustFailed,
				Message: fmt.Sprintf("adjust hook declared by %q failed", hk.owner),
				Class:   cls.name,
				Cause:   err,
			}
		}
	}

	h := &Handle{id: id, inst: inst}
	inst.trackID(id)
	rt.addHandle(h)
	return h, nil
}

// transformArgs routes the raw argument list through the class's
// argument-transform method and revalidates whatever comes back.
func (rt *Runtime) transformArgs(cls *Class, argPairs []decl.Value) (map[string]decl.Value, []string, error) {
	rt.emit(Event{Kind: EventInvoke, Class: cls.name, Method: decl.MethodBuildArgs})
	out, err := rt.invokeOn(cls, nil, decl.MethodBuildArgs, []decl.Value{decl.Array(argPairs)}, newDepthGuard(rt.maxDepth))
	if err != nil {
		return nil, nil, &ConstructionError{
			Code:    ErrCodeInvalidConstructorArguments,
			Message: "argument transform failed",
			Class:   cls.name,
			Cause:   err,
		}
	}
	arr, ok := out.(decl.Array)
	if !ok {
		return nil, nil, &ConstructionError{
			Code:    ErrCodeInvalidConstructorArguments,
			Message: "argument transform must return a key/value sequence",
			Class:   cls.name,
		}
	}
	return parseArgPairs(cls.name, []decl.Value(arr))
}

// parseArgPairs checks the flat key/value shape of a constructor
// argument list and indexes it by key, preserving first-seen order.
func parseArgPairs(class string, argPairs []decl.Value) (map[string]decl.Value, []string, error) {
	if len(argPairs) == 1 {
		switch argPairs[0].(type) {
		case decl.Array, decl.Object:
			return nil, nil, &ConstructionError{
				Code:    ErrCodeInvalidConstructorArguments,
				Message: "constructor takes a flat key/value sequence, not a single aggregate",
				Class:   class,
			}
		}
	}
	if len(argPairs)%2 != 0 {
		return nil, nil, &ConstructionError{
			Code:    ErrCodeInvalidConstructorArguments,
			Message: fmt.Sprintf("constructor takes key/value pairs, got %d value(s)", len(argPairs)),
			Class:   class,
		}
	}
	argv := make(map[string]decl.Value, len(argPairs)/2)
	order := make([]string, 0, len(argPairs)/2)
	for i := 0; i < len(argPairs); i += 2 {
		key, ok := argPairs[i].(decl.String)
		if !ok {
			return nil, nil, &ConstructionError{
				Code:    ErrCodeInvalidConstructorArguments,
				Message: fmt.Sprintf("constructor key at position %d is not a string", i),
				Class:   class,
			}
		}
		name := string(key)
		if _, dup := argv[name]; dup {
			return nil, nil, &ConstructionError{
				Code:    ErrCodeDuplicateConstructorArgument,
				Message: fmt.Sprintf("constructor key %q appears more than once", name),
				Class:   class,
				Field:   name,
			}
		}
		argv[name] = argPairs[i+1]
		order = append(order, name)
	}
	return argv, order, nil
}

// resolveFields walks the flattened slot table inherited-first and
// fills the slot array. Every validation failure surfaces here, before
// any hook can observe the instance.
func resolveFields(cls *Class, argv map[string]decl.Value) ([]decl.Value, map[string]bool, error) {
	slots := make([]decl.Value, len(cls.slots))
	consumed := make(map[string]bool, len(argv))
	for _, s := range cls.slots {
		f := s.field
		switch f.Policy {
		case decl.ParamRequired:
			v, ok := argv[f.Name]
			if !ok {
				return nil, nil, &ConstructionError{
					Code:    ErrCodeMissingRequiredField,
					Message: fmt.Sprintf("required field %q was not supplied", f.Name),
					Class:   cls.name,
					Field:   f.Name,
				}
			}
			slots[s.index] = v
			consumed[f.Name] = true
		case decl.ParamOptional:
			if v, ok := argv[f.Name]; ok {
				slots[s.index] = v
				consumed[f.Name] = true
				continue
			}
			v, err := defaultValue(cls.name, f)
			if err != nil {
				return nil, nil, err
			}
			slots[s.index] = v
		default:
			if _, present := argv[f.Name]; present {
				// The key is only an error when no parameter field
				// anywhere in the table claims it.
				if _, isParam := cls.params[f.Name]; !isParam {
					return nil, nil, &ConstructionError{
						Code:    ErrCodeUnexpectedConstructorArgument,
						Message: fmt.Sprintf("field %q is not a constructor parameter", f.Name),
						Class:   cls.name,
						Field:   f.Name,
					}
				}
			}
			v, err := defaultValue(cls.name, f)
			if err != nil {
				return nil, nil, err
			}
			slots[s.index] = v
		}
	}
	return slots, consumed, nil
}

// defaultValue evaluates a field's default thunk, falling back to the
// empty value for the field's container kind.
func defaultValue(class string, f decl.FieldDecl) (decl.Value, error) {
	if f.Default != nil {
		v, err := f.Default()
		if err != nil {
			return nil, fmt.Errorf("class %q: default for field %q: %w", class, f.Name, err)
		}
		if v == nil {
			v = decl.Null{}
		}
		return v, nil
	}
	if f.Kind == decl.KindSequence {
		return decl.Array{}, nil
	}
	return decl.Null{}, nil
}
