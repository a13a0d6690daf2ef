package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwp0/Cor/internal/decl"
)

// registerSpeakers registers Animal with a speak method and Dog
// overriding it, Dog's body delegating upward once.
func registerSpeakers(t *testing.T, rt *Runtime) {
	t.Helper()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Animal",
		Methods: []decl.MethodDecl{method("speak", 0, constBody(decl.String("...")))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "Dog",
		Parent: &decl.ParentRef{Name: "Animal"},
		Methods: []decl.MethodDecl{overriding(decl.MethodDecl{
			Name:  "speak",
			Arity: 0,
			Scope: decl.DispatchInstance,
			Body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
				parent, err := fr.Next(nil)
				if err != nil {
					return nil, err
				}
				return decl.String("woof " + string(parent.(decl.String))), nil
			},
		})},
	})
}

// TestInvoke_OwnMethod tests plain dispatch of a class's own method.
func TestInvoke_OwnMethod(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Methods: []decl.MethodDecl{method("speak", 0, constBody(decl.String("beep")))},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "speak", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("beep"), out)
}

// TestInvoke_InheritedMethod tests that an ancestor's implementation
// serves subclass instances.
func TestInvoke_InheritedMethod(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Animal",
		Methods: []decl.MethodDecl{method("breathe", 0, constBody(decl.Bool(true)))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{Name: "Dog", Parent: &decl.ParentRef{Name: "Animal"}})

	h, err := rt.Instantiate("Dog", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "breathe", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.Bool(true), out)
}

// TestInvoke_MethodNotFound tests the failure for an unresolved name.
func TestInvoke_MethodNotFound(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{Name: "Robot"})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "fly", nil)
	require.Error(t, err)
	assert.True(t, IsMethodNotFound(err))
}

// TestInvoke_NextReachesParent tests that one Next observes the
// immediate parent's result.
func TestInvoke_NextReachesParent(t *testing.T) {
	rt := newTestRuntime()
	registerSpeakers(t, rt)

	h, err := rt.Instantiate("Dog", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "speak", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("woof ..."), out)
}

// TestInvoke_SecondNextFails tests that a second Next in the same call
// walks off a two-entry dispatch list.
func TestInvoke_SecondNextFails(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Animal",
		Methods: []decl.MethodDecl{method("speak", 0, constBody(decl.String("...")))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "Dog",
		Parent: &decl.ParentRef{Name: "Animal"},
		Methods: []decl.MethodDecl{overriding(decl.MethodDecl{
			Name:  "speak",
			Arity: 0,
			Scope: decl.DispatchInstance,
			Body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
				if _, err := fr.Next(nil); err != nil {
					return nil, err
				}
				return fr.Next(nil)
			},
		})},
	})

	h, err := rt.Instantiate("Dog", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "speak", nil)
	require.Error(t, err)
	assert.True(t, IsNoNextMethod(err))
}

// TestInvoke_CursorSharedAcrossBodies tests that Next advances one
// shared cursor: after a middle implementation has consumed the root,
// the innermost body's second Next finds nothing.
func TestInvoke_CursorSharedAcrossBodies(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "A",
		Methods: []decl.MethodDecl{method("m", 0, constBody(decl.String("a")))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "B",
		Parent: &decl.ParentRef{Name: "A"},
		Methods: []decl.MethodDecl{overriding(decl.MethodDecl{
			Name:  "m",
			Arity: 0,
			Scope: decl.DispatchInstance,
			Body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
				return fr.Next(nil)
			},
		})},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "C",
		Parent: &decl.ParentRef{Name: "B"},
		Methods: []decl.MethodDecl{overriding(decl.MethodDecl{
			Name:  "m",
			Arity: 0,
			Scope: decl.DispatchInstance,
			Body: func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
				first, err := fr.Next(nil)
				if err != nil {
					return nil, err
				}
				// B's body already consumed A's entry.
				if _, err := fr.Next(nil); err != nil {
					return first, err
				}
				return nil, nil
			},
		})},
	})

	h, err := rt.Instantiate("C", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "m", nil)
	require.Error(t, err)
	assert.True(t, IsNoNextMethod(err))
}

// TestInvoke_ClassMethodOnClassTarget tests class-scoped dispatch on
// the class itself.
func TestInvoke_ClassMethodOnClassTarget(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Methods: []decl.MethodDecl{classMethod("kind", 0, constBody(decl.String("machine")))},
	})

	target, err := rt.TargetClass("Robot")
	require.NoError(t, err)

	out, err := rt.Invoke(target, "kind", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("machine"), out)
}

// TestInvoke_ClassMethodOnInstance tests that class-scoped methods are
// callable through instances too.
func TestInvoke_ClassMethodOnInstance(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Methods: []decl.MethodDecl{classMethod("kind", 0, constBody(decl.String("machine")))},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "kind", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("machine"), out)
}

// TestInvoke_InstanceMethodOnClassTarget tests the scope asymmetry:
// instance methods never run against a bare class.
func TestInvoke_InstanceMethodOnClassTarget(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Methods: []decl.MethodDecl{method("speak", 0, constBody(decl.String("beep")))},
	})

	target, err := rt.TargetClass("Robot")
	require.NoError(t, err)

	_, err = rt.Invoke(target, "speak", nil)
	require.Error(t, err)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeInstanceMethodOnClass, de.Code)
}

// TestInvoke_ClassBodyCannotSeeInstanceFields tests that class-scoped
// bodies resolve no instance slots even when invoked via an instance.
func TestInvoke_ClassBodyCannotSeeInstanceFields(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Fields:  []decl.FieldDecl{scalarField("name", strDefault("unit"))},
		Methods: []decl.MethodDecl{classMethod("leak", 0, readField("name"))},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "leak", nil)
	assert.Error(t, err)
}

// TestInvoke_ArityMismatch tests the argument count check.
func TestInvoke_ArityMismatch(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name: "Robot",
		Methods: []decl.MethodDecl{method("echo", 1, func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
			return args[0], nil
		})},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "echo", nil)
	require.Error(t, err)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeArityMismatch, de.Code)

	out, err := rt.Invoke(h, "echo", []decl.Value{decl.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, decl.Int(7), out)
}

// TestInvoke_ReleasedHandle tests that a released handle dispatches
// nothing.
func TestInvoke_ReleasedHandle(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Robot",
		Methods: []decl.MethodDecl{method("speak", 0, constBody(decl.String("beep")))},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)
	require.NoError(t, rt.Release(h))

	_, err = rt.Invoke(h, "speak", nil)
	require.Error(t, err)
	assert.True(t, IsInstanceReleased(err))
}

// TestInvoke_Accessors tests generated reader and writer round trips.
func TestInvoke_Accessors(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name: "Robot",
		Fields: []decl.FieldDecl{{
			Name:    "name",
			Scope:   decl.ScopeInstance,
			Policy:  decl.ParamOptional,
			Kind:    decl.KindScalar,
			Default: strDefault("unit"),
			Reader:  "name",
			Writer:  "set_name",
		}},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "name", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("unit"), out)

	out, err = rt.Invoke(h, "set_name", []decl.Value{decl.String("R2")})
	require.NoError(t, err)
	assert.Equal(t, decl.String("R2"), out)

	out, err = rt.Invoke(h, "name", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("R2"), out)
}

// TestInvoke_FieldScopingByDeclarer tests that an inherited body keeps
// seeing its declarer's slot when a subclass reuses the field name.
func TestInvoke_FieldScopingByDeclarer(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Animal",
		Fields:  []decl.FieldDecl{scalarField("state", strDefault("wild"))},
		Methods: []decl.MethodDecl{method("animal_state", 0, readField("state"))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:    "Dog",
		Parent:  &decl.ParentRef{Name: "Animal"},
		Fields:  []decl.FieldDecl{scalarField("state", strDefault("tame"))},
		Methods: []decl.MethodDecl{method("dog_state", 0, readField("state"))},
	})

	h, err := rt.Instantiate("Dog", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "animal_state", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("wild"), out)

	out, err = rt.Invoke(h, "dog_state", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("tame"), out)
}

// TestInvoke_CallSiblingMethod tests body-to-body dispatch on the same
// receiver.
func TestInvoke_CallSiblingMethod(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "Robot",
		Fields: []decl.FieldDecl{scalarField("name", strDefault("unit"))},
		Methods: []decl.MethodDecl{
			method("name", 0, readField("name")),
			method("greet", 0, func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
				name, err := fr.Call("name", nil)
				if err != nil {
					return nil, err
				}
				return decl.String("hello " + string(name.(decl.String))), nil
			}),
		},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("hello unit"), out)
}

// TestInvoke_DepthGuard tests that unbounded mutual recursion between
// bodies hits the depth limit instead of the goroutine stack.
func TestInvoke_DepthGuard(t *testing.T) {
	rt := newTestRuntime(WithMaxDepth(16))
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name: "Loop",
		Methods: []decl.MethodDecl{method("boom", 0, func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
			return fr.Call("boom", nil)
		})},
	})

	h, err := rt.Instantiate("Loop", nil)
	require.NoError(t, err)

	_, err = rt.Invoke(h, "boom", nil)
	require.Error(t, err)
	assert.True(t, IsDepthError(err))

	var de *DepthError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 16, de.Limit)
	assert.Equal(t, "boom", de.Method)
}

// TestInvoke_NewOnClassReturnsRef tests the reserved constructor
// member through normal dispatch.
func TestInvoke_NewOnClassReturnsRef(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "Robot",
		Fields: []decl.FieldDecl{requiredParam("name")},
	})

	target, err := rt.TargetClass("Robot")
	require.NoError(t, err)

	out, err := rt.Invoke(target, "new", []decl.Value{decl.String("name"), decl.String("R2")})
	require.NoError(t, err)

	ref, ok := out.(decl.Ref)
	require.True(t, ok)

	h, err := rt.Deref(ref)
	require.NoError(t, err)
	assert.Equal(t, "Robot", h.ClassName())

	got, err := rt.Invoke(h, "name", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("R2"), got)
}

// TestInvoke_NewOnInstance tests that new through an instance builds a
// fresh instance of the same class.
func TestInvoke_NewOnInstance(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:   "Robot",
		Fields: []decl.FieldDecl{requiredParam("name")},
	})

	first, err := rt.Instantiate("Robot", []decl.Value{decl.String("name"), decl.String("R2")})
	require.NoError(t, err)

	out, err := rt.Invoke(first, "new", []decl.Value{decl.String("name"), decl.String("C3")})
	require.NoError(t, err)

	ref := out.(decl.Ref)
	second, err := rt.Deref(ref)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	got, err := rt.Invoke(second, "name", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("C3"), got)
}

// TestInvoke_NewOnAbstractClass tests that dispatching new still runs
// the abstract check.
func TestInvoke_NewOnAbstractClass(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterClass(t, rt, &decl.ClassDecl{Name: "Shape", Abstract: true})

	target, err := rt.TargetClass("Shape")
	require.NoError(t, err)

	_, err = rt.Invoke(target, "new", nil)
	require.Error(t, err)
	assert.True(t, IsAbstractInstantiation(err))
}

// TestInvoke_RoleMethodOnInstance tests dispatch into a composed
// role's implementation.
func TestInvoke_RoleMethodOnInstance(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterRole(t, rt, &decl.RoleDecl{
		Name:    "Greeter",
		Methods: []decl.MethodDecl{method("greet", 0, constBody(decl.String("hi")))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{Name: "Robot", Roles: []string{"Greeter"}})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("hi"), out)
}

// TestInvoke_OwnBeatsRoleThenNextReachesIt tests precedence between
// the class's own implementation and a composed role's, with Next
// stepping from the former to the latter.
func TestInvoke_OwnBeatsRoleThenNextReachesIt(t *testing.T) {
	rt := newTestRuntime()
	mustRegisterRole(t, rt, &decl.RoleDecl{
		Name:    "Greeter",
		Methods: []decl.MethodDecl{method("greet", 0, constBody(decl.String("role")))},
	})
	mustRegisterClass(t, rt, &decl.ClassDecl{
		Name:  "Robot",
		Roles: []string{"Greeter"},
		Methods: []decl.MethodDecl{method("greet", 0, func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
			inner, err := fr.Next(nil)
			if err != nil {
				return nil, err
			}
			return decl.String("own+" + string(inner.(decl.String))), nil
		})},
	})

	h, err := rt.Instantiate("Robot", nil)
	require.NoError(t, err)

	out, err := rt.Invoke(h, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("own+role"), out)
}
