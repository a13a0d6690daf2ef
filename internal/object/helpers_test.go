package object

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/testutil"
)

// newTestRuntime builds a runtime with a deterministic clock and
// sequential handle ids so assertions on events and ids are stable.
func newTestRuntime(opts ...Option) *Runtime {
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithHandleIDs(testutil.NewSequentialHandleIDs("h")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func mustRegisterClass(t *testing.T, rt *Runtime, d *decl.ClassDecl) {
	t.Helper()
	require.NoError(t, rt.RegisterClass(d))
}

func mustRegisterRole(t *testing.T, rt *Runtime, d *decl.RoleDecl) {
	t.Helper()
	require.NoError(t, rt.RegisterRole(d))
}

// constBody returns v on every invocation.
func constBody(v decl.Value) decl.Body {
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		return v, nil
	}
}

// readField is an arity-0 body reading one of the declarer's fields.
func readField(name string) decl.Body {
	return func(fr decl.Frame, args []decl.Value) (decl.Value, error) {
		return fr.Get(name)
	}
}

func nullHook(fr decl.Frame) error { return nil }

func strDefault(s string) decl.DefaultThunk {
	return func() (decl.Value, error) { return decl.String(s), nil }
}

func intDefault(n int64) decl.DefaultThunk {
	return func() (decl.Value, error) { return decl.Int(n), nil }
}

// bumpShared adds delta to the declarer's shared counter field.
func bumpShared(field string, delta int64) decl.HookBody {
	return func(fr decl.Frame) error {
		v, err := fr.Get(field)
		if err != nil {
			return err
		}
		n, ok := v.(decl.Int)
		if !ok {
			n = 0
		}
		return fr.Set(field, decl.Int(int64(n)+delta))
	}
}

// appendMark records hook execution order into out.
func appendMark(out *[]string, mark string) decl.HookBody {
	return func(fr decl.Frame) error {
		*out = append(*out, mark)
		return nil
	}
}

// scalarField builds a plain field that is not a constructor parameter.
func scalarField(name string, def decl.DefaultThunk) decl.FieldDecl {
	return decl.FieldDecl{
		Name:    name,
		Scope:   decl.ScopeInstance,
		Policy:  decl.ParamNone,
		Kind:    decl.KindScalar,
		Default: def,
	}
}

// requiredParam builds a required constructor-parameter field with a
// same-named reader.
func requiredParam(name string) decl.FieldDecl {
	return decl.FieldDecl{
		Name:   name,
		Scope:  decl.ScopeInstance,
		Policy: decl.ParamRequired,
		Kind:   decl.KindScalar,
		Reader: name,
	}
}

// optionalParam builds an optional constructor-parameter field with a
// default and a same-named reader.
func optionalParam(name string, def decl.DefaultThunk) decl.FieldDecl {
	return decl.FieldDecl{
		Name:    name,
		Scope:   decl.ScopeInstance,
		Policy:  decl.ParamOptional,
		Kind:    decl.KindScalar,
		Default: def,
		Reader:  name,
	}
}

// sharedCounter builds a shared scalar counter with a reader.
func sharedCounter(name string) decl.FieldDecl {
	return decl.FieldDecl{
		Name:    name,
		Scope:   decl.ScopeShared,
		Policy:  decl.ParamNone,
		Kind:    decl.KindScalar,
		Default: intDefault(0),
		Reader:  name,
	}
}

// method builds an instance-scoped method declaration.
func method(name string, arity int, body decl.Body) decl.MethodDecl {
	return decl.MethodDecl{Name: name, Arity: arity, Scope: decl.DispatchInstance, Body: body}
}

// classMethod builds a class-scoped method declaration.
func classMethod(name string, arity int, body decl.Body) decl.MethodDecl {
	return decl.MethodDecl{Name: name, Arity: arity, Scope: decl.DispatchClass, Body: body}
}

// overriding marks a method declaration as overriding a parent target.
func overriding(m decl.MethodDecl) decl.MethodDecl {
	m.Overrides = true
	return m
}

func adjustHook(body decl.HookBody) decl.HookDecl {
	return decl.HookDecl{Kind: decl.HookAdjust, Body: body}
}

func destructHook(body decl.HookBody) decl.HookDecl {
	return decl.HookDecl{Kind: decl.HookDestruct, Body: body}
}
