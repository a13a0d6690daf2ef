package compiler

import (
	"errors"
	"fmt"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwp0/Cor/internal/decl"
)

// stubFrame is a minimal decl.Frame for exercising compiled bodies
// without a runtime.
type stubFrame struct {
	class  string
	fields map[string]decl.Value
	nextFn func(args []decl.Value) (decl.Value, error)
}

func newStubFrame(class string) *stubFrame {
	return &stubFrame{class: class, fields: make(map[string]decl.Value)}
}

func (f *stubFrame) ClassName() string { return f.class }

func (f *stubFrame) Get(field string) (decl.Value, error) {
	v, ok := f.fields[field]
	if !ok {
		return nil, fmt.Errorf("field %q is not visible", field)
	}
	return v, nil
}

func (f *stubFrame) Set(field string, v decl.Value) error {
	f.fields[field] = v
	return nil
}

func (f *stubFrame) Call(method string, _ []decl.Value) (decl.Value, error) {
	return nil, fmt.Errorf("no method %q", method)
}

func (f *stubFrame) Next(args []decl.Value) (decl.Value, error) {
	if f.nextFn == nil {
		return nil, errors.New("nothing further down the dispatch list")
	}
	return f.nextFn(args)
}

func compileBodyString(t *testing.T, src string, params ...string) (decl.Body, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileBody(v, params)
}

func mustCompileBody(t *testing.T, src string, params ...string) decl.Body {
	t.Helper()
	body, err := compileBodyString(t, src, params...)
	require.NoError(t, err)
	return body
}

func TestCompileBodyConst(t *testing.T) {
	fr := newStubFrame("Animal")

	for src, want := range map[string]decl.Value{
		`{op: "const", value: "woof"}`:    decl.String("woof"),
		`{op: "const", value: 42}`:        decl.Int(42),
		`{op: "const", value: true}`:      decl.Bool(true),
		`{op: "const", value: null}`:      decl.Null{},
		`{op: "const", value: [1, "a"]}`:  decl.Array{decl.Int(1), decl.String("a")},
		`{op: "const", value: {legs: 4}}`: decl.Object{"legs": decl.Int(4)},
	} {
		body := mustCompileBody(t, src)
		got, err := body(fr, nil)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}
}

func TestCompileBodyArgByName(t *testing.T) {
	body := mustCompileBody(t, `{op: "arg", name: "greeting"}`, "greeting")

	got, err := body(newStubFrame("Animal"), []decl.Value{decl.String("hi")})
	require.NoError(t, err)
	assert.Equal(t, decl.String("hi"), got)
}

func TestCompileBodyArgByIndex(t *testing.T) {
	body := mustCompileBody(t, `{op: "arg", index: 1}`, "a", "b")

	got, err := body(newStubFrame("Animal"), []decl.Value{decl.Int(1), decl.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, decl.Int(2), got)
}

func TestCompileBodyArgUnknownName(t *testing.T) {
	_, err := compileBodyString(t, `{op: "arg", name: "ghost"}`, "greeting")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCompileBodyArgOutOfRange(t *testing.T) {
	body := mustCompileBody(t, `{op: "arg", index: 3}`)

	_, err := body(newStubFrame("Animal"), []decl.Value{decl.Int(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCompileBodyGetSet(t *testing.T) {
	fr := newStubFrame("Animal")
	set := mustCompileBody(t, `{op: "set", field: "name", value: {op: "arg", index: 0}}`)
	get := mustCompileBody(t, `{op: "get", field: "name"}`)

	stored, err := set(fr, []decl.Value{decl.String("Rex")})
	require.NoError(t, err)
	assert.Equal(t, decl.String("Rex"), stored)

	got, err := get(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("Rex"), got)
}

func TestCompileBodyIncDefaultsToOne(t *testing.T) {
	fr := newStubFrame("Counter")
	fr.fields["count"] = decl.Int(4)
	body := mustCompileBody(t, `{op: "inc", field: "count"}`)

	got, err := body(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.Int(5), got)
	assert.Equal(t, decl.Int(5), fr.fields["count"])
}

func TestCompileBodyIncBy(t *testing.T) {
	fr := newStubFrame("Counter")
	fr.fields["count"] = decl.Int(4)
	body := mustCompileBody(t, `{op: "inc", field: "count", by: -3}`)

	got, err := body(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.Int(1), got)
}

func TestCompileBodyIncTreatsNullAsZero(t *testing.T) {
	fr := newStubFrame("Counter")
	fr.fields["count"] = decl.Null{}
	body := mustCompileBody(t, `{op: "inc", field: "count"}`)

	got, err := body(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.Int(1), got)
}

func TestCompileBodyIncRejectsNonInt(t *testing.T) {
	fr := newStubFrame("Counter")
	fr.fields["count"] = decl.String("four")
	body := mustCompileBody(t, `{op: "inc", field: "count"}`)

	_, err := body(fr, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an int")
}

func TestCompileBodyConcat(t *testing.T) {
	fr := newStubFrame("Dog")
	fr.fields["name"] = decl.String("Rex")
	body := mustCompileBody(t, `{op: "concat", parts: [
		{op: "get", field: "name"},
		{op: "const", value: " has "},
		{op: "const", value: 4},
		{op: "const", value: " legs"},
	]}`)

	got, err := body(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("Rex has 4 legs"), got)
}

func TestCompileBodyConcatRejectsAggregates(t *testing.T) {
	fr := newStubFrame("Dog")
	body := mustCompileBody(t, `{op: "concat", parts: [{op: "const", value: [1]}]}`)

	_, err := body(fr, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concatenate")
}

func TestCompileBodySelf(t *testing.T) {
	body := mustCompileBody(t, `{op: "self"}`)

	got, err := body(newStubFrame("Zoo::Keeper"), nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("Zoo::Keeper"), got)
}

func TestCompileBodyNextForwardsArgs(t *testing.T) {
	fr := newStubFrame("Dog")
	var seen []decl.Value
	fr.nextFn = func(args []decl.Value) (decl.Value, error) {
		seen = args
		return decl.String("parent"), nil
	}
	body := mustCompileBody(t, `{op: "next"}`)

	got, err := body(fr, []decl.Value{decl.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, decl.String("parent"), got)
	assert.Equal(t, []decl.Value{decl.Int(7)}, seen)
}

func TestCompileBodyNextWithExplicitArgs(t *testing.T) {
	fr := newStubFrame("Dog")
	fr.fields["name"] = decl.String("Rex")
	var seen []decl.Value
	fr.nextFn = func(args []decl.Value) (decl.Value, error) {
		seen = args
		return decl.Null{}, nil
	}
	body := mustCompileBody(t, `{op: "next", args: [{op: "get", field: "name"}]}`)

	_, err := body(fr, []decl.Value{decl.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, []decl.Value{decl.String("Rex")}, seen)
}

func TestCompileBodySeq(t *testing.T) {
	fr := newStubFrame("Dog")
	body := mustCompileBody(t, `{op: "seq", steps: [
		{op: "set", field: "a", value: {op: "const", value: 1}},
		{op: "set", field: "b", value: {op: "const", value: 2}},
		{op: "const", value: "done"},
	]}`)

	got, err := body(fr, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.String("done"), got)
	assert.Equal(t, decl.Int(1), fr.fields["a"])
	assert.Equal(t, decl.Int(2), fr.fields["b"])
}

func TestCompileBodySeqEmptyIsNull(t *testing.T) {
	body := mustCompileBody(t, `{op: "seq", steps: []}`)

	got, err := body(newStubFrame("Dog"), nil)
	require.NoError(t, err)
	assert.Equal(t, decl.Null{}, got)
}

func TestCompileBodySeqStopsOnError(t *testing.T) {
	fr := newStubFrame("Dog")
	body := mustCompileBody(t, `{op: "seq", steps: [
		{op: "fail", message: "broken step"},
		{op: "set", field: "a", value: {op: "const", value: 1}},
	]}`)

	_, err := body(fr, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "broken step")
	assert.NotContains(t, fr.fields, "a")
}

func TestCompileBodyFail(t *testing.T) {
	body := mustCompileBody(t, `{op: "fail", message: "not today"}`)

	_, err := body(newStubFrame("Dog"), nil)
	require.EqualError(t, err, "not today")
}

func TestCompileBodyUnknownOp(t *testing.T) {
	_, err := compileBodyString(t, `{op: "teleport"}`)

	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "body.op", compileErr.Field)
	assert.Contains(t, compileErr.Message, "teleport")
}

func TestCompileBodyMissingOp(t *testing.T) {
	_, err := compileBodyString(t, `{field: "name"}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "op is required")
}

func TestCompileBodyRejectsFloatConst(t *testing.T) {
	_, err := compileBodyString(t, `{op: "const", value: 3.14}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestCompileBodyNestedTree(t *testing.T) {
	// A describe-style body: remember the greeting, then splice the
	// parent's answer into a longer string.
	fr := newStubFrame("Dog")
	fr.fields["heard"] = decl.Null{}
	fr.nextFn = func([]decl.Value) (decl.Value, error) {
		return decl.String("an animal"), nil
	}
	body := mustCompileBody(t, `{op: "seq", steps: [
		{op: "set", field: "heard", value: {op: "arg", name: "greeting"}},
		{op: "concat", parts: [
			{op: "self"},
			{op: "const", value: " is "},
			{op: "next", args: []},
		]},
	]}`, "greeting")

	got, err := body(fr, []decl.Value{decl.String("hello")})
	require.NoError(t, err)
	assert.Equal(t, decl.String("Dog is an animal"), got)
	assert.Equal(t, decl.String("hello"), fr.fields["heard"])
}
