package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check: every variant satisfies the sealed interface.
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
	var _ Value = Ref("0192d3e0-0000-7000-8000-000000000001")
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// RFC 8785 orders by UTF-16 code units: 'A' (65) sorts before
	// 'a' (97), and prefixes before extensions.
	obj := Object{
		"a":  Int(1),
		"A":  Int(2),
		"aa": Int(3),
		"aA": Int(4),
		"Aa": Int(5),
		"AA": Int(6),
	}

	expected := []string{"A", "AA", "Aa", "a", "aA", "aa"}
	assert.Equal(t, expected, obj.SortedKeys())
}

func TestUnmarshalValueRejectsFloat(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"count": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestUnmarshalValueRejectsNull(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"title": null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestUnmarshalValueAcceptsNested(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"name": "Will Robinson", "tags": ["robot", 3], "ok": true}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, String("Will Robinson"), obj["name"])
	assert.Equal(t, Array{String("robot"), Int(3)}, obj["tags"])
	assert.Equal(t, Bool(true), obj["ok"])
}

func TestUnmarshalValueExponentRejected(t *testing.T) {
	_, err := UnmarshalValue([]byte(`1e3`))
	require.Error(t, err)
}

func TestMarshalValueSortsObjectKeys(t *testing.T) {
	data, err := MarshalValue(Object{"b": Int(2), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))
}

func TestMarshalValueRef(t *testing.T) {
	data, err := MarshalValue(Ref("handle-1"))
	require.NoError(t, err)
	assert.Equal(t, `"handle-1"`, string(data))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(3), Int(3)))
	assert.False(t, Equal(Int(3), String("3")))
	assert.True(t, Equal(Null{}, Null{}))
	assert.True(t, Equal(
		Object{"a": Array{Int(1), Bool(false)}},
		Object{"a": Array{Int(1), Bool(false)}},
	))
	assert.False(t, Equal(
		Object{"a": Int(1)},
		Object{"a": Int(1), "b": Int(2)},
	))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(2)}))
	assert.True(t, Equal(Ref("x"), Ref("x")))
	assert.False(t, Equal(Ref("x"), String("x")))
}

func TestNewObjectFromPairs(t *testing.T) {
	obj := NewObjectFromPairs(P("name", String("cart")), P("count", Int(5)))
	assert.Equal(t, String("cart"), obj["name"])
	assert.Equal(t, Int(5), obj["count"])
}
