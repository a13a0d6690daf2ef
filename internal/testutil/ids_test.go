package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialHandleIDs_Order(t *testing.T) {
	gen := NewSequentialHandleIDs("h")

	assert.Equal(t, "h-000001", gen.Generate())
	assert.Equal(t, "h-000002", gen.Generate())
	assert.Equal(t, "h-000003", gen.Generate())
}

func TestSequentialHandleIDs_DefaultPrefix(t *testing.T) {
	gen := NewSequentialHandleIDs("")
	assert.Equal(t, "h-000001", gen.Generate())
}

func TestSequentialHandleIDs_CustomPrefix(t *testing.T) {
	gen := NewSequentialHandleIDs("robot")
	assert.Equal(t, "robot-000001", gen.Generate())
}

func TestFixedHandleIDs_YieldsInOrder(t *testing.T) {
	gen := NewFixedHandleIDs("a", "b")

	require.Equal(t, "a", gen.Generate())
	require.Equal(t, "b", gen.Generate())
}

func TestFixedHandleIDs_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedHandleIDs("only")
	gen.Generate()

	assert.Panics(t, func() { gen.Generate() })
}
