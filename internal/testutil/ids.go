package testutil

import (
	"fmt"
	"sync"
)

// SequentialHandleIDs generates handle ids h-000001, h-000002, ... in
// order.
//
// This enables deterministic scenario execution and golden snapshot
// comparison: the same scenario with a fresh SequentialHandleIDs
// produces byte-identical traces.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type SequentialHandleIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialHandleIDs creates a generator with the given prefix. An
// empty prefix defaults to "h".
func NewSequentialHandleIDs(prefix string) *SequentialHandleIDs {
	if prefix == "" {
		prefix = "h"
	}
	return &SequentialHandleIDs{prefix: prefix}
}

// Generate returns the next id in sequence.
//
// Implements object.IDGenerator.
func (g *SequentialHandleIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// FixedHandleIDs returns a preset list of handle ids in order and
// panics when the list runs out.
//
// The panic is intentional: a test that constructs more instances than
// it budgeted ids for is a broken test, and failing loudly beats
// silently reusing ids.
type FixedHandleIDs struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedHandleIDs creates a generator that yields ids in order.
func NewFixedHandleIDs(ids ...string) *FixedHandleIDs {
	return &FixedHandleIDs{ids: ids}
}

// Generate returns the next preset id.
//
// Implements object.IDGenerator. Panics when exhausted.
func (g *FixedHandleIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.ids) {
		panic(fmt.Sprintf("testutil: FixedHandleIDs exhausted after %d id(s)", len(g.ids)))
	}
	id := g.ids[g.next]
	g.next++
	return id
}
