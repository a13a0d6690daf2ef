// Package harness executes YAML conformance scenarios against a real
// runtime.
//
// A scenario names a directory of CUE declarations, a sequence of
// lifecycle steps, and assertions over the resulting event trace and
// final shared state:
//
//	name: counter-lifecycle
//	decls: decls/counter
//	steps:
//	  - register: [Counter]
//	  - instantiate: {class: Counter, as: c1}
//	  - invoke: {on: class, class: Counter, method: live, expect: {int: 1}}
//	  - release: c1
//	  - invoke: {on: c1, method: live, expect_error: INSTANCE_RELEASED}
//	assertions:
//	  - trace_order: [instantiate, adjust, release, destruct]
//	  - shared_state: {class: Counter, field: live, equals: {int: 0}}
//
// Every run builds a fresh runtime with a deterministic clock and
// sequential handle ids, and records the trace both in memory and in
// an in-memory SQLite store, so traces are reproducible and golden
// comparison is byte-stable.
//
// Beyond the scenario's own expectations, the built-in lifecycle
// properties are checked on every run: adjust hooks fire root-first
// and completely per construction, destruct hooks fire child-first
// and at most once per teardown, and no dispatch lands on a handle
// after its teardown began.
package harness
