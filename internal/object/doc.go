// Package object implements the Cor object-model runtime.
//
// The runtime is the heart of Cor - it stores class and role
// declarations, linearizes inheritance chains, lays out instance
// storage, resolves method dispatch, and drives the construction and
// destruction protocols.
//
// ARCHITECTURE:
//
// Declaration flow:
// 1. Front ends hand ClassDecl/RoleDecl records to Runtime.RegisterClass
//    and Runtime.RegisterRole; the DeclStore validates and keeps every
//    version, append-only.
// 2. First use of a class (instantiate, invoke, lineage query) drives
//    the registry, which linearizes lazily: parent first, then role
//    flattening, slot layout, dispatch table, hook schedule. Linearized
//    classes are memoized per name+version; failures are not cached.
// 3. Construction resolves every field across the chain before the
//    first adjust hook runs, so aborted constructions never roll back
//    shared state.
// 4. Release of the last owning handle runs destruct hooks child-first,
//    exactly once per instance.
//
// Determinism:
// Every observable transition is stamped with a monotonic seq counter
// from Clock.Next(); wall clocks never order events. Dispatch lists,
// slot tables, and hook schedules are pure functions of the
// declarations, so two runtimes fed the same declarations in the same
// order behave identically.
//
// Method bodies are opaque callables. The runtime never interprets
// them; it binds a frame (receiver, field access, next-implementation
// cursor) and schedules their invocation.
package object
