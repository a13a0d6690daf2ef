// Package decl defines the structured declaration records the runtime
// consumes: class and role declarations, their fields, methods and
// lifecycle hooks, and the constrained value model that flows through
// construction and dispatch.
//
// This package is the foundational layer. All other internal packages
// import decl; decl imports nothing internal, so no cycles are
// possible.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) for numbers; floats
//     would break canonical encoding and fingerprints
//   - Method and hook bodies are opaque closures; the runtime
//     schedules them with a bound Frame and never looks inside
//   - All JSON tags use snake_case
//   - Declarations are immutable after registration; Validate reports
//     every structural problem, not just the first
package decl
