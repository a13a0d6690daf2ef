// Package trace provides SQLite-backed persistence for runtime
// lifecycle traces.
//
// The trace is an append-only record with two tables:
//   - Declarations: what was registered (kind, name, version,
//     fingerprint, canonical JSON)
//   - Events: every lifecycle transition the runtime emitted, keyed
//     by its logical sequence number
//
// All ordering uses the runtime's logical clock, never timestamps:
// two runs with the same inputs and a deterministic clock produce
// byte-identical traces, which is what makes golden comparison work.
// Writes are idempotent (ON CONFLICT DO NOTHING), so replaying a
// run's events into an existing database is harmless.
//
// The core runtime persists nothing itself and runs fine with a nil
// observer; Recorder is the optional bridge between the two.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Declaration fingerprints come from internal/decl using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package trace
