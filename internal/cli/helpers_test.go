package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// counterCUE is the shared fixture class for command tests: a shared
// live counter with lifecycle hooks and one per-instance field.
const counterCUE = `package decls

class: Counter: {
	version: "1.0.0"
	fields: {
		live: {shared: true, default: 0, reader: true}
		label: {param: "optional", default: "counter", reader: true}
	}
	hooks: {
		adjust: [{op: "inc", field: "live"}]
		destruct: [{op: "inc", field: "live", by: -1}]
	}
}
`

// passingScenarioYAML drives one full lifecycle and holds: 8 events.
const passingScenarioYAML = `name: counter-lifecycle
description: A shared cell rises on construction and falls back on teardown.
decls: ../decls
steps:
  - register: [Counter]
  - invoke: {on: class, class: Counter, method: live, expect: {int: 0}}
  - instantiate: {class: Counter, as: c1}
  - invoke: {on: class, class: Counter, method: live, expect: {int: 1}}
  - release: c1
assertions:
  - trace_count: {kind: destruct, count: 1}
`

// failingScenarioYAML expects a value the runtime never produces.
const failingScenarioYAML = `name: counter-broken
description: Deliberately wrong expectation.
decls: ../decls
steps:
  - register: [Counter]
  - instantiate: {class: Counter, as: c1}
  - invoke: {on: class, class: Counter, method: live, expect: {int: 5}}
  - release: c1
`

// writeCounterDecls writes the counter declaration into a fresh temp
// directory and returns the declaration directory.
func writeCounterDecls(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "decls")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.cue"), []byte(counterCUE), 0644))
	return dir
}

// scenarioTree writes the counter declarations plus the given scenario
// files under a fresh temp dir and returns the scenarios directory.
// Scenario decls paths resolve as ../decls relative to that directory.
func scenarioTree(t *testing.T, scenarios map[string]string) string {
	t.Helper()

	base := t.TempDir()
	declsDir := filepath.Join(base, "decls")
	require.NoError(t, os.MkdirAll(declsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(declsDir, "counter.cue"), []byte(counterCUE), 0644))

	scenariosDir := filepath.Join(base, "scenarios")
	require.NoError(t, os.MkdirAll(scenariosDir, 0755))
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(scenariosDir, name), []byte(content), 0644))
	}
	return scenariosDir
}

// writeCounterScenario writes the passing scenario and returns its
// file path.
func writeCounterScenario(t *testing.T) string {
	t.Helper()

	dir := scenarioTree(t, map[string]string{"counter-lifecycle.yaml": passingScenarioYAML})
	return filepath.Join(dir, "counter-lifecycle.yaml")
}

// writeFailingScenario writes the failing scenario and returns its
// file path.
func writeFailingScenario(t *testing.T) string {
	t.Helper()

	dir := scenarioTree(t, map[string]string{"counter-broken.yaml": failingScenarioYAML})
	return filepath.Join(dir, "counter-broken.yaml")
}
