package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison. Serialization goes through the deterministic value
// marshaler, so golden bytes are stable across runs.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []object.Event
}

// toValue converts the snapshot to a value tree for serialization.
// Detail payloads are dropped: they carry declaration fingerprints,
// which change with every fixture edit; snapshots keep the stable
// identity fields.
func (s *TraceSnapshot) toValue() decl.Value {
	events := make(decl.Array, len(s.Trace))
	for i, ev := range s.Trace {
		obj := decl.Object{
			"seq":  decl.Int(ev.Seq),
			"kind": decl.String(string(ev.Kind)),
		}
		if ev.Class != "" {
			obj["class"] = decl.String(ev.Class)
		}
		if ev.Method != "" {
			obj["method"] = decl.String(ev.Method)
		}
		if ev.Owner != "" {
			obj["owner"] = decl.String(ev.Owner)
		}
		if ev.Handle != "" {
			obj["handle"] = decl.String(ev.Handle)
		}
		events[i] = obj
	}
	return decl.Object{
		"scenario_name": decl.String(s.ScenarioName),
		"trace":         events,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution or serialization fails. A trace
// mismatch fails the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace against the named golden
// file. Useful when the scenario already ran and the result is in
// hand.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

// SnapshotBytes serializes a result's trace to the canonical golden
// form. Callers that manage golden files themselves compare or store
// these bytes directly.
func SnapshotBytes(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return decl.MarshalValue(snapshot.toValue())
}
