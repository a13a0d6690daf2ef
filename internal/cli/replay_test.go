package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwp0/Cor/internal/object"
)

func TestReplayCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestReplayCommandNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading scenario")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayCommandDeterministic(t *testing.T) {
	scenarioFile := writeCounterScenario(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioFile})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ counter-lifecycle: 8 events, deterministic")
}

func TestReplayCommandJSON(t *testing.T) {
	scenarioFile := writeCounterScenario(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioFile})

	err := cmd.Execute()
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)

	data, ok := response.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["all_deterministic"])
	assert.EqualValues(t, 8, data["events"])
}

func TestCompareTracesEqual(t *testing.T) {
	events := []object.Event{
		{Seq: 1, Kind: object.EventRegister, Class: "Counter"},
		{Seq: 2, Kind: object.EventLinearize, Class: "Counter"},
	}

	assert.Empty(t, compareTraces(events, events))
}

func TestCompareTracesMismatch(t *testing.T) {
	first := []object.Event{
		{Seq: 1, Kind: object.EventRegister, Class: "Counter"},
	}
	second := []object.Event{
		{Seq: 1, Kind: object.EventRegister, Class: "Gauge"},
	}

	mismatches := compareTraces(first, second)
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0], "event 0 differs")
	assert.Contains(t, mismatches[0], "Counter")
	assert.Contains(t, mismatches[0], "Gauge")
}

func TestCompareTracesLengthDiffers(t *testing.T) {
	first := []object.Event{
		{Seq: 1, Kind: object.EventRegister, Class: "Counter"},
	}
	second := []object.Event{
		{Seq: 1, Kind: object.EventRegister, Class: "Counter"},
		{Seq: 2, Kind: object.EventLinearize, Class: "Counter"},
	}

	mismatches := compareTraces(first, second)
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0], "event count differs: first run 1, second run 2")
}

func TestEventsEqual(t *testing.T) {
	base := object.Event{Seq: 5, Kind: object.EventAdjust, Class: "Counter", Owner: "Counter", Handle: "h-000001"}

	assert.True(t, eventsEqual(base, base))

	differentOwner := base
	differentOwner.Owner = "Gauge"
	assert.False(t, eventsEqual(base, differentOwner))

	differentSeq := base
	differentSeq.Seq = 6
	assert.False(t, eventsEqual(base, differentSeq))
}

func TestReplayHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "twice")
	assert.Contains(t, output, "determinism")
}
