package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/harness"
	"github.com/rwp0/Cor/internal/object"
)

// ReplayReport holds the determinism verification result.
type ReplayReport struct {
	Scenario         string   `json:"scenario"`
	Events           int      `json:"events"`
	AllDeterministic bool     `json:"all_deterministic"`
	Mismatches       []string `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <scenario-file>",
		Short: "Run a scenario twice and verify determinism",
		Long: `Run a scenario twice against fresh runtimes and verify both traces
match event for event.

Scenario runs pin the clock and handle identifiers, so the two traces
must be identical. A divergence points at hidden nondeterminism, such
as map iteration leaking into dispatch or hook order.

Exit codes:
  0 - Traces match
  1 - Traces diverge
  2 - Command error (invalid paths, etc.)

Examples:
  cor replay ./scenarios/construct.yaml
  cor replay ./scenarios/construct.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("loading scenario %s", scenarioFile), err)
	}

	formatter.VerboseLog("First execution of %s", scenario.Name)
	first, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "first execution failed", err)
	}

	formatter.VerboseLog("Second execution of %s", scenario.Name)
	second, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "second execution failed", err)
	}

	mismatches := compareTraces(first.Trace, second.Trace)

	report := ReplayReport{
		Scenario:         scenario.Name,
		Events:           len(first.Trace),
		AllDeterministic: len(mismatches) == 0,
		Mismatches:       mismatches,
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, report)
	}

	return outputReplayText(cmd, report)
}

// compareTraces compares two traces event for event.
func compareTraces(first, second []object.Event) []string {
	var mismatches []string

	if len(first) != len(second) {
		mismatches = append(mismatches,
			fmt.Sprintf("event count differs: first run %d, second run %d", len(first), len(second)))
	}

	for i := 0; i < min(len(first), len(second)); i++ {
		if !eventsEqual(first[i], second[i]) {
			mismatches = append(mismatches,
				fmt.Sprintf("event %d differs: first %s, second %s",
					i, formatEventLine(eventReport(first[i])), formatEventLine(eventReport(second[i]))))
		}
	}

	return mismatches
}

// eventsEqual compares the identity fields of two events.
func eventsEqual(a, b object.Event) bool {
	return a.Seq == b.Seq &&
		a.Kind == b.Kind &&
		a.Class == b.Class &&
		a.Method == b.Method &&
		a.Owner == b.Owner &&
		a.Handle == b.Handle
}

// outputReplayJSON outputs the replay report as JSON.
func outputReplayJSON(cmd *cobra.Command, report ReplayReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	if !report.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay report as text.
func outputReplayText(cmd *cobra.Command, report ReplayReport) error {
	w := cmd.OutOrStdout()

	if report.AllDeterministic {
		fmt.Fprintf(w, "✓ %s: %d events, deterministic\n", report.Scenario, report.Events)
		return nil
	}

	fmt.Fprintf(w, "✗ %s: traces diverge\n", report.Scenario)
	for _, msg := range report.Mismatches {
		fmt.Fprintf(w, "  %s\n", msg)
	}

	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
