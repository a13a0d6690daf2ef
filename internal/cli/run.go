package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/harness"
	"github.com/rwp0/Cor/internal/object"
	"github.com/rwp0/Cor/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional trace persistence
}

// TraceEventReport is one lifecycle event in CLI output.
type TraceEventReport struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Class  string `json:"class,omitempty"`
	Method string `json:"method,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Handle string `json:"handle,omitempty"`
}

// RunReport holds the result of a single scenario run.
type RunReport struct {
	Scenario string             `json:"scenario"`
	Pass     bool               `json:"pass"`
	Errors   []string           `json:"errors,omitempty"`
	Trace    []TraceEventReport `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run a single scenario",
		Long: `Run a single YAML scenario against a fresh runtime.

The scenario names its declaration directory, scripts registration,
construction, method dispatch, and teardown, and asserts over the
recorded trace. With --db, the full event stream also persists to a
SQLite trace database for later inspection.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (invalid paths, unreadable database)

Examples:
  cor run ./scenarios/construct.yaml
  cor run ./scenarios/construct.yaml --db ./cor.db
  cor run ./scenarios/construct.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")

	return cmd
}

func runScenario(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Loaded scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	var runOpts []harness.RunOption
	if opts.Database != "" {
		st, err := trace.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithTraceStore(st))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("running scenario %s", scenario.Name), err)
	}

	report := RunReport{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Trace:    traceReport(result.Trace),
	}

	// Output results
	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}

	return outputRunText(cmd, report)
}

// traceReport converts runtime events to their CLI report shape.
func traceReport(events []object.Event) []TraceEventReport {
	reports := make([]TraceEventReport, len(events))
	for i, ev := range events {
		reports[i] = eventReport(ev)
	}
	return reports
}

// eventReport converts a single runtime event.
func eventReport(ev object.Event) TraceEventReport {
	return TraceEventReport{
		Seq:    ev.Seq,
		Kind:   string(ev.Kind),
		Class:  ev.Class,
		Method: ev.Method,
		Owner:  ev.Owner,
		Handle: ev.Handle,
	}
}

// formatEventLine formats one event for text output.
func formatEventLine(ev TraceEventReport) string {
	line := fmt.Sprintf("[%d] %s", ev.Seq, ev.Kind)
	if ev.Class != "" {
		line += " " + ev.Class
	}
	if ev.Method != "" {
		line += "." + ev.Method
	}
	if ev.Owner != "" {
		line += " owner=" + ev.Owner
	}
	if ev.Handle != "" {
		line += " handle=" + ev.Handle
	}
	return line
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	status := "ok"
	if !report.Pass {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   report,
	}

	if !report.Pass {
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("scenario %s failed", report.Scenario),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.Pass {
		// Scenario failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport) error {
	w := cmd.OutOrStdout()

	// Trace section
	fmt.Fprintln(w, "=== Trace ===")
	if len(report.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range report.Trace {
			fmt.Fprintf(w, "  %s\n", formatEventLine(ev))
		}
	}
	fmt.Fprintln(w)

	// Result section
	fmt.Fprintln(w, "=== Result ===")
	if report.Pass {
		fmt.Fprintf(w, "  ✓ %s\n", report.Scenario)
		return nil
	}

	fmt.Fprintf(w, "  ✗ %s\n", report.Scenario)
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "    %s\n", msg)
	}

	// Scenario failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
}
