package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string // optional - filter by event kind
	Class    string // optional - filter by class name
	Handle   string // optional - filter by handle
}

// DeclarationReport is one recorded declaration in CLI output.
type DeclarationReport struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// TraceDBReport holds the trace database contents.
type TraceDBReport struct {
	Database     string              `json:"database"`
	Declarations []DeclarationReport `json:"declarations"`
	Events       []TraceEventReport  `json:"events"`
	Count        int                 `json:"count"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a recorded trace database",
		Long: `Query a trace database recorded by run --db.

The output includes:
- Declarations: every class and role registered, with fingerprints
- Timeline: lifecycle events ordered by the runtime's logical clock

Filters narrow the timeline by event kind, class, or handle.

Examples:
  cor trace --db ./cor.db
  cor trace --db ./cor.db --kind destruct
  cor trace --db ./cor.db --class Counter --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by event kind")
	cmd.Flags().StringVar(&opts.Class, "class", "", "filter by class name")
	cmd.Flags().StringVar(&opts.Handle, "handle", "", "filter by instance handle")

	return cmd
}

func runTraceQuery(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Opening a missing path would create an empty database; refuse
	// instead.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database), err)
	}

	st, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	decls, err := st.ReadDeclarations(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read declarations", err)
	}

	filter := trace.EventFilter{
		Kind:   opts.Kind,
		Class:  opts.Class,
		Handle: opts.Handle,
	}
	events, err := st.ReadEvents(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	// Check if the database recorded anything
	if len(decls) == 0 && len(events) == 0 {
		if opts.Format == "json" {
			return outputTraceQueryJSON(cmd, TraceDBReport{
				Database:     opts.Database,
				Declarations: []DeclarationReport{},
				Events:       []TraceEventReport{},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No trace recorded in %s\n", opts.Database)
		return nil
	}

	report := TraceDBReport{
		Database:     opts.Database,
		Declarations: make([]DeclarationReport, 0, len(decls)),
		Events:       traceReport(events),
		Count:        len(events),
	}
	for _, d := range decls {
		report.Declarations = append(report.Declarations, DeclarationReport{
			Kind:        d.Kind,
			Name:        d.Name,
			Version:     d.Version,
			Fingerprint: d.Fingerprint,
		})
	}

	// Output results
	if opts.Format == "json" {
		return outputTraceQueryJSON(cmd, report)
	}

	return outputTraceQueryText(cmd, report)
}

// outputTraceQueryJSON outputs the trace report as JSON.
func outputTraceQueryJSON(cmd *cobra.Command, report TraceDBReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceQueryText outputs the trace report as text.
func outputTraceQueryText(cmd *cobra.Command, report TraceDBReport) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace: %s\n", report.Database)
	fmt.Fprintln(w)

	// Declarations section
	fmt.Fprintln(w, "=== Declarations ===")
	if len(report.Declarations) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, d := range report.Declarations {
			name := d.Name
			if d.Version != "" {
				name += "@" + d.Version
			}
			fmt.Fprintf(w, "  %s %s (%s)\n", d.Kind, name, d.Fingerprint)
		}
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(report.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range report.Events {
			fmt.Fprintf(w, "  %s\n", formatEventLine(ev))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%d event(s)\n", report.Count)

	return nil
}
