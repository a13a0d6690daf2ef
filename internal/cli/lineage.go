package cli

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// LineageOptions holds flags for the lineage command.
type LineageOptions struct {
	*RootOptions
	Min string // minimum acceptable version (semver)
}

// LineageReport holds one linearized class.
type LineageReport struct {
	Class          string             `json:"class"`
	Version        string             `json:"version"`
	Fingerprint    string             `json:"fingerprint"`
	Abstract       bool               `json:"abstract"`
	Ancestry       []string           `json:"ancestry"`
	Slots          []object.SlotInfo  `json:"slots"`
	Shared         []SharedCellReport `json:"shared"`
	AdjustOwners   []string           `json:"adjust_owners"`
	DestructOwners []string           `json:"destruct_owners"`
	Methods        []MethodReport     `json:"methods"`
}

// SharedCellReport is one shared cell with its current value in
// canonical form.
type SharedCellReport struct {
	Owner string `json:"owner"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// MethodReport is one method with its dispatch list, innermost first.
type MethodReport struct {
	Name  string            `json:"name"`
	Impls []object.ImplInfo `json:"impls"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LineageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lineage <decls-dir> <class>",
		Short: "Linearize a class and print its resolved shape",
		Long: `Register every declaration in a directory, linearize one class, and
print the result.

The output includes:
- Ancestry: the ancestor chain, self first
- Slots: the flattened per-instance field table
- Shared cells: class-level fields with their current values
- Hooks: adjust and destruct firing order
- Methods: each method's dispatch list, innermost first

Examples:
  cor lineage ./decls Counter
  cor lineage ./decls Counter --min 2.0.0
  cor lineage ./decls Counter --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Min, "min", "", "minimum acceptable version (semver)")

	return cmd
}

func runLineage(opts *LineageOptions, declsDir, className string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	var min *semver.Version
	if opts.Min != "" {
		v, err := semver.NewVersion(opts.Min)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --min version %q", opts.Min), err)
		}
		min = v
	}

	rt, loadResult, err := buildRuntime(declsDir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Registered %d class(es) and %d role(s) from %s",
		len(loadResult.Classes), len(loadResult.Roles), declsDir)

	cls, err := rt.LinearizeAt(className, min)
	if err != nil {
		_ = formatter.Error(runtimeErrorCode(err), err.Error(), nil)
		// Unknown class, no satisfying version, or a lineage defect
		return NewExitError(ExitFailure, fmt.Sprintf("linearizing %s failed", className))
	}

	report := buildLineageReport(cls)

	// Output results
	if opts.Format == "json" {
		return formatter.Success(report)
	}

	return outputLineageText(cmd, report)
}

// buildLineageReport assembles the report from a linearized class.
func buildLineageReport(cls *object.Class) LineageReport {
	report := LineageReport{
		Class:          cls.Name(),
		Version:        cls.Version().String(),
		Fingerprint:    cls.Fingerprint(),
		Abstract:       cls.Abstract(),
		Ancestry:       cls.Ancestry(),
		Slots:          cls.Slots(),
		Shared:         []SharedCellReport{},
		AdjustOwners:   cls.AdjustOwners(),
		DestructOwners: cls.DestructOwners(),
		Methods:        []MethodReport{},
	}

	for _, cell := range cls.SharedCells() {
		val, _ := cls.SharedValue(cell.Owner, cell.Field)
		value := "null"
		if data, err := decl.MarshalValue(val); err == nil {
			value = string(data)
		}
		report.Shared = append(report.Shared, SharedCellReport{
			Owner: cell.Owner,
			Field: cell.Field,
			Value: value,
		})
	}

	for _, name := range cls.MethodNames() {
		impls, _ := cls.Resolve(name)
		report.Methods = append(report.Methods, MethodReport{Name: name, Impls: impls})
	}

	return report
}

// outputLineageText outputs the lineage report as text.
func outputLineageText(cmd *cobra.Command, report LineageReport) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "%s %s\n", report.Class, report.Version)
	fmt.Fprintf(w, "Fingerprint: %s\n", report.Fingerprint)
	if report.Abstract {
		fmt.Fprintln(w, "Abstract: yes")
	}
	fmt.Fprintln(w)

	// Ancestry section
	fmt.Fprintln(w, "=== Ancestry ===")
	fmt.Fprintf(w, "  %s\n", strings.Join(report.Ancestry, " -> "))
	fmt.Fprintln(w)

	// Slots section
	fmt.Fprintln(w, "=== Slots ===")
	if len(report.Slots) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, s := range report.Slots {
			fmt.Fprintf(w, "  [%d] %s.%s\n", s.Index, s.Owner, s.Field)
		}
	}
	fmt.Fprintln(w)

	// Shared cells section
	fmt.Fprintln(w, "=== Shared cells ===")
	if len(report.Shared) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, c := range report.Shared {
			fmt.Fprintf(w, "  %s.%s = %s\n", c.Owner, c.Field, c.Value)
		}
	}
	fmt.Fprintln(w)

	// Hooks section
	fmt.Fprintln(w, "=== Hooks ===")
	fmt.Fprintf(w, "  adjust:   %s\n", ownerList(report.AdjustOwners))
	fmt.Fprintf(w, "  destruct: %s\n", ownerList(report.DestructOwners))
	fmt.Fprintln(w)

	// Methods section
	fmt.Fprintln(w, "=== Methods ===")
	if len(report.Methods) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, m := range report.Methods {
			fmt.Fprintf(w, "  %s: %s\n", m.Name, implChain(m.Impls))
		}
	}

	return nil
}

// ownerList formats a hook firing order for display.
func ownerList(owners []string) string {
	if len(owners) == 0 {
		return "(none)"
	}
	return strings.Join(owners, ", ")
}

// implChain formats a dispatch list for display, innermost first.
func implChain(impls []object.ImplInfo) string {
	parts := make([]string, len(impls))
	for i, impl := range impls {
		part := fmt.Sprintf("%s/%d", impl.Owner, impl.Arity)
		if impl.Scope == string(decl.DispatchClass) {
			part += " [class]"
		}
		parts[i] = part
	}
	return strings.Join(parts, " -> ")
}
