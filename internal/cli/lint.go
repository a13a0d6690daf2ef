package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/compiler"
)

// LintIssue is a single finding, either a declaration error or a
// hierarchy problem.
type LintIssue struct {
	Severity string   `json:"severity"`       // "error" or "warning"
	Code     string   `json:"code,omitempty"` // loader code (E001-E105), if any
	Pos      string   `json:"pos,omitempty"`  // file:line:col for loader errors
	Path     []string `json:"path,omitempty"` // inheritance path for cycles
	Message  string   `json:"message"`
}

// LintReport holds the overall lint result.
type LintReport struct {
	Dir      string      `json:"dir"`
	Files    int         `json:"files"`
	Classes  int         `json:"classes"`
	Roles    int         `json:"roles"`
	Issues   []LintIssue `json:"issues"`
	Errors   int         `json:"errors"`
	Warnings int         `json:"warnings"`
}

// NewLintCommand creates the lint command.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <decls-dir>",
		Short: "Lint CUE declarations without registering them",
		Long: `Lint CUE class and role declarations without registering them.

Compiles every CUE file in the directory, then statically checks the
declared hierarchy: dangling parent and role references, names declared
as both class and role, classes inheriting from roles, and inheritance
cycles. Errors mean registration cannot succeed; warnings flag
fragments completed elsewhere.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runLint(opts *RootOptions, declsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := compiler.LoadDecls(declsDir, compiler.LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputLintError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputLintError(formatter, compiler.ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, declsDir)

	report := LintReport{
		Dir:     declsDir,
		Files:   loadResult.FileCount,
		Classes: len(loadResult.Classes),
		Roles:   len(loadResult.Roles),
		Issues:  []LintIssue{},
	}

	// Declaration-level errors keep their loader codes
	for _, err := range loadErrors {
		issue := LintIssue{Severity: "error", Message: err.Error()}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			issue.Code = loadErr.Code
			issue.Message = loadErr.Message
			if loadErr.Pos.IsValid() {
				issue.Pos = fmt.Sprintf("%s:%d:%d",
					loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
			}
		}
		report.Issues = append(report.Issues, issue)
	}

	// Static hierarchy checks
	for _, warning := range compiler.LintHierarchy(loadResult.Classes, loadResult.Roles) {
		report.Issues = append(report.Issues, LintIssue{
			Severity: warning.Level,
			Path:     warning.Path,
			Message:  warning.Message,
		})
	}

	for _, issue := range report.Issues {
		if issue.Severity == "error" {
			report.Errors++
		} else {
			report.Warnings++
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputLintJSON(cmd, report)
	}

	return outputLintText(cmd, report)
}

// outputLintError outputs a single load-level error.
func outputLintError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLintJSON outputs the lint report as JSON.
func outputLintJSON(cmd *cobra.Command, report LintReport) error {
	status := "ok"
	if report.Errors > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   report,
	}

	if report.Errors > 0 {
		response.Error = &CLIError{
			Code:    "E_LINT_FAILED",
			Message: fmt.Sprintf("lint failed with %d error(s)", report.Errors),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if report.Errors > 0 {
		// Lint errors = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("lint failed with %d error(s)", report.Errors))
	}
	return nil
}

// outputLintText outputs the lint report as text.
func outputLintText(cmd *cobra.Command, report LintReport) error {
	w := cmd.OutOrStdout()

	if report.Errors == 0 && report.Warnings == 0 {
		fmt.Fprintf(w, "✓ %d class(es), %d role(s) across %d file(s)\n",
			report.Classes, report.Roles, report.Files)
		return nil
	}

	if report.Errors > 0 {
		fmt.Fprintln(w, "✗ Lint failed")
	} else {
		fmt.Fprintln(w, "! Lint passed with warnings")
	}
	fmt.Fprintln(w)

	for _, issue := range report.Issues {
		if issue.Pos != "" {
			fmt.Fprintln(w, issue.Pos)
		}
		label := issue.Code
		if label == "" {
			label = issue.Severity
		}
		fmt.Fprintf(w, "  %s: %s\n\n", label, issue.Message)
	}

	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", report.Errors, report.Warnings)

	if report.Errors > 0 {
		// Lint errors = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("lint failed with %d error(s)", report.Errors))
	}
	return nil
}
