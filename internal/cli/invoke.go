package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwp0/Cor/internal/compiler"
	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args string
}

// InvokeResult holds a successful invocation.
type InvokeResult struct {
	Class  string          `json:"class"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <decls-dir> <class> <method>",
		Short: "Invoke a class-scoped method once",
		Long: `Register a declaration directory, resolve a class, and dispatch one
method against the class itself.

Only class-scoped methods and the reserved constructor "new" are
reachable here: every run starts a fresh runtime, so there is no
instance to address. Use run or test to drive full lifecycles.

Examples:
  cor invoke ./decls Counter total
  cor invoke ./decls Counter scaled --args '[10]'
  cor invoke ./decls Counter new --format json`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "method arguments as a JSON array")

	return cmd
}

func runInvoke(opts *InvokeOptions, declsDir, className, method string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	callArgs, err := parseInvokeArgs(opts.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}

	rt, loadResult, err := buildRuntime(declsDir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Registered %d class(es) and %d role(s) from %s",
		len(loadResult.Classes), len(loadResult.Roles), declsDir)

	target, err := rt.TargetClass(className)
	if err != nil {
		return outputInvokeError(formatter, className, method, err)
	}

	out, err := rt.Invoke(target, method, callArgs)
	if err != nil {
		return outputInvokeError(formatter, className, method, err)
	}

	canonical := []byte("null")
	if out != nil {
		data, merr := decl.MarshalValue(out)
		if merr != nil {
			return WrapExitError(ExitFailure, "serializing result", merr)
		}
		canonical = data
	}

	// Output results
	if opts.Format == "json" {
		return formatter.Success(InvokeResult{
			Class:  className,
			Method: method,
			Result: json.RawMessage(canonical),
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(canonical))
	return nil
}

// outputInvokeError outputs a runtime failure for an invocation.
func outputInvokeError(formatter *OutputFormatter, className, method string, err error) error {
	_ = formatter.Error(runtimeErrorCode(err), err.Error(), nil)
	// Dispatch failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("invoking %s.%s failed", className, method))
}

// parseInvokeArgs decodes the JSON argument array.
func parseInvokeArgs(argsJSON string) ([]decl.Value, error) {
	if argsJSON == "" {
		return nil, nil
	}
	v, err := decl.UnmarshalValue([]byte(argsJSON))
	if err != nil {
		return nil, err
	}
	arr, ok := v.(decl.Array)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON array")
	}
	return []decl.Value(arr), nil
}

// runtimeErrorCode maps an error from the object runtime to the code a
// CLI envelope carries. Errors outside the taxonomy report E001.
func runtimeErrorCode(err error) string {
	var (
		regErr  *object.RegistrationError
		conErr  *object.ConstructionError
		disErr  *object.DispatchError
		lookErr *object.LookupError
		depErr  *object.DepthError
	)
	switch {
	case errors.As(err, &regErr):
		return string(regErr.Code)
	case errors.As(err, &conErr):
		return string(conErr.Code)
	case errors.As(err, &disErr):
		return string(disErr.Code)
	case errors.As(err, &lookErr):
		return string(lookErr.Code)
	case errors.As(err, &depErr):
		return "DEPTH_EXCEEDED"
	default:
		return compiler.ErrCodeGeneric
	}
}
