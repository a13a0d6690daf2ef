package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rwp0/Cor/internal/compiler"
	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
	"github.com/rwp0/Cor/internal/testutil"
	"github.com/rwp0/Cor/internal/trace"
)

// Harness executes one scenario against a fresh runtime.
type Harness struct {
	runtime  *object.Runtime
	loaded   *compiler.LoadResult
	recorder *trace.Recorder
	handles  map[string]*object.Handle
	result   *Result
}

// traceCollector is the runtime observer for a scenario run. Every
// event lands in the in-memory result trace and in the scenario's
// trace recorder.
type traceCollector struct {
	result *Result
	rec    *trace.Recorder
}

func (c *traceCollector) LifecycleEvent(ev object.Event) error {
	c.result.Trace = append(c.result.Trace, ev)
	return c.rec.LifecycleEvent(ev)
}

// RunOption adjusts how a scenario executes.
type RunOption func(*runConfig)

type runConfig struct {
	store *trace.Store
}

// WithTraceStore records the run into st instead of a private
// in-memory store. The caller keeps ownership; Run does not close it.
func WithTraceStore(st *trace.Store) RunOption {
	return func(cfg *runConfig) { cfg.store = st }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh runtime and, by default, a fresh
// in-memory trace store for isolation; WithTraceStore substitutes a
// caller-owned store when the trace should outlive the run. The
// deterministic clock and sequential handle ids make traces
// reproducible across runs, which golden comparison depends on.
//
// Execution flow:
//  1. Compile the scenario's CUE declarations
//  2. Build a runtime with deterministic clock, handle ids, and a
//     recording observer
//  3. Execute steps in order, validating expectations
//  4. Check the built-in lifecycle properties over the trace
//  5. Evaluate explicit assertions
//
// A failed expectation, property, or assertion marks the result
// failed; the returned error reports infrastructure defects only
// (unreadable declarations, unknown aliases, broken trace store).
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	loaded, loadErrs := compiler.LoadDecls(scenario.Decls, compiler.LoadModeFailFast)
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("failed to load declarations from %s: %w", scenario.Decls, loadErrs[0])
	}

	st := cfg.store
	if st == nil {
		mem, err := trace.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory trace store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	result := NewResult()
	recorder := trace.NewRecorder(st)
	collector := &traceCollector{result: result, rec: recorder}

	rt := object.New(
		object.WithClock(testutil.NewDeterministicClock()),
		object.WithHandleIDs(testutil.NewSequentialHandleIDs("h")),
		object.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		object.WithObserver(collector),
	)

	h := &Harness{
		runtime:  rt,
		loaded:   loaded,
		recorder: recorder,
		handles:  make(map[string]*object.Handle),
		result:   result,
	}

	if err := h.executeSteps(scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	h.checkLifecycleProperties()
	h.evaluateAssertions(scenario.Assertions)

	return result, nil
}

// executeSteps runs all steps in order. A step whose expectation fails
// marks the result failed and stops execution - later steps would run
// against state the scenario no longer controls.
func (h *Harness) executeSteps(steps []Step) error {
	for i := range steps {
		ok, err := h.executeStep(i, &steps[i])
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

func (h *Harness) executeStep(index int, st *Step) (bool, error) {
	switch {
	case st.Register != nil:
		return true, h.executeRegister(index, st.Register)
	case st.Instantiate != nil:
		return h.executeInstantiate(index, st.Instantiate)
	case st.Invoke != nil:
		return h.executeInvoke(index, st.Invoke)
	case st.Retain != nil:
		return h.executeRetain(index, st.Retain)
	case st.Release != "":
		return h.executeRelease(index, st.Release)
	}
	return false, fmt.Errorf("steps[%d]: empty step", index)
}

// executeRegister registers the named declarations in order.
// Registration is scenario setup and must succeed; a failure here is
// a defect in the scenario, not a test outcome.
func (h *Harness) executeRegister(index int, names []string) error {
	for _, name := range names {
		if cls := h.findClass(name); cls != nil {
			if err := h.runtime.RegisterClass(cls); err != nil {
				return fmt.Errorf("steps[%d]: register class %s: %w", index, name, err)
			}
			if err := h.recorder.RecordClass(cls); err != nil {
				return fmt.Errorf("steps[%d]: record class %s: %w", index, name, err)
			}
			continue
		}
		if role := h.findRole(name); role != nil {
			if err := h.runtime.RegisterRole(role); err != nil {
				return fmt.Errorf("steps[%d]: register role %s: %w", index, name, err)
			}
			if err := h.recorder.RecordRole(role); err != nil {
				return fmt.Errorf("steps[%d]: record role %s: %w", index, name, err)
			}
			continue
		}
		return fmt.Errorf("steps[%d]: declaration %s not found in compiled declarations", index, name)
	}
	return nil
}

func (h *Harness) findClass(name string) *decl.ClassDecl {
	for _, d := range h.loaded.Classes {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (h *Harness) findRole(name string) *decl.RoleDecl {
	for _, d := range h.loaded.Roles {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (h *Harness) executeInstantiate(index int, st *InstantiateStep) (bool, error) {
	args, err := h.convertValues(st.Args)
	if err != nil {
		return false, fmt.Errorf("steps[%d].instantiate: %w", index, err)
	}

	handle, callErr := h.runtime.Instantiate(st.Class, args)

	if st.ExpectError != "" {
		return h.matchExpectedError(index, "instantiate "+st.Class, st.ExpectError, callErr), nil
	}
	if callErr != nil {
		h.result.AddError("steps[%d]: instantiate %s: %v", index, st.Class, callErr)
		return false, nil
	}
	h.handles[st.As] = handle
	return true, nil
}

func (h *Harness) executeInvoke(index int, st *InvokeStep) (bool, error) {
	args, err := h.convertValues(st.Args)
	if err != nil {
		return false, fmt.Errorf("steps[%d].invoke: %w", index, err)
	}

	// Target resolution errors (unknown class, released instance) are
	// part of the behavior under test and feed expect_error matching.
	// An unknown alias is a scenario defect.
	var target object.Target
	var callErr error
	if st.On == "class" {
		ct, terr := h.runtime.TargetClass(st.Class)
		if terr != nil {
			callErr = terr
		} else {
			target = ct
		}
	} else {
		hd, ok := h.handles[st.On]
		if !ok {
			return false, fmt.Errorf("steps[%d].invoke: unknown handle alias %q", index, st.On)
		}
		target = hd
	}

	var val decl.Value
	if callErr == nil {
		val, callErr = h.runtime.Invoke(target, st.Method, args)
	}

	if st.ExpectError != "" {
		return h.matchExpectedError(index, "invoke "+st.Method, st.ExpectError, callErr), nil
	}
	if callErr != nil {
		h.result.AddError("steps[%d]: invoke %s: %v", index, st.Method, callErr)
		return false, nil
	}
	if st.Expect != nil {
		want, err := h.convertValue(st.Expect)
		if err != nil {
			return false, fmt.Errorf("steps[%d].invoke.expect: %w", index, err)
		}
		if !decl.Equal(want, val) {
			h.result.AddError("steps[%d]: invoke %s: expected %s, got %s",
				index, st.Method, renderValue(want), renderValue(val))
			return false, nil
		}
	}
	return true, nil
}

func (h *Harness) executeRetain(index int, st *RetainStep) (bool, error) {
	hd, ok := h.handles[st.Handle]
	if !ok {
		return false, fmt.Errorf("steps[%d].retain: unknown handle alias %q", index, st.Handle)
	}
	nh, err := h.runtime.Retain(hd)
	if err != nil {
		h.result.AddError("steps[%d]: retain %s: %v", index, st.Handle, err)
		return false, nil
	}
	h.handles[st.As] = nh
	return true, nil
}

func (h *Harness) executeRelease(index int, alias string) (bool, error) {
	hd, ok := h.handles[alias]
	if !ok {
		return false, fmt.Errorf("steps[%d].release: unknown handle alias %q", index, alias)
	}
	if err := h.runtime.Release(hd); err != nil {
		h.result.AddError("steps[%d]: release %s: %v", index, alias, err)
		return false, nil
	}
	return true, nil
}

// matchExpectedError checks a step that expects a failure. Returns
// true when the scenario may continue.
func (h *Harness) matchExpectedError(index int, op, want string, err error) bool {
	if err == nil {
		h.result.AddError("steps[%d]: %s: expected error %s, got success", index, op, want)
		return false
	}
	got := errorCode(err)
	if got != want {
		h.result.AddError("steps[%d]: %s: expected error %s, got %s (%v)", index, op, want, got, err)
		return false
	}
	return true
}

// convertValues converts scenario values, resolving ref aliases
// against the live handle table.
func (h *Harness) convertValues(vals []Value) ([]decl.Value, error) {
	out := make([]decl.Value, len(vals))
	for i := range vals {
		v, err := h.convertValue(&vals[i])
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (h *Harness) convertValue(v *Value) (decl.Value, error) {
	switch {
	case v.Null != nil:
		return decl.Null{}, nil
	case v.String != nil:
		return decl.String(*v.String), nil
	case v.Int != nil:
		return decl.Int(*v.Int), nil
	case v.Bool != nil:
		return decl.Bool(*v.Bool), nil
	case v.Array != nil:
		arr := make(decl.Array, len(v.Array))
		for i := range v.Array {
			elem, err := h.convertValue(&v.Array[i])
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = elem
		}
		return arr, nil
	case v.Object != nil:
		obj := make(decl.Object, len(v.Object))
		for key := range v.Object {
			entry := v.Object[key]
			elem, err := h.convertValue(&entry)
			if err != nil {
				return nil, fmt.Errorf("object[%s]: %w", key, err)
			}
			obj[key] = elem
		}
		return obj, nil
	case v.Ref != nil:
		hd, ok := h.handles[*v.Ref]
		if !ok {
			return nil, fmt.Errorf("unknown handle alias %q", *v.Ref)
		}
		return hd.Ref(), nil
	}
	return nil, fmt.Errorf("empty value")
}

// errorCode extracts the taxonomy code from a runtime error.
// DepthError carries no code field and reports as DEPTH_EXCEEDED.
func errorCode(err error) string {
	var regErr *object.RegistrationError
	if errors.As(err, &regErr) {
		return string(regErr.Code)
	}
	var conErr *object.ConstructionError
	if errors.As(err, &conErr) {
		return string(conErr.Code)
	}
	var dispErr *object.DispatchError
	if errors.As(err, &dispErr) {
		return string(dispErr.Code)
	}
	var lookErr *object.LookupError
	if errors.As(err, &lookErr) {
		return string(lookErr.Code)
	}
	var depthErr *object.DepthError
	if errors.As(err, &depthErr) {
		return "DEPTH_EXCEEDED"
	}
	return "UNCLASSIFIED"
}

// renderValue formats a runtime value for failure messages.
func renderValue(v decl.Value) string {
	if v == nil {
		return "null"
	}
	b, err := decl.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
