package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a fresh runtime through a sequence of lifecycle
// steps and assert on the resulting trace and final shared state.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden
	// file name for trace comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Decls is the directory of CUE declaration files to compile.
	// Relative paths resolve against the scenario file location.
	Decls string `yaml:"decls"`

	// Steps contains the lifecycle steps to execute in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and shared state.
	// The built-in lifecycle properties run on every scenario whether
	// or not explicit assertions are present.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one lifecycle step. Exactly one of its fields must be set;
// the set field names the step kind.
type Step struct {
	// Register names declarations from the scenario's decls directory
	// to register, in order. Registration is setup: it is assumed to
	// succeed, and a failure aborts the scenario as an infrastructure
	// error rather than a test failure.
	Register []string `yaml:"register,omitempty"`

	// Instantiate constructs an instance and binds its handle to an
	// alias for later steps.
	Instantiate *InstantiateStep `yaml:"instantiate,omitempty"`

	// Invoke calls a method on a handle alias or on a class.
	Invoke *InvokeStep `yaml:"invoke,omitempty"`

	// Retain mints an additional handle for an instance.
	Retain *RetainStep `yaml:"retain,omitempty"`

	// Release is the alias of the handle to release.
	Release string `yaml:"release,omitempty"`
}

// InstantiateStep constructs an instance of a class.
type InstantiateStep struct {
	// Class is the class to instantiate. The highest registered
	// version is used.
	Class string `yaml:"class"`

	// As binds the new handle to an alias. Required unless the step
	// expects an error.
	As string `yaml:"as,omitempty"`

	// Args is a flat list of alternating key and value entries, in
	// order. A list rather than a map so scenarios can express
	// duplicate keys and odd-length lists, which the construction
	// protocol must reject.
	Args []Value `yaml:"args,omitempty"`

	// ExpectError is the error code the construction must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// InvokeStep calls a method.
type InvokeStep struct {
	// On is the handle alias to dispatch on, or the literal "class"
	// for class-scoped dispatch.
	On string `yaml:"on"`

	// Class names the dispatch class when On is "class".
	Class string `yaml:"class,omitempty"`

	// Method is the method name.
	Method string `yaml:"method"`

	// Args are the positional arguments.
	Args []Value `yaml:"args,omitempty"`

	// Expect is the value the invocation must return.
	Expect *Value `yaml:"expect,omitempty"`

	// ExpectError is the error code the invocation must fail with.
	// Expect and ExpectError are mutually exclusive.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// RetainStep mints an additional handle for the instance behind an
// existing alias.
type RetainStep struct {
	// Handle is the existing alias.
	Handle string `yaml:"handle"`

	// As binds the new handle to an alias.
	As string `yaml:"as"`
}

// Value is a YAML-level runtime value. Exactly one field must be set;
// the set field names the kind. Scenarios need the explicit tagging
// because native YAML cannot distinguish an absent value from a null
// one, and refs do not exist in YAML at all.
//
// The null arm must be written with a quoted key ("null": true) - a
// bare null key is the YAML null scalar, not the string "null".
type Value struct {
	Null   *bool            `yaml:"null,omitempty"`
	String *string          `yaml:"string,omitempty"`
	Int    *int64           `yaml:"int,omitempty"`
	Bool   *bool            `yaml:"bool,omitempty"`
	Array  []Value          `yaml:"array,omitempty"`
	Object map[string]Value `yaml:"object,omitempty"`

	// Ref names a handle alias; it converts to that handle's
	// instance reference.
	Ref *string `yaml:"ref,omitempty"`
}

// Assertion validates the final trace or shared state. Exactly one of
// its fields must be set; the set field names the assertion type.
type Assertion struct {
	// TraceContains checks that at least one trace event matches.
	TraceContains *EventMatch `yaml:"trace_contains,omitempty"`

	// TraceOrder checks that the first occurrences of the listed
	// event kinds appear in the given relative order.
	TraceOrder []string `yaml:"trace_order,omitempty"`

	// TraceCount checks that exactly Count events match.
	TraceCount *CountMatch `yaml:"trace_count,omitempty"`

	// SharedState checks the final value of a shared field.
	SharedState *SharedStateMatch `yaml:"shared_state,omitempty"`
}

// EventMatch selects trace events by field. Empty fields match
// anything; Handle is a scenario alias, not a raw handle id.
type EventMatch struct {
	Kind   string `yaml:"kind,omitempty"`
	Class  string `yaml:"class,omitempty"`
	Method string `yaml:"method,omitempty"`
	Owner  string `yaml:"owner,omitempty"`
	Handle string `yaml:"handle,omitempty"`
}

// CountMatch is an EventMatch with an exact expected count.
type CountMatch struct {
	Kind   string `yaml:"kind,omitempty"`
	Class  string `yaml:"class,omitempty"`
	Method string `yaml:"method,omitempty"`
	Owner  string `yaml:"owner,omitempty"`
	Handle string `yaml:"handle,omitempty"`
	Count  int    `yaml:"count"`
}

// SharedStateMatch checks one shared cell after all steps ran.
type SharedStateMatch struct {
	// Class is the class whose linearization is inspected.
	Class string `yaml:"class"`

	// Owner is the declaring class of the shared field. Defaults to
	// Class.
	Owner string `yaml:"owner,omitempty"`

	// Field is the shared field name.
	Field string `yaml:"field"`

	// Equals is the expected value.
	Equals Value `yaml:"equals"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the decls directory relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" for
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Decls != "" && !filepath.IsAbs(scenario.Decls) && basePath != "" {
		scenario.Decls = filepath.Join(basePath, scenario.Decls)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Decls == "" {
		return fmt.Errorf("decls directory is required")
	}
	if info, err := os.Stat(s.Decls); os.IsNotExist(err) {
		return fmt.Errorf("decls directory not found: %s", s.Decls)
	} else if err == nil && !info.IsDir() {
		return fmt.Errorf("decls is not a directory: %s", s.Decls)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one step kind is set and that the
// set kind carries its required fields.
func validateStep(index int, st *Step) error {
	kinds := 0
	if st.Register != nil {
		kinds++
	}
	if st.Instantiate != nil {
		kinds++
	}
	if st.Invoke != nil {
		kinds++
	}
	if st.Retain != nil {
		kinds++
	}
	if st.Release != "" {
		kinds++
	}
	if kinds == 0 {
		return fmt.Errorf("steps[%d]: one of register, instantiate, invoke, retain, release is required", index)
	}
	if kinds > 1 {
		return fmt.Errorf("steps[%d]: exactly one step kind allowed, found %d", index, kinds)
	}

	switch {
	case st.Register != nil:
		if len(st.Register) == 0 {
			return fmt.Errorf("steps[%d].register: at least one declaration name is required", index)
		}
	case st.Instantiate != nil:
		if st.Instantiate.Class == "" {
			return fmt.Errorf("steps[%d].instantiate: class is required", index)
		}
		if st.Instantiate.As == "" && st.Instantiate.ExpectError == "" {
			return fmt.Errorf("steps[%d].instantiate: as is required unless expect_error is set", index)
		}
		for j, arg := range st.Instantiate.Args {
			if err := validateValue(fmt.Sprintf("steps[%d].instantiate.args[%d]", index, j), &arg); err != nil {
				return err
			}
		}
	case st.Invoke != nil:
		if st.Invoke.On == "" {
			return fmt.Errorf("steps[%d].invoke: on is required", index)
		}
		if st.Invoke.On == "class" && st.Invoke.Class == "" {
			return fmt.Errorf("steps[%d].invoke: class is required when on is \"class\"", index)
		}
		if st.Invoke.Method == "" {
			return fmt.Errorf("steps[%d].invoke: method is required", index)
		}
		if st.Invoke.Expect != nil && st.Invoke.ExpectError != "" {
			return fmt.Errorf("steps[%d].invoke: expect and expect_error are mutually exclusive", index)
		}
		for j, arg := range st.Invoke.Args {
			if err := validateValue(fmt.Sprintf("steps[%d].invoke.args[%d]", index, j), &arg); err != nil {
				return err
			}
		}
		if st.Invoke.Expect != nil {
			if err := validateValue(fmt.Sprintf("steps[%d].invoke.expect", index), st.Invoke.Expect); err != nil {
				return err
			}
		}
	case st.Retain != nil:
		if st.Retain.Handle == "" {
			return fmt.Errorf("steps[%d].retain: handle is required", index)
		}
		if st.Retain.As == "" {
			return fmt.Errorf("steps[%d].retain: as is required", index)
		}
	}

	return nil
}

// validateValue checks that exactly one value arm is set, recursively.
func validateValue(path string, v *Value) error {
	arms := 0
	if v.Null != nil {
		arms++
	}
	if v.String != nil {
		arms++
	}
	if v.Int != nil {
		arms++
	}
	if v.Bool != nil {
		arms++
	}
	if v.Array != nil {
		arms++
	}
	if v.Object != nil {
		arms++
	}
	if v.Ref != nil {
		arms++
	}
	if arms == 0 {
		return fmt.Errorf("%s: one of null, string, int, bool, array, object, ref is required", path)
	}
	if arms > 1 {
		return fmt.Errorf("%s: exactly one value kind allowed, found %d", path, arms)
	}

	if v.Null != nil && !*v.Null {
		return fmt.Errorf("%s: null must be true", path)
	}

	for i, elem := range v.Array {
		if err := validateValue(fmt.Sprintf("%s.array[%d]", path, i), &elem); err != nil {
			return err
		}
	}
	for key, elem := range v.Object {
		if err := validateValue(fmt.Sprintf("%s.object[%s]", path, key), &elem); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion.
func validateAssertion(index int, a *Assertion) error {
	kinds := 0
	if a.TraceContains != nil {
		kinds++
	}
	if a.TraceOrder != nil {
		kinds++
	}
	if a.TraceCount != nil {
		kinds++
	}
	if a.SharedState != nil {
		kinds++
	}
	if kinds == 0 {
		return fmt.Errorf("assertions[%d]: one of trace_contains, trace_order, trace_count, shared_state is required", index)
	}
	if kinds > 1 {
		return fmt.Errorf("assertions[%d]: exactly one assertion type allowed, found %d", index, kinds)
	}

	switch {
	case a.TraceContains != nil:
		if *a.TraceContains == (EventMatch{}) {
			return fmt.Errorf("assertions[%d].trace_contains: at least one match field is required", index)
		}
	case a.TraceOrder != nil:
		if len(a.TraceOrder) < 2 {
			return fmt.Errorf("assertions[%d].trace_order: at least two event kinds are required", index)
		}
	case a.SharedState != nil:
		if a.SharedState.Class == "" {
			return fmt.Errorf("assertions[%d].shared_state: class is required", index)
		}
		if a.SharedState.Field == "" {
			return fmt.Errorf("assertions[%d].shared_state: field is required", index)
		}
		if err := validateValue(fmt.Sprintf("assertions[%d].shared_state.equals", index), &a.SharedState.Equals); err != nil {
			return err
		}
	}

	return nil
}
