package harness

import (
	"fmt"
	"strings"

	"github.com/rwp0/Cor/internal/decl"
	"github.com/rwp0/Cor/internal/object"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []object.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, formatEvent(ev))
	}

	return buf.String()
}

// formatEvent renders one event as a compact single line.
func formatEvent(ev object.Event) string {
	var b strings.Builder
	b.WriteString(string(ev.Kind))
	if ev.Class != "" {
		b.WriteString(" ")
		b.WriteString(ev.Class)
	}
	if ev.Method != "" {
		b.WriteString(".")
		b.WriteString(ev.Method)
	}
	if ev.Owner != "" {
		fmt.Fprintf(&b, " owner=%s", ev.Owner)
	}
	if ev.Handle != "" {
		fmt.Fprintf(&b, " handle=%s", ev.Handle)
	}
	return b.String()
}

// evaluateAssertions checks every explicit assertion, recording each
// failure on the result. Assertions run over the final trace and
// state, so one failing assertion does not stop the rest.
func (h *Harness) evaluateAssertions(assertions []Assertion) {
	for i := range assertions {
		if err := h.evaluateAssertion(&assertions[i]); err != nil {
			h.result.AddError("assertions[%d]: %v", i, err)
		}
	}
}

func (h *Harness) evaluateAssertion(a *Assertion) error {
	switch {
	case a.TraceContains != nil:
		return h.assertTraceContains(*a.TraceContains)
	case a.TraceOrder != nil:
		return h.assertTraceOrder(a.TraceOrder)
	case a.TraceCount != nil:
		return h.assertTraceCount(*a.TraceCount)
	case a.SharedState != nil:
		return h.assertSharedState(*a.SharedState)
	}
	return nil
}

// matchEvent reports whether an event satisfies the given match
// fields. Empty fields are wildcards. The handle field is a scenario
// alias and matches the aliased handle's id; an unknown alias matches
// nothing.
func (h *Harness) matchEvent(ev object.Event, kind, class, method, owner, alias string) bool {
	if kind != "" && string(ev.Kind) != kind {
		return false
	}
	if class != "" && ev.Class != class {
		return false
	}
	if method != "" && ev.Method != method {
		return false
	}
	if owner != "" && ev.Owner != owner {
		return false
	}
	if alias != "" {
		hd, ok := h.handles[alias]
		if !ok || ev.Handle != hd.ID() {
			return false
		}
	}
	return true
}

// describeMatch renders the non-empty match fields for messages.
func describeMatch(kind, class, method, owner, alias string) string {
	var parts []string
	if kind != "" {
		parts = append(parts, "kind="+kind)
	}
	if class != "" {
		parts = append(parts, "class="+class)
	}
	if method != "" {
		parts = append(parts, "method="+method)
	}
	if owner != "" {
		parts = append(parts, "owner="+owner)
	}
	if alias != "" {
		parts = append(parts, "handle="+alias)
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that at least one trace event matches.
func (h *Harness) assertTraceContains(m EventMatch) error {
	for _, ev := range h.result.Trace {
		if h.matchEvent(ev, m.Kind, m.Class, m.Method, m.Owner, m.Handle) {
			return nil
		}
	}

	return &AssertionError{
		Type:     "trace_contains",
		Expected: fmt.Sprintf("event matching %s", describeMatch(m.Kind, m.Class, m.Method, m.Owner, m.Handle)),
		Actual:   "not found in trace",
		Trace:    h.result.Trace,
	}
}

// assertTraceOrder checks that the first occurrences of the listed
// event kinds appear in the given order. The kinds don't need to be
// consecutive - intervening events are allowed.
func (h *Harness) assertTraceOrder(kinds []string) error {
	// First position of each expected kind, 1-indexed for messages.
	positions := make(map[string]int)
	for i, ev := range h.result.Trace {
		for _, kind := range kinds {
			if string(ev.Kind) == kind && positions[kind] == 0 {
				positions[kind] = i + 1
			}
		}
	}

	for _, kind := range kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("all event kinds present: %v", kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    h.result.Trace,
			}
		}
	}

	for i := 1; i < len(kinds); i++ {
		prev := kinds[i-1]
		curr := kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("event kinds in order: %v", kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: h.result.Trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that exactly Count events match.
func (h *Harness) assertTraceCount(m CountMatch) error {
	count := 0
	for _, ev := range h.result.Trace {
		if h.matchEvent(ev, m.Kind, m.Class, m.Method, m.Owner, m.Handle) {
			count++
		}
	}

	if count != m.Count {
		return &AssertionError{
			Type:     "trace_count",
			Expected: fmt.Sprintf("%d events matching %s", m.Count, describeMatch(m.Kind, m.Class, m.Method, m.Owner, m.Handle)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    h.result.Trace,
		}
	}

	return nil
}

// assertSharedState checks the final value of one shared cell.
func (h *Harness) assertSharedState(m SharedStateMatch) error {
	cls, err := h.runtime.Linearize(m.Class)
	if err != nil {
		return &AssertionError{
			Type:     "shared_state",
			Expected: fmt.Sprintf("class %s linearized", m.Class),
			Actual:   err.Error(),
			Trace:    h.result.Trace,
		}
	}

	owner := m.Owner
	if owner == "" {
		owner = m.Class
	}

	got, ok := cls.SharedValue(owner, m.Field)
	if !ok {
		return &AssertionError{
			Type:     "shared_state",
			Expected: fmt.Sprintf("shared field %s.%s visible on %s", owner, m.Field, m.Class),
			Actual:   "no such shared field",
			Trace:    h.result.Trace,
		}
	}

	want, err := h.convertValue(&m.Equals)
	if err != nil {
		return &AssertionError{
			Type:     "shared_state",
			Expected: fmt.Sprintf("shared field %s.%s comparable", owner, m.Field),
			Actual:   fmt.Sprintf("bad expected value: %v", err),
			Trace:    h.result.Trace,
		}
	}

	if !decl.Equal(want, got) {
		return &AssertionError{
			Type:     "shared_state",
			Expected: fmt.Sprintf("%s.%s == %s", owner, m.Field, renderValue(want)),
			Actual:   renderValue(got),
			Trace:    h.result.Trace,
		}
	}

	return nil
}
