package harness

import (
	"slices"

	"github.com/rwp0/Cor/internal/object"
)

// Built-in lifecycle properties. These hold for every well-behaved
// runtime regardless of what the scenario does, so the harness checks
// them on every run:
//
//  1. Construction runs adjust hooks root-first and completely; an
//     aborted construction stops at the failing hook.
//  2. Teardown runs destruct hooks child-first, completely, at most
//     once per instance, and only after the triggering release.
//  3. No dispatch lands on a handle after its teardown began.

// checkLifecycleProperties validates the built-in properties over the
// result trace, recording each violation on the result.
func (h *Harness) checkLifecycleProperties() {
	h.checkAdjustRuns()
	h.checkDestructRuns()
	h.checkNoInvokeAfterDestruct()
}

// declaredHookOwners returns the class's hook owner sequence in
// declared firing order: root-first for adjust, child-first for
// destruct.
func (h *Harness) declaredHookOwners(class string, destruct bool) ([]string, bool) {
	cls, err := h.runtime.Linearize(class)
	if err != nil {
		h.result.AddError("property: linearize %s: %v", class, err)
		return nil, false
	}
	if destruct {
		return cls.DestructOwners(), true
	}
	return cls.AdjustOwners(), true
}

// checkAdjustRuns verifies that every construction walked its adjust
// hooks in the declared root-first order. A completed construction
// must have run the full sequence; an aborted one stops at the hook
// that failed, so its run is a non-empty prefix.
func (h *Harness) checkAdjustRuns() {
	type run struct {
		class   string
		owners  []string
		aborted bool
	}
	runs := make(map[string]*run)
	var order []string

	for _, ev := range h.result.Trace {
		switch ev.Kind {
		case object.EventInstantiate:
			runs[ev.Handle] = &run{class: ev.Class}
			order = append(order, ev.Handle)
		case object.EventAdjust:
			if r, ok := runs[ev.Handle]; ok {
				r.owners = append(r.owners, ev.Owner)
			}
		case object.EventAbort:
			if r, ok := runs[ev.Handle]; ok {
				r.aborted = true
			}
		}
	}

	for _, handle := range order {
		r := runs[handle]
		declared, ok := h.declaredHookOwners(r.class, false)
		if !ok {
			continue
		}

		if r.aborted {
			if len(r.owners) == 0 || len(r.owners) > len(declared) ||
				!slices.Equal(r.owners, declared[:len(r.owners)]) {
				h.result.AddError("property: aborted construction of %s (%s) ran adjust owners %v, want a prefix of %v",
					r.class, handle, r.owners, declared)
			}
			continue
		}
		if !slices.Equal(r.owners, declared) {
			h.result.AddError("property: construction of %s (%s) ran adjust owners %v, want root-first %v",
				r.class, handle, r.owners, declared)
		}
	}
}

// checkDestructRuns verifies that every teardown walked its destruct
// hooks child-first, exactly once, after the triggering handle's
// release. A second teardown for the same handle would double the
// owner sequence and fail the comparison.
func (h *Harness) checkDestructRuns() {
	type run struct {
		class  string
		owners []string
	}
	released := make(map[string]bool)
	runs := make(map[string]*run)
	var order []string

	for _, ev := range h.result.Trace {
		switch ev.Kind {
		case object.EventRelease:
			released[ev.Handle] = true
		case object.EventDestruct:
			if !released[ev.Handle] {
				h.result.AddError("property: destruct for %s (%s) before its release", ev.Handle, ev.Class)
			}
			r, ok := runs[ev.Handle]
			if !ok {
				r = &run{class: ev.Class}
				runs[ev.Handle] = r
				order = append(order, ev.Handle)
			}
			r.owners = append(r.owners, ev.Owner)
		}
	}

	for _, handle := range order {
		r := runs[handle]
		declared, ok := h.declaredHookOwners(r.class, true)
		if !ok {
			continue
		}
		if !slices.Equal(r.owners, declared) {
			h.result.AddError("property: teardown of %s (%s) ran destruct owners %v, want child-first %v once",
				r.class, handle, r.owners, declared)
		}
	}
}

// checkNoInvokeAfterDestruct verifies that no dispatch landed on a
// handle after its teardown began. Class-scoped invokes carry no
// handle and are exempt.
func (h *Harness) checkNoInvokeAfterDestruct() {
	firstDestruct := make(map[string]int64)
	for _, ev := range h.result.Trace {
		if ev.Kind == object.EventDestruct {
			if _, ok := firstDestruct[ev.Handle]; !ok {
				firstDestruct[ev.Handle] = ev.Seq
			}
		}
	}

	for _, ev := range h.result.Trace {
		if ev.Kind != object.EventInvoke || ev.Handle == "" {
			continue
		}
		if seq, ok := firstDestruct[ev.Handle]; ok && ev.Seq > seq {
			h.result.AddError("property: invoke %s.%s on %s at seq %d after its destruct at seq %d",
				ev.Class, ev.Method, ev.Handle, ev.Seq, seq)
		}
	}
}
