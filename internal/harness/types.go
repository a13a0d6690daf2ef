package harness

import (
	"fmt"

	"github.com/rwp0/Cor/internal/object"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success. True when every step
	// expectation, every built-in lifecycle property, and every
	// explicit assertion held.
	Pass bool `json:"pass"`

	// Trace contains every runtime event the scenario produced, in
	// emission order. Used by trace assertions and golden comparison.
	Trace []object.Event `json:"trace"`

	// Errors contains failure messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []object.Event{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
