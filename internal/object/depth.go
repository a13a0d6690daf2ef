package object

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth bounds nested dispatch per top-level invocation.
const DefaultMaxDepth = 256

// depthGuard tracks nested dispatch depth within one top-level
// invocation: method bodies invoking further methods, accessors, and
// next-implementation steps all count. The guard catches unbounded
// mutual recursion between bodies, which the registration-time checks
// cannot see (bodies are opaque).
//
// One guard exists per top-level Invoke or Instantiate call; bodies
// run on the caller's goroutine, so no locking is needed.
type depthGuard struct {
	limit   int
	current int
}

func newDepthGuard(limit int) *depthGuard {
	return &depthGuard{limit: limit}
}

// enter records one nesting step and validates against the limit.
func (g *depthGuard) enter(class, method string) error {
	g.current++
	if g.current > g.limit {
		return &DepthError{
			Class:  class,
			Method: method,
			Depth:  g.current,
			Limit:  g.limit,
		}
	}
	return nil
}

// exit unwinds one nesting step.
func (g *depthGuard) exit() {
	g.current--
}

// DepthError is returned when an invocation nests past the configured
// limit. It terminates the whole top-level invocation.
type DepthError struct {
	Class  string // dispatch target's class at the point of failure
	Method string // method being entered
	Depth  int    // nesting depth reached
	Limit  int    // configured maximum
}

// Error implements the error interface.
func (e *DepthError) Error() string {
	return fmt.Sprintf("dispatch depth exceeded on %s.%s: %d steps > %d limit",
		e.Class, e.Method, e.Depth, e.Limit)
}

// IsDepthError returns true if the error is a DepthError.
// Uses errors.As to handle wrapped errors.
func IsDepthError(err error) bool {
	var de *DepthError
	return errors.As(err, &de)
}
