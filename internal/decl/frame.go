package decl

// Frame is the view a method or hook body gets of its receiver. The
// runtime binds one per scheduled body; bodies never see slot arrays,
// other declarers' fields, or the runtime itself.
//
// Get and Set resolve against the fields declared by the body's
// declaring class or role: instance slots first, then the shared cells
// visible to that declarer. In a class-scoped invocation there is no
// instance, so only shared cells resolve.
type Frame interface {
	// ClassName returns the most-specific class of the dispatch target.
	ClassName() string

	// Get reads a field declared by the body's declarer.
	Get(field string) (Value, error)

	// Set writes a field declared by the body's declarer.
	Set(field string, v Value) error

	// Call dispatches another method on the same receiver, from the
	// top of that method's dispatch list. Nested calls share the
	// invocation's depth budget, which is what bounds mutual
	// recursion between bodies.
	Call(method string, args []Value) (Value, error)

	// Next invokes the implementation one step further down the
	// dispatch list resolved for the current method. Every call
	// anywhere in one invocation advances the same cursor. Inside
	// lifecycle hooks Next always fails: hooks are not dispatched
	// through method resolution.
	Next(args []Value) (Value, error)
}

// Body is the executable part of a method. The runtime schedules it
// with a bound Frame and the call's arguments; it never interprets it.
type Body func(fr Frame, args []Value) (Value, error)

// HookBody is the executable part of a lifecycle hook. Hooks produce
// no value; an adjust hook returning an error aborts construction, a
// destruct hook returning an error is logged and teardown continues.
type HookBody func(fr Frame) error
