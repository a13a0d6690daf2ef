package object

import (
	"fmt"

	"github.com/rwp0/Cor/internal/decl"
)

// Target is an invocation receiver: a *Handle for instance dispatch or
// a *ClassTarget for class dispatch.
type Target interface {
	dispatchOn() (*Class, *Handle)
}

// ClassTarget addresses a class itself, rather than one of its
// instances, as the receiver of an invocation. Only class-scoped
// members and the reserved constructor are reachable through it.
type ClassTarget struct {
	class *Class
}

// Name reports the fully qualified class name.
func (t *ClassTarget) Name() string { return t.class.name }

// Class exposes the linearized class behind the target.
func (t *ClassTarget) Class() *Class { return t.class }

func (t *ClassTarget) dispatchOn() (*Class, *Handle) { return t.class, nil }

func (h *Handle) dispatchOn() (*Class, *Handle) { return h.inst.class, h }

// Invoke dispatches method on target. The reserved member "new" routes
// to the construction protocol and yields a Ref to the new instance;
// everything else resolves through the receiver class's dispatch
// table, innermost implementation first.
func (rt *Runtime) Invoke(target Target, method string, args []decl.Value) (decl.Value, error) {
	cls, h := target.dispatchOn()
	var handleID string
	if h != nil {
		handleID = h.ID()
		if h.isReleased() || !h.inst.live() {
			return nil, &DispatchError{
				Code:    ErrCodeInstanceReleased,
				Message: "instance has been released",
				Class:   cls.name,
				Method:  method,
			}
		}
	}
	if method == decl.MethodNew {
		nh, err := rt.construct(cls, args)
		if err != nil {
			return nil, err
		}
		return nh.Ref(), nil
	}
	var inst *instance
	if h != nil {
		inst = h.inst
	}
	rt.emit(Event{Kind: EventInvoke, Class: cls.name, Method: method, Handle: handleID})
	return rt.invokeOn(cls, inst, method, args, newDepthGuard(rt.maxDepth))
}

func (rt *Runtime) invokeOn(cls *Class, inst *instance, method string, args []decl.Value, depth *depthGuard) (decl.Value, error) {
	entry, ok := cls.methods[method]
	if !ok {
		return nil, &DispatchError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("no implementation of %q anywhere on the dispatch chain", method),
			Class:   cls.name,
			Method:  method,
		}
	}
	inv := &invocation{rt: rt, class: cls, inst: inst, entry: entry, depth: depth}
	return inv.dispatch(0, args)
}

// invocation tracks one method call against one dispatch list. The
// cursor is shared by every Next call in the call tree: each one moves
// it a single step down the list, so two plain Next calls against a
// two-entry list walk off the end no matter which body issued the
// second one.
type invocation struct {
	rt     *Runtime
	class  *Class
	inst   *instance
	entry  *methodEntry
	cursor int
	depth  *depthGuard
}

func (inv *invocation) dispatch(idx int, args []decl.Value) (decl.Value, error) {
	if idx >= len(inv.entry.impls) {
		return nil, &DispatchError{
			Code:    ErrCodeNoNextMethod,
			Message: "dispatch list exhausted",
			Class:   inv.class.name,
			Method:  inv.entry.name,
		}
	}
	impl := inv.entry.impls[idx]
	if impl.scope == decl.DispatchInstance && inv.inst == nil {
		return nil, &DispatchError{
			Code:    ErrCodeInstanceMethodOnClass,
			Message: fmt.Sprintf("%q needs an instance receiver", inv.entry.name),
			Class:   inv.class.name,
			Method:  inv.entry.name,
		}
	}
	if len(args) != impl.arity {
		return nil, &DispatchError{
			Code: ErrCodeArityMismatch,
			Message: fmt.Sprintf("%q declared by %q takes %d argument(s), got %d",
				inv.entry.name, impl.owner, impl.arity, len(args)),
			Class:  inv.class.name,
			Method: inv.entry.name,
		}
	}
	if err := inv.depth.enter(inv.class.name, inv.entry.name); err != nil {
		return nil, err
	}
	defer inv.depth.exit()
	inv.cursor = idx
	fr := &frame{
		rt:    inv.rt,
		class: inv.class,
		inst:  inv.inst,
		owner: impl.owner,
		scope: impl.scope,
		depth: inv.depth,
		next: func(nextArgs []decl.Value) (decl.Value, error) {
			inv.rt.emit(Event{Kind: EventNext, Class: inv.class.name, Method: inv.entry.name, Owner: impl.owner})
			return inv.dispatch(inv.cursor+1, nextArgs)
		},
	}
	return impl.body(fr, args)
}

// frame binds a running body to its receiver. Field access is scoped
// to the declaring class or role recorded in owner, so an inherited
// body keeps resolving its own slots even when a subclass declares a
// field with the same name.
type frame struct {
	rt    *Runtime
	class *Class
	inst  *instance
	owner string
	scope decl.DispatchScope
	depth *depthGuard
	next  func(args []decl.Value) (decl.Value, error)
}

func (rt *Runtime) hookFrame(cls *Class, inst *instance, owner string) *frame {
	return &frame{
		rt:    rt,
		class: cls,
		inst:  inst,
		owner: owner,
		scope: decl.DispatchInstance,
		depth: newDepthGuard(rt.maxDepth),
	}
}

func (f *frame) ClassName() string { return f.class.name }

func (f *frame) Get(field string) (decl.Value, error) {
	if f.scope == decl.DispatchInstance && f.inst != nil {
		if idx, ok := f.class.slotFor(f.owner, field); ok {
			return f.inst.slots[idx], nil
		}
	}
	if cell, ok := f.class.sharedCellFor(f.owner, field); ok {
		return cell.get(), nil
	}
	return nil, fmt.Errorf("field %q is not visible to %q", field, f.owner)
}

func (f *frame) Set(field string, v decl.Value) error {
	if f.scope == decl.DispatchInstance && f.inst != nil {
		if idx, ok := f.class.slotFor(f.owner, field); ok {
			f.inst.slots[idx] = v
			return nil
		}
	}
	if cell, ok := f.class.sharedCellFor(f.owner, field); ok {
		cell.set(v)
		return nil
	}
	return fmt.Errorf("field %q is not visible to %q", field, f.owner)
}

// Call re-enters dispatch for another method on the same receiver.
// Class-scoped bodies never leak the instance to their callees, and
// once destruction has begun only destruct hooks themselves may run,
// so dispatch through a dying instance is refused.
func (f *frame) Call(method string, args []decl.Value) (decl.Value, error) {
	inst := f.inst
	if f.scope == decl.DispatchClass {
		inst = nil
	}
	if inst != nil && !inst.live() {
		return nil, &DispatchError{
			Code:    ErrCodeInstanceReleased,
			Message: "instance has been released",
			Class:   f.class.name,
			Method:  method,
		}
	}
	f.rt.emit(Event{Kind: EventInvoke, Class: f.class.name, Method: method})
	return f.rt.invokeOn(f.class, inst, method, args, f.depth)
}

func (f *frame) Next(args []decl.Value) (decl.Value, error) {
	if f.next == nil {
		return nil, &DispatchError{
			Code:    ErrCodeNoNextMethod,
			Message: "lifecycle hooks are not part of any dispatch list",
			Class:   f.class.name,
		}
	}
	return f.next(args)
}
