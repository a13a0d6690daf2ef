package object

import (
	"fmt"
)

// Retain mints an additional owning handle for the instance behind h.
// The instance is not torn down until every handle has been released.
func (rt *Runtime) Retain(h *Handle) (*Handle, error) {
	if h.isReleased() || !h.inst.addRef() {
		return nil, &DispatchError{
			Code:    ErrCodeInstanceReleased,
			Message: "cannot retain a released instance",
			Class:   h.ClassName(),
		}
	}
	nh := &Handle{id: rt.ids.Generate(), inst: h.inst}
	h.inst.trackID(nh.id)
	rt.addHandle(nh)
	rt.emit(Event{Kind: EventRetain, Class: nh.ClassName(), Handle: nh.id})
	return nh, nil
}

// Release drops one owning reference. Releasing the last live handle
// runs the destruction protocol synchronously, before Release returns.
// A handle can be released once; a second release is an error and does
// not touch the reference count.
func (rt *Runtime) Release(h *Handle) error {
	if !h.markReleased() {
		return fmt.Errorf("release %s: handle already released", h.id)
	}
	last := h.inst.dropRef()
	rt.emit(Event{Kind: EventRelease, Class: h.ClassName(), Handle: h.id})
	if last {
		rt.destroy(h.inst, h.id)
	}
	return nil
}

// destroy runs destruct hooks child-first and unregisters every handle
// that ever pointed at the instance. A failing hook is logged and the
// walk continues; teardown never surfaces an error to the releasing
// caller.
func (rt *Runtime) destroy(inst *instance, trigger string) {
	cls := inst.class
	for _, hk := range cls.destruct {
		rt.emit(Event{Kind: EventDestruct, Class: cls.name, Owner: hk.owner, Handle: trigger})
		if err := hk.body(rt.hookFrame(cls, inst, hk.owner)); err != nil {
			rt.log.Error("destruct hook failed",
				"class", cls.name,
				"owner", hk.owner,
				"error", err)
		}
	}
	rt.removeHandles(inst.trackedIDs())
}
