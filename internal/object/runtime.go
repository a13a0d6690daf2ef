package object

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/rwp0/Cor/internal/decl"
)

// Runtime owns the declaration store, the registry of linearized
// classes, and every live instance handle. It is the embedding
// surface: front ends register declarations, instantiate, invoke, and
// release through it. A Runtime is safe for concurrent registration
// and lookup; method bodies themselves run single-threaded per
// invocation.
type Runtime struct {
	store    *DeclStore
	registry *registry
	log      *slog.Logger
	clock    Clock
	ids      IDGenerator
	observer Observer
	maxDepth int

	mu      sync.Mutex
	handles map[string]*Handle
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger routes runtime logging to log.
func WithLogger(log *slog.Logger) Option {
	return func(rt *Runtime) { rt.log = log }
}

// WithClock substitutes the clock that sequences runtime events.
func WithClock(c Clock) Option {
	return func(rt *Runtime) { rt.clock = c }
}

// WithHandleIDs substitutes the handle id generator.
func WithHandleIDs(g IDGenerator) Option {
	return func(rt *Runtime) { rt.ids = g }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) { rt.observer = o }
}

// WithMaxDepth bounds nested dispatch within one top-level invocation.
func WithMaxDepth(n int) Option {
	return func(rt *Runtime) { rt.maxDepth = n }
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		store:    NewDeclStore(),
		log:      slog.Default(),
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.registry = newRegistry(rt.store)
	rt.registry.onLinearized = func(c *Class) {
		rt.emit(Event{Kind: EventLinearize, Class: c.name, Detail: decl.Object{
			"version":     decl.String(c.version.String()),
			"fingerprint": decl.String(c.fingerprint),
		}})
	}
	return rt
}

// Event is one observable runtime transition. Seq comes from the
// runtime clock and totally orders events within a single runtime.
type Event struct {
	Seq    int64
	Kind   EventKind
	Class  string
	Method string
	Owner  string
	Handle string
	Detail decl.Object
}

// EventKind names the lifecycle transition an Event records.
type EventKind string

const (
	EventRegister    EventKind = "register"
	EventLinearize   EventKind = "linearize"
	EventInstantiate EventKind = "instantiate"
	EventAdjust      EventKind = "adjust"
	EventInvoke      EventKind = "invoke"
	EventNext        EventKind = "next"
	EventRetain      EventKind = "retain"
	EventRelease     EventKind = "release"
	EventDestruct    EventKind = "destruct"
	EventAbort       EventKind = "abort"
)

// Observer receives every runtime event synchronously. A non-nil error
// is logged and otherwise ignored: observation must never change
// program behavior.
type Observer interface {
	LifecycleEvent(ev Event) error
}

func (rt *Runtime) emit(ev Event) {
	ev.Seq = rt.clock.Next()
	rt.log.Debug("runtime event",
		"seq", ev.Seq,
		"kind", string(ev.Kind),
		"class", ev.Class,
		"method", ev.Method,
		"owner", ev.Owner,
		"handle", ev.Handle)
	if rt.observer == nil {
		return
	}
	if err := rt.observer.LifecycleEvent(ev); err != nil {
		rt.log.Warn("observer rejected event",
			"seq", ev.Seq,
			"kind", string(ev.Kind),
			"error", err)
	}
}

// RegisterClass validates and stores a class declaration. Every
// version registers independently; linearization happens lazily on
// first use.
func (rt *Runtime) RegisterClass(d *decl.ClassDecl) error {
	if err := rt.store.RegisterClass(d); err != nil {
		return err
	}
	rt.emit(Event{Kind: EventRegister, Class: d.Name, Detail: decl.Object{
		"kind":        decl.String("class"),
		"version":     decl.String(decl.MustVersion(d.Version).String()),
		"fingerprint": decl.String(decl.MustClassFingerprint(d)),
	}})
	return nil
}

// RegisterRole validates and stores a role declaration.
func (rt *Runtime) RegisterRole(d *decl.RoleDecl) error {
	if err := rt.store.RegisterRole(d); err != nil {
		return err
	}
	rt.emit(Event{Kind: EventRegister, Class: d.Name, Detail: decl.Object{
		"kind":        decl.String("role"),
		"fingerprint": decl.String(decl.MustRoleFingerprint(d)),
	}})
	return nil
}

// Linearize resolves className at its highest registered version,
// building (and caching) the flattened class.
func (rt *Runtime) Linearize(className string) (*Class, error) {
	return rt.registry.resolve(className, nil)
}

// LinearizeAt resolves className at the highest registered version
// satisfying min, or any version when min is nil.
func (rt *Runtime) LinearizeAt(className string, min *semver.Version) (*Class, error) {
	return rt.registry.resolve(className, min)
}

// TargetClass resolves className into a class invocation target.
func (rt *Runtime) TargetClass(className string) (*ClassTarget, error) {
	cls, err := rt.registry.resolve(className, nil)
	if err != nil {
		return nil, err
	}
	return &ClassTarget{class: cls}, nil
}

// Deref resolves a Ref value back to the handle it names. Refs whose
// handle was released, or that never named a handle, fail the same
// way: the referent is unreachable.
func (rt *Runtime) Deref(ref decl.Ref) (*Handle, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	h, ok := rt.handles[string(ref)]
	if !ok {
		return nil, fmt.Errorf("deref %s: unknown handle", string(ref))
	}
	return h, nil
}

// Store exposes the declaration store.
func (rt *Runtime) Store() *DeclStore { return rt.store }

// LiveHandles reports how many handles are currently registered,
// including released handles whose instance still has other owners.
func (rt *Runtime) LiveHandles() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.handles)
}

func (rt *Runtime) addHandle(h *Handle) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.handles[h.id] = h
}

func (rt *Runtime) removeHandles(ids []string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, id := range ids {
		delete(rt.handles, id)
	}
}
