// Package hostrt is an in-process stand-in for the Drift host runtime:
// a table of boxed, reference-counted objects, the runtime-wide
// execution lock, and the native-memory arena that backs Environment
// and Closure records. The JIT engine binds the runtime symbols from
// internal/abi to methods of this package, which lets compiled
// wrappers run end-to-end without a foreign runtime process.
package hostrt

import (
	"fmt"
)

// Handle identifies one boxed object. The zero handle is the null
// reference and never names a live object.
type Handle uint64

// NullHandle is the null object reference.
const NullHandle Handle = 0

// Kind tags the payload of a boxed object.
type Kind uint8

const (
	// KindNone is the unit object.
	KindNone Kind = iota
	// KindInt boxes a 64-bit signed integer.
	KindInt
	// KindFloat boxes a double.
	KindFloat
	// KindStr boxes an immutable string.
	KindStr
	// KindList boxes an ordered sequence of handles.
	KindList
	// KindDict boxes a name-to-handle mapping.
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "invalid"
	}
}

// Object is one boxed value. Payload fields beyond the kind's own are
// zero.
type Object struct {
	Refcount int64
	Kind     Kind

	Int    int64
	Float  float64
	Str    string
	Items  []Handle
	Fields map[string]Handle
}

// ValueError reports a payload access against the wrong object kind or
// a dead handle.
type ValueError struct {
	Op     string
	Handle Handle
	Want   Kind
	Got    Kind
	Dead   bool
}

func (e *ValueError) Error() string {
	if e.Dead {
		return fmt.Sprintf("%s: handle %d is not a live object", e.Op, e.Handle)
	}
	return fmt.Sprintf("%s: handle %d is %s, want %s", e.Op, e.Handle, e.Got, e.Want)
}

// Runtime owns the object table, the execution lock and the native
// arena. Not safe for concurrent use; callers serialize access the
// same way the host runtime's execution lock does.
type Runtime struct {
	objects map[Handle]*Object
	next    Handle
	lock    ExecLock
	arena   *Arena

	// pending is the raised-but-not-yet-taken error, mirroring the
	// host convention of a sentinel return plus an error indicator.
	pending error

	none Handle
}

// NewRuntime creates an empty runtime with a live unit object.
func NewRuntime() *Runtime {
	rt := &Runtime{
		objects: make(map[Handle]*Object),
		next:    1,
		arena:   NewArena(),
	}
	rt.none = rt.box(&Object{Kind: KindNone, Refcount: 1})
	return rt
}

// Lock returns the runtime's execution lock.
func (rt *Runtime) Lock() *ExecLock { return &rt.lock }

// Arena returns the runtime's native-memory arena.
func (rt *Runtime) Arena() *Arena { return rt.arena }

func (rt *Runtime) box(o *Object) Handle {
	h := rt.next
	rt.next++
	rt.objects[h] = o
	return h
}

// None returns the shared unit object.
func (rt *Runtime) None() Handle {
	rt.Retain(rt.none)
	return rt.none
}

// NewInt boxes an integer with refcount one.
func (rt *Runtime) NewInt(v int64) Handle {
	return rt.box(&Object{Kind: KindInt, Refcount: 1, Int: v})
}

// NewFloat boxes a double with refcount one.
func (rt *Runtime) NewFloat(v float64) Handle {
	return rt.box(&Object{Kind: KindFloat, Refcount: 1, Float: v})
}

// NewStr boxes a string with refcount one.
func (rt *Runtime) NewStr(s string) Handle {
	return rt.box(&Object{Kind: KindStr, Refcount: 1, Str: s})
}

// NewList boxes a sequence. The list takes over the caller's reference
// to each item.
func (rt *Runtime) NewList(items ...Handle) Handle {
	return rt.box(&Object{Kind: KindList, Refcount: 1, Items: items})
}

// NewDict boxes an empty mapping.
func (rt *Runtime) NewDict() Handle {
	return rt.box(&Object{Kind: KindDict, Refcount: 1, Fields: make(map[string]Handle)})
}

// Get resolves a handle to its object.
func (rt *Runtime) Get(h Handle) (*Object, bool) {
	o, ok := rt.objects[h]
	return o, ok
}

// Refcount returns the current count, or zero for a dead or null
// handle.
func (rt *Runtime) Refcount(h Handle) int64 {
	if o, ok := rt.objects[h]; ok {
		return o.Refcount
	}
	return 0
}

// Retain increments the count. Null handles are ignored, matching the
// native drift_incref contract.
func (rt *Runtime) Retain(h Handle) {
	if h == NullHandle {
		return
	}
	if o, ok := rt.objects[h]; ok {
		o.Refcount++
	}
}

// Release decrements the count and destroys the object at zero,
// releasing owned references recursively. Null handles are ignored.
func (rt *Runtime) Release(h Handle) {
	if h == NullHandle {
		return
	}
	o, ok := rt.objects[h]
	if !ok {
		return
	}
	o.Refcount--
	if o.Refcount > 0 {
		return
	}
	delete(rt.objects, h)
	for _, item := range o.Items {
		rt.Release(item)
	}
	for _, v := range o.Fields {
		rt.Release(v)
	}
}

// IntValue reads a boxed integer.
func (rt *Runtime) IntValue(h Handle) (int64, error) {
	o, ok := rt.objects[h]
	if !ok {
		return 0, &ValueError{Op: "unbox int", Handle: h, Dead: true}
	}
	if o.Kind != KindInt {
		return 0, &ValueError{Op: "unbox int", Handle: h, Want: KindInt, Got: o.Kind}
	}
	return o.Int, nil
}

// FloatValue reads a boxed double, widening a boxed integer.
func (rt *Runtime) FloatValue(h Handle) (float64, error) {
	o, ok := rt.objects[h]
	if !ok {
		return 0, &ValueError{Op: "unbox float", Handle: h, Dead: true}
	}
	switch o.Kind {
	case KindFloat:
		return o.Float, nil
	case KindInt:
		return float64(o.Int), nil
	default:
		return 0, &ValueError{Op: "unbox float", Handle: h, Want: KindFloat, Got: o.Kind}
	}
}

// SetError records a raised error. A later error does not displace an
// earlier pending one.
func (rt *Runtime) SetError(err error) {
	if rt.pending == nil {
		rt.pending = err
	}
}

// ErrOccurred reports whether an error is pending.
func (rt *Runtime) ErrOccurred() bool { return rt.pending != nil }

// TakeError returns and clears the pending error.
func (rt *Runtime) TakeError() error {
	err := rt.pending
	rt.pending = nil
	return err
}

// LiveObjects counts live boxed objects, excluding the shared unit
// object. Used by tests as a leak check.
func (rt *Runtime) LiveObjects() int {
	n := len(rt.objects)
	if _, ok := rt.objects[rt.none]; ok {
		n--
	}
	return n
}
