// Package nimpeller is the runtime support of the generated Impeller
// bindings: reference counted handle ownership, library loading and the
// marshalling helpers the wrappers call.
package nimpeller

import (
	"runtime"
	"sync/atomic"
)

// Lifecycle binds the native retain and release of one handle type. The
// generated code implements it on an empty struct per handle.
type Lifecycle interface {
	UnsafeRetain(ptr uintptr)
	UnsafeRelease(ptr uintptr)
}

// Handle owns exactly one strong reference to a native object. It must not
// be copied; share the *Handle or retain a new reference instead.
type Handle[L Lifecycle] struct {
	_        noCopy
	ptr      uintptr
	released atomic.Bool
	cleanup  runtime.Cleanup
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Adopt takes ownership of a reference the caller already owns, such as the
// result of a New function. A zero pointer yields nil.
func Adopt[L Lifecycle](ptr uintptr) *Handle[L] {
	if ptr == 0 {
		return nil
	}
	return newHandle[L](ptr)
}

// RetainFromNative retains a borrowed reference and owns the new one.
func RetainFromNative[L Lifecycle](ptr uintptr) *Handle[L] {
	if ptr == 0 {
		panic("nimpeller: RetainFromNative called with a nil pointer")
	}

	var l L
	l.UnsafeRetain(ptr)
	return newHandle[L](ptr)
}

func newHandle[L Lifecycle](ptr uintptr) *Handle[L] {
	h := &Handle[L]{ptr: ptr}
	h.cleanup = runtime.AddCleanup(h, release[L], ptr)
	return h
}

func release[L Lifecycle](ptr uintptr) {
	var l L
	l.UnsafeRelease(ptr)
}

// Ptr returns the native pointer. A nil handle yields zero, so optional
// arguments can be passed straight through.
func (h *Handle[L]) Ptr() uintptr {
	if h == nil {
		return 0
	}
	if h.released.Load() {
		panic("nimpeller: use of a released handle")
	}
	return h.ptr
}

// Release drops the owned reference. Only the first call releases.
func (h *Handle[L]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}

	h.cleanup.Stop()
	release[L](h.ptr)
}

// Released reports whether Release was called.
func (h *Handle[L]) Released() bool {
	return h == nil || h.released.Load()
}
