package host

import (
	"log/slog"
	"sync/atomic"
)

var handleSeq atomic.Uint64

// Handle is an opaque, reference-counted reference to a host object
// (display, window, application, filter, stream).
//
// The zero Handle is invalid. Copies of a Handle share the same reference
// count; the release function runs exactly once, when the count drops to zero.
type Handle struct {
	r *ref
}

type ref struct {
	id      uint64
	refs    atomic.Int64
	freed   atomic.Bool
	release func()
}

// NewHandle returns a Handle with one reference. release may be nil.
func NewHandle(release func()) Handle {
	r := &ref{
		id:      handleSeq.Add(1),
		release: release,
	}
	r.refs.Store(1)
	return Handle{r: r}
}

// ID returns a process-unique identifier for the referenced object, or 0 for
// the zero Handle.
func (h Handle) ID() uint64 {
	if h.r == nil {
		return 0
	}
	return h.r.id
}

// Valid reports whether the handle refers to a live host object.
func (h Handle) Valid() bool {
	return h.r != nil && !h.r.freed.Load()
}

// Retain adds a reference and returns the same handle.
// Retaining a freed handle returns the zero Handle.
func (h Handle) Retain() Handle {
	if !h.Valid() {
		return Handle{}
	}
	for {
		n := h.r.refs.Load()
		if n <= 0 {
			return Handle{}
		}
		if h.r.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// Release drops one reference. The host object is freed when the last
// reference goes away. Extra releases are ignored.
func (h Handle) Release() {
	if h.r == nil {
		return
	}
	for {
		n := h.r.refs.Load()
		if n <= 0 {
			slog.Debug("host: release on freed handle ignored", "handle", h.r.id)
			return
		}
		if h.r.refs.CompareAndSwap(n, n-1) {
			if n == 1 && h.r.freed.CompareAndSwap(false, true) && h.r.release != nil {
				h.r.release()
			}
			return
		}
	}
}
