package screenrelay

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// Snapshot is one enumeration of capturable content. It holds a reference on
// every display, window and application it lists until Release.
type Snapshot struct {
	Displays     []host.Display
	Windows      []host.Window
	Applications []host.Application

	content  *host.Content
	released atomic.Bool
}

// Release drops the snapshot's references. Safe to call more than once.
func (s *Snapshot) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.content.Release()
}

// Display returns the display at index in enumeration order.
func (s *Snapshot) Display(index int) (host.Display, error) {
	if index < 0 || index >= len(s.Displays) {
		return host.Display{}, fmt.Errorf("%w: display %d not found (%d available)",
			ErrContentUnavailable, index, len(s.Displays))
	}
	return s.Displays[index], nil
}

// ContentEnumerator queries the capture service for shareable content.
// Every request is a fresh host query; results are never cached.
type ContentEnumerator struct {
	svc host.Service
}

// NewContentEnumerator returns an enumerator backed by svc.
func NewContentEnumerator(svc host.Service) *ContentEnumerator {
	return &ContentEnumerator{svc: svc}
}

// RequestSnapshot issues one asynchronous content query. onComplete is
// invoked exactly once, on a host goroutine, with either a snapshot the
// caller must Release or an error wrapping ErrContentUnavailable.
func (e *ContentEnumerator) RequestSnapshot(onComplete func(*Snapshot, error)) {
	var done atomic.Bool
	e.svc.GetShareableContent(func(c *host.Content, err error) {
		if !done.CompareAndSwap(false, true) {
			slog.Warn("screen-relay: duplicate content completion ignored")
			c.Release()
			return
		}

		if err != nil {
			slog.Error("screen-relay: content enumeration failed", "error", err)
			onComplete(nil, fmt.Errorf("%w: %w", ErrContentUnavailable, err))
			return
		}
		if c == nil {
			onComplete(nil, fmt.Errorf("%w: empty result", ErrContentUnavailable))
			return
		}

		slog.Debug("screen-relay: content enumerated",
			"displays", len(c.Displays),
			"windows", len(c.Windows),
			"applications", len(c.Applications),
		)

		onComplete(&Snapshot{
			Displays:     c.Displays,
			Windows:      c.Windows,
			Applications: c.Applications,
			content:      c,
		}, nil)
	})
}
