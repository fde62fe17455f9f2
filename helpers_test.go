package screenrelay_test

import (
	"sync/atomic"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// content is a scripted shareable-content result whose handles count their
// own frees.
type content struct {
	host.Content
	freed atomic.Int32
}

func (c *content) handle() host.Handle {
	return host.NewHandle(func() { c.freed.Add(1) })
}

// newContent returns one 3840x2160 display, three applications (the Dock, a
// browser and one without identifiers) and one browser window.
func newContent() *content {
	c := &content{}
	safari := host.Application{Handle: c.handle(), BundleID: "com.apple.Safari", Name: "Safari", PID: 200}
	c.Displays = []host.Display{
		{Handle: c.handle(), ID: 1, Frame: host.NewRect(0, 0, 3840, 2160)},
	}
	c.Applications = []host.Application{
		{Handle: c.handle(), BundleID: "com.apple.dock", Name: "Dock", PID: 100},
		safari,
		{Handle: c.handle(), PID: 300},
	}
	c.Windows = []host.Window{
		{Handle: c.handle(), ID: 42, Title: "Inbox", Owner: safari, OnScreen: true, Frame: host.NewRect(10, 20, 800, 600)},
	}
	return c
}

// handles is the number of handles newContent creates.
const handles = 5

// release drops the test's own reference on every handle.
func (c *content) release(t *testing.T) {
	t.Helper()
	c.Content.Release()
}
