package screenrelay

import (
	"fmt"
	"sync/atomic"
	"time"
)

// counters is the shared, lock-free statistics block of one session.
type counters struct {
	seq            atomic.Uint64
	received       atomic.Uint64
	droppedLock    atomic.Uint64
	droppedSend    atomic.Uint64
	droppedStopped atomic.Uint64
	droppedUnknown atomic.Uint64
	droppedPanic   atomic.Uint64
	ignored        atomic.Uint64

	runningSince atomic.Int64 // unix nanos
	lastFrameAt  atomic.Int64 // unix nanos
	lastWidth    atomic.Int64
	lastHeight   atomic.Int64
}

func (c *counters) markRunning(now time.Time) {
	c.runningSince.Store(now.UnixNano())
}

func (c *counters) observe(width, height int, now time.Time) {
	c.received.Add(1)
	c.lastFrameAt.Store(now.UnixNano())
	c.lastWidth.Store(int64(width))
	c.lastHeight.Store(int64(height))
}

// fill copies the counter values into st.
func (c *counters) fill(st *Stats, now time.Time) {
	st.FramesReceived = c.received.Load()
	st.DroppedLock = c.droppedLock.Load()
	st.DroppedSend = c.droppedSend.Load()
	st.DroppedStopped = c.droppedStopped.Load()
	st.DroppedUnknown = c.droppedUnknown.Load()
	st.DroppedPanic = c.droppedPanic.Load()
	st.IgnoredOutputs = c.ignored.Load()
	st.FramesDropped = st.DroppedLock + st.DroppedSend + st.DroppedStopped +
		st.DroppedUnknown + st.DroppedPanic

	if since := c.runningSince.Load(); since != 0 {
		if uptime := now.Sub(time.Unix(0, since)).Seconds(); uptime > 0 {
			st.FPS = float64(st.FramesReceived) / uptime
		}
	}
	if last := c.lastFrameAt.Load(); last != 0 {
		st.LatencyMS = now.Sub(time.Unix(0, last)).Milliseconds()
		st.Resolution = fmt.Sprintf("%dx%d", c.lastWidth.Load(), c.lastHeight.Load())
	}
}
