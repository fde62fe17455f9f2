package screenrelay

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/fake"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	c        *counters
	b        *bridge
	stopped  atomic.Bool
	inflight atomic.Int64
}

func newBridgeFixture() *bridgeFixture {
	f := &bridgeFixture{c: &counters{}}
	f.b = newBridge(f.c)
	return f
}

func (f *bridgeFixture) attach(h FrameHandlerFunc) host.DelegateID {
	return f.b.attach(h, &f.stopped, &f.inflight)
}

func TestBridge_RoutesByDelegateID(t *testing.T) {
	f := newBridgeFixture()

	var got []uint64
	id := f.attach(func(ev FrameEvent) error {
		got = append(got, ev.Seq)
		return nil
	})

	buf := fake.NewBuffer(4, 2, 0)
	f.b.trampoline(id, nil, buf, host.OutputScreen)
	f.b.trampoline(id, nil, buf, host.OutputScreen)

	assert.Equal(t, []uint64{1, 2}, got)
	assert.Equal(t, uint64(2), f.c.received.Load())
	assert.Zero(t, f.inflight.Load())
}

func TestBridge_UnknownDelegateIsDropped(t *testing.T) {
	f := newBridgeFixture()
	f.attach(func(FrameEvent) error {
		t.Fatal("handler must not run for a foreign id")
		return nil
	})

	f.b.trampoline("not-registered", nil, fake.NewBuffer(4, 2, 0), host.OutputScreen)

	assert.Equal(t, uint64(1), f.c.droppedUnknown.Load())
	assert.Zero(t, f.c.received.Load())
}

func TestBridge_IgnoresNonScreenOutput(t *testing.T) {
	f := newBridgeFixture()
	called := false
	id := f.attach(func(FrameEvent) error { called = true; return nil })

	f.b.trampoline(id, nil, fake.NewBuffer(4, 2, 0), host.OutputType(1))

	assert.False(t, called)
	assert.Equal(t, uint64(1), f.c.ignored.Load())
}

func TestBridge_SkipsAfterStop(t *testing.T) {
	f := newBridgeFixture()
	called := false
	id := f.attach(func(FrameEvent) error { called = true; return nil })

	f.stopped.Store(true)
	f.b.trampoline(id, nil, fake.NewBuffer(4, 2, 0), host.OutputScreen)

	assert.False(t, called)
	assert.Equal(t, uint64(1), f.c.droppedStopped.Load())
	assert.Zero(t, f.inflight.Load())
}

func TestBridge_ContainsPanics(t *testing.T) {
	f := newBridgeFixture()
	buf := fake.NewBuffer(4, 2, 0)
	id := f.attach(func(ev FrameEvent) error {
		return WithLocked(ev.Buffer, func(Frame) error { panic("boom") })
	})

	assert.NotPanics(t, func() {
		f.b.trampoline(id, nil, buf, host.OutputScreen)
	})
	assert.Equal(t, uint64(1), f.c.droppedPanic.Load())
	assert.False(t, buf.Locked(), "buffer unlocked despite the panic")
	assert.Zero(t, f.inflight.Load())
}

func TestBridge_ClassifiesHandlerErrors(t *testing.T) {
	f := newBridgeFixture()

	lockFail := f.attach(func(ev FrameEvent) error {
		return WithLocked(ev.Buffer, func(Frame) error { return nil })
	})
	sendFail := f.attach(func(FrameEvent) error { return errors.New("transport down") })

	locked := fake.NewBuffer(4, 2, 0)
	locked.FailLock = true
	f.b.trampoline(lockFail, nil, locked, host.OutputScreen)
	f.b.trampoline(sendFail, nil, fake.NewBuffer(4, 2, 0), host.OutputScreen)

	assert.Equal(t, uint64(1), f.c.droppedLock.Load())
	assert.Equal(t, uint64(1), f.c.droppedSend.Load())

	var st Stats
	f.c.fill(&st, time.Now())
	assert.Equal(t, uint64(2), st.FramesDropped)
	assert.Equal(t, uint64(2), st.FramesReceived)
}

func TestBridge_ConcurrentDeliveries(t *testing.T) {
	f := newBridgeFixture()
	tr := &fake.Transport{}
	sender, err := NewSender(tr, "relay")
	require.NoError(t, err)
	defer sender.Close()

	id := f.attach(func(ev FrameEvent) error {
		return WithLocked(ev.Buffer, sender.Send)
	})

	const n = 64
	bufs := make([]*fake.Buffer, n)
	var wg sync.WaitGroup
	for i := range bufs {
		bufs[i] = fake.NewBuffer(8, 8, byte(i))
		wg.Add(1)
		go func(buf *fake.Buffer) {
			defer wg.Done()
			f.b.trampoline(id, nil, buf, host.OutputScreen)
			buf.Expire()
		}(bufs[i])
	}
	wg.Wait()

	assert.Equal(t, int32(n), tr.SendCalls.Load())
	assert.Len(t, tr.Frames(), n)
	assert.Equal(t, int32(1), tr.MaxConcurrent.Load())
	for i, buf := range bufs {
		assert.Equal(t, int32(1), buf.Locks.Load(), fmt.Sprintf("buffer %d locks", i))
		assert.Equal(t, int32(1), buf.Unlocks.Load(), fmt.Sprintf("buffer %d unlocks", i))
		assert.Zero(t, buf.Overlaps.Load())
	}
	assert.Equal(t, uint64(n), f.c.received.Load())
	assert.Zero(t, f.c.droppedLock.Load()+f.c.droppedSend.Load())
}
