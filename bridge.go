package screenrelay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/delegate"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/google/uuid"
)

// binding is what the delegate table stores for one registered output.
type binding struct {
	handler  FrameHandler
	stopped  *atomic.Bool
	inflight *atomic.Int64
}

// bridge routes host deliveries to registered handlers. The host only ever
// sees a delegate id; the handler is looked up on every delivery.
type bridge struct {
	table    *delegate.Table[binding]
	counters *counters
}

func newBridge(c *counters) *bridge {
	return &bridge{
		table:    delegate.NewTable[binding](),
		counters: c,
	}
}

func (b *bridge) attach(h FrameHandler, stopped *atomic.Bool, inflight *atomic.Int64) host.DelegateID {
	return b.table.Register(binding{handler: h, stopped: stopped, inflight: inflight})
}

func (b *bridge) detach(id host.DelegateID) bool {
	return b.table.Unregister(id)
}

// trampoline is the host.Trampoline handed to the capture stream. It runs on
// host threads, possibly concurrently, and never lets a panic escape.
func (b *bridge) trampoline(id host.DelegateID, _ host.Stream, buf host.Buffer, outputType host.OutputType) {
	defer func() {
		if r := recover(); r != nil {
			b.counters.droppedPanic.Add(1)
			slog.Error("screen-relay: frame handler panicked",
				"delegate_id", id,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if outputType != host.OutputScreen {
		b.counters.ignored.Add(1)
		return
	}

	out, ok := b.table.Lookup(id)
	if !ok {
		b.counters.droppedUnknown.Add(1)
		slog.Debug("screen-relay: delivery for unknown delegate dropped", "delegate_id", id)
		return
	}

	// Counted before the stop check so Stop can wait for deliveries that
	// got past it.
	out.inflight.Add(1)
	defer out.inflight.Add(-1)
	if out.stopped.Load() {
		b.counters.droppedStopped.Add(1)
		return
	}

	now := time.Now()
	ev := FrameEvent{
		Seq:         b.counters.seq.Add(1),
		Width:       buf.Width(),
		Height:      buf.Height(),
		Stride:      buf.BytesPerRow(),
		PixelFormat: buf.PixelFormat(),
		Timestamp:   buf.PresentationTime(),
		TraceID:     uuid.NewString(),
		Buffer:      buf,
	}
	b.counters.observe(ev.Width, ev.Height, now)

	if err := out.handler.HandleFrame(ev); err != nil {
		if errors.Is(err, ErrFrameDelivery) {
			b.counters.droppedLock.Add(1)
		} else {
			b.counters.droppedSend.Add(1)
		}
		slog.Warn("screen-relay: frame dropped",
			"seq", ev.Seq,
			"trace_id", ev.TraceID,
			"error", err,
		)
		return
	}

	slog.Debug("screen-relay: frame relayed",
		"seq", ev.Seq,
		"trace_id", ev.TraceID,
		"latency", time.Since(now),
	)
}
