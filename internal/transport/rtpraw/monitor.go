package rtpraw

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// monitorBus polls the sender pipeline bus until ctx is cancelled or the
// pipeline ends. An error or EOS marks the sender dead; there is no
// reconnection.
func (t *Transport) monitorBus(ctx context.Context, s *sender) {
	defer s.wg.Done()

	pipeline := s.elements.pipeline
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("rtpraw: context cancelled, stopping bus monitor", "name", s.name)
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("rtpraw: end of stream received",
				"name", s.name,
				"frames", s.frames.Load(),
			)
			s.alive.Store(false)
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			t.counts.add(category)

			err := fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())
			s.lastErr.Store(&err)
			s.alive.Store(false)

			slog.Error("rtpraw: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"name", s.name,
				"destination", t.cfg.destination(),
				"frames", s.frames.Load(),
			)
			return

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("rtpraw: pipeline state changed",
					"name", s.name,
					"from", old,
					"to", new,
				)
			}
		}
	}
}
