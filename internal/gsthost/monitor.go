package gsthost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// monitorBus polls the pipeline bus until ctx is cancelled or the pipeline
// ends.
//
// Before the first PLAYING transition, a terminal message is reported on
// failed so StartCapture can complete with it. Afterwards it is reported to
// the session through hostStopped. There is no reconnection.
func (s *stream) monitorBus(ctx context.Context, playing chan<- struct{}, failed chan<- error) {
	defer s.wg.Done()

	pipeline := s.elements.pipeline
	bus := pipeline.GetPipelineBus()
	started := false

	end := func(err error) {
		if !started {
			failed <- err
			return
		}
		s.hostStopped(err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gsthost: context cancelled, stopping bus monitor")
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gsthost: end of stream received",
				"source", s.elements.source,
				"uptime", s.sinceStart(),
				"samples", s.samples.Load(),
			)
			end(errEndOfStream)
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gsthost: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"source", s.elements.source,
				"uptime", s.sinceStart(),
				"samples", s.samples.Load(),
			)
			end(fmt.Errorf("gsthost: pipeline error: %s", gerr.Error()))
			return

		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			old, new := msg.ParseStateChanged()
			slog.Debug("gsthost: pipeline state changed", "from", old, "to", new)
			if new == gst.StatePlaying && !started {
				started = true
				close(playing)
			}
		}
	}
}
