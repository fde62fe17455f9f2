package gsthost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

const (
	// startTimeout bounds the wait for the pipeline to reach PLAYING.
	startTimeout = 5 * time.Second
	// stopTimeout bounds the wait for the bus monitor to exit.
	stopTimeout = 3 * time.Second
)

var (
	errEndOfStream    = errors.New("gsthost: end of stream")
	errAlreadyRunning = errors.New("gsthost: capture already running")
	errStreamReleased = errors.New("gsthost: stream released")
)

type output struct {
	id         host.DelegateID
	trampoline host.Trampoline
}

// stream is a host.Stream backed by a GStreamer capture pipeline.
type stream struct {
	handle   host.Handle
	elements *elements
	cfg      host.StreamConfiguration
	onStop   func(error)

	mu      sync.RWMutex
	outputs []output

	running   atomic.Bool
	stopping  atomic.Bool
	released  atomic.Bool
	startedAt atomic.Int64
	samples   atomic.Uint64
	stopOnce  sync.Once

	monitorMu sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newStream(e *elements, cfg host.StreamConfiguration, onStop func(error)) *stream {
	s := &stream{
		elements: e,
		cfg:      cfg,
		onStop:   onStop,
	}
	s.handle = host.NewHandle(s.destroy)

	e.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})
	return s
}

func (s *stream) Handle() host.Handle { return s.handle }

func (s *stream) AddStreamOutput(id host.DelegateID, outputType host.OutputType, trampoline host.Trampoline) error {
	if outputType != host.OutputScreen {
		return fmt.Errorf("gsthost: unsupported output type %d", outputType)
	}
	if trampoline == nil {
		return fmt.Errorf("gsthost: nil trampoline")
	}
	if s.released.Load() {
		return errStreamReleased
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.outputs {
		if o.id == id {
			return fmt.Errorf("gsthost: output %s already added", id)
		}
	}
	s.outputs = append(s.outputs, output{id: id, trampoline: trampoline})
	return nil
}

func (s *stream) RemoveStreamOutput(id host.DelegateID, outputType host.OutputType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.outputs {
		if o.id == id {
			s.outputs = append(s.outputs[:i], s.outputs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("gsthost: output %s not found", id)
}

func (s *stream) snapshotOutputs() []output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]output, len(s.outputs))
	copy(out, s.outputs)
	return out
}

func (s *stream) sinceStart() time.Duration {
	started := s.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - started)
}

// StartCapture sets the pipeline to PLAYING and completes once the pipeline
// reports the transition, an error, or startTimeout elapses.
func (s *stream) StartCapture(onComplete func(error)) {
	go func() {
		onComplete(s.start())
	}()
}

func (s *stream) start() error {
	if s.released.Load() {
		return errStreamReleased
	}
	if !s.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	playing := make(chan struct{})
	failed := make(chan error, 1)

	s.monitorMu.Lock()
	s.cancel = cancel
	s.wg.Add(1)
	s.monitorMu.Unlock()
	go s.monitorBus(ctx, playing, failed)

	s.startedAt.Store(time.Now().UnixNano())
	if err := s.elements.pipeline.SetState(gst.StatePlaying); err != nil {
		s.abortStart()
		return fmt.Errorf("gsthost: failed to start pipeline: %w", err)
	}

	select {
	case <-playing:
		slog.Info("gsthost: capture started",
			"source", s.elements.source,
			"width", s.cfg.Width,
			"height", s.cfg.Height,
		)
		return nil
	case err := <-failed:
		s.abortStart()
		return err
	case <-time.After(startTimeout):
		s.abortStart()
		return fmt.Errorf("gsthost: pipeline did not reach PLAYING within %v", startTimeout)
	}
}

func (s *stream) abortStart() {
	s.stopMonitor()
	if err := destroyPipeline(s.elements); err != nil {
		slog.Warn("gsthost: failed to reset pipeline after start failure", "error", err)
	}
	s.running.Store(false)
}

// StopCapture sets the pipeline to NULL and waits for the bus monitor.
func (s *stream) StopCapture(onComplete func(error)) {
	go func() {
		onComplete(s.stop())
	}()
}

func (s *stream) stop() error {
	s.stopping.Store(true)
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	err := destroyPipeline(s.elements)
	s.stopMonitor()

	slog.Info("gsthost: capture stopped",
		"samples", s.samples.Load(),
		"uptime", s.sinceStart(),
	)
	if err != nil {
		return fmt.Errorf("gsthost: %w", err)
	}
	return nil
}

func (s *stream) stopMonitor() {
	s.monitorMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.monitorMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("gsthost: bus monitor did not exit within timeout", "timeout", stopTimeout)
	}
}

// destroy runs when the last reference to the stream handle is released.
func (s *stream) destroy() {
	s.released.Store(true)
	s.stopping.Store(true)
	s.stopMonitor()
	if err := destroyPipeline(s.elements); err != nil {
		slog.Warn("gsthost: failed to destroy pipeline", "error", err)
	}
	s.running.Store(false)

	s.mu.Lock()
	s.outputs = nil
	s.mu.Unlock()

	slog.Debug("gsthost: stream released", "handle", s.handle.ID())
}

// hostStopped reports an unrequested end of capture to the session, once.
func (s *stream) hostStopped(err error) {
	if s.stopping.Load() {
		return
	}
	s.running.Store(false)
	s.stopOnce.Do(func() {
		if s.onStop != nil {
			go s.onStop(err)
		}
	})
}
