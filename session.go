package screenrelay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// sessionActive guards the one-session-per-process invariant.
var sessionActive atomic.Bool

// drainTimeout bounds how long Stop waits for in-flight deliveries.
const drainTimeout = 3 * time.Second

// Session drives one host capture stream through
// Idle → Configuring → Starting → Running → {Failed, Stopped}.
//
// Only one Session may exist per process until it reaches a terminal state.
type Session struct {
	svc      host.Service
	counters *counters
	bridge   *bridge

	mu         sync.Mutex
	state      State
	filter     ContentFilter
	config     StreamConfig
	stream     host.Stream
	delegateID host.DelegateID
	regErr     error
	err        error
	started    chan struct{}
	// stopRequested is set by a Stop that arrived while starting
	stopRequested bool

	// stopped is observed by in-flight deliveries
	stopped  atomic.Bool
	inflight atomic.Int64

	teardownOnce sync.Once
	done         chan struct{}
}

// NewSession returns an idle session on svc. It fails with ErrSessionActive
// while another session in the process has not reached a terminal state.
func NewSession(svc host.Service) (*Session, error) {
	if svc == nil {
		return nil, fmt.Errorf("screen-relay: capture service is required")
	}
	if !sessionActive.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}

	c := &counters{}
	return &Session{
		svc:      svc,
		counters: c,
		bridge:   newBridge(c),
		state:    StateIdle,
		done:     make(chan struct{}),
	}, nil
}

// Configure creates the host stream for filter and cfg. The session takes
// ownership of filter and releases it on teardown.
func (s *Session) Configure(filter ContentFilter, cfg StreamConfig) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("screen-relay: configure in state %s", state)
	}
	if !filter.Valid() {
		s.mu.Unlock()
		return fmt.Errorf("%w: filter is not valid", ErrFilterConstruction)
	}
	s.state = StateConfiguring
	s.filter = filter
	s.config = cfg
	s.mu.Unlock()

	slog.Info("screen-relay: configuring capture",
		"display", filter.Display().ID,
		"mode", filter.Mode().String(),
		"excluded_applications", len(filter.ExcludedApplications()),
		"config", cfg.String(),
	)

	stream, err := s.svc.NewStream(filter.Host(), cfg.Host(), s.hostStopped)
	if err != nil {
		err = fmt.Errorf("%w: create stream: %w", ErrSessionStart, err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	return nil
}

// RegisterOutput attaches handler as the session's only frame output.
//
// A second call, or a host rejection, returns an error wrapping
// ErrDelegateRegistration. After a rejection the session can no longer start.
func (s *Session) RegisterOutput(handler FrameHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfiguring || s.stream == nil {
		return fmt.Errorf("%w: session is %s", ErrDelegateRegistration, s.state)
	}
	if s.delegateID != "" {
		return fmt.Errorf("%w: output already registered", ErrDelegateRegistration)
	}
	if s.regErr != nil {
		return s.regErr
	}

	id := s.bridge.attach(handler, &s.stopped, &s.inflight)
	if err := s.stream.AddStreamOutput(id, host.OutputScreen, s.bridge.trampoline); err != nil {
		s.bridge.detach(id)
		s.regErr = fmt.Errorf("%w: %w", ErrDelegateRegistration, err)
		slog.Error("screen-relay: output registration rejected", "error", err)
		return s.regErr
	}

	s.delegateID = id
	slog.Debug("screen-relay: output registered", "delegate_id", id)
	return nil
}

// Start asks the host to begin capture. onComplete is invoked exactly once,
// on another goroutine, with nil once the session is running or with an
// error wrapping ErrSessionStart.
//
// If output registration failed, start-capture is never issued.
func (s *Session) Start(onComplete func(error)) {
	s.mu.Lock()

	if s.state != StateConfiguring || s.stream == nil {
		err := fmt.Errorf("%w: session is %s", ErrSessionStart, s.state)
		s.mu.Unlock()
		go onComplete(err)
		return
	}

	if s.regErr != nil || s.delegateID == "" {
		cause := s.regErr
		if cause == nil {
			cause = fmt.Errorf("%w: no output registered", ErrDelegateRegistration)
		}
		s.mu.Unlock()

		err := fmt.Errorf("%w: %w", ErrSessionStart, cause)
		s.fail(err)
		go onComplete(err)
		return
	}

	s.state = StateStarting
	s.started = make(chan struct{})
	started := s.started
	stream := s.stream
	s.mu.Unlock()

	slog.Info("screen-relay: starting capture")

	var once atomic.Bool
	stream.StartCapture(func(err error) {
		if !once.CompareAndSwap(false, true) {
			slog.Warn("screen-relay: duplicate start completion ignored")
			return
		}
		result := s.startCompleted(err)
		close(started)
		onComplete(result)
	})
}

func (s *Session) startCompleted(err error) error {
	s.mu.Lock()
	if s.stopRequested && s.state == StateStarting {
		s.state = StateStopped
		stream := s.stream
		s.mu.Unlock()

		if err != nil {
			slog.Debug("screen-relay: capture start failed after stop", "error", err)
			s.teardown()
		} else {
			go s.abandonStart(stream)
		}
		return fmt.Errorf("%w: stopped while starting", ErrSessionStart)
	}
	s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSessionStart, err)
		slog.Error("screen-relay: capture start failed", "error", err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarting {
		// The host stopped the stream before the start completion arrived.
		return fmt.Errorf("%w: session is %s", ErrSessionStart, s.state)
	}

	s.state = StateRunning
	s.counters.markRunning(time.Now())
	slog.Info("screen-relay: session running",
		"width", s.config.Width(),
		"height", s.config.Height(),
		"queue_depth", s.config.QueueDepth(),
	)
	return nil
}

// abandonStart stops a capture that came up after Stop was requested.
func (s *Session) abandonStart(stream host.Stream) {
	done := make(chan error, 1)
	stream.StopCapture(func(err error) { done <- err })

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			slog.Warn("screen-relay: stop capture after cancelled start", "error", err)
		}
	case <-timer.C:
		slog.Warn("screen-relay: stop capture did not complete after cancelled start")
	}

	s.drain(context.Background())
	s.teardown()
	slog.Info("screen-relay: session stopped before running")
}

// hostStopped is the host's "stream stopped with error" notification.
func (s *Session) hostStopped(err error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state.terminal() {
		return
	}

	slog.Error("screen-relay: capture stopped by host",
		"error", err,
		"state", state.String(),
		"frames_received", s.counters.received.Load(),
	)
	s.fail(fmt.Errorf("screen-relay: capture stopped by host: %w", err))
}

// fail moves a non-terminal session to Failed and tears it down.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()

	s.teardown()
}

// Stop ends the session: in-flight deliveries are skipped, the output is
// unregistered, the host is asked to stop capture and the stream handle is
// released. Stopping a session that already failed or stopped returns nil.
//
// If the session is still starting, Stop records the request and waits for
// the teardown or for ctx to expire. The pending start then completes with
// ErrSessionStart and the capture is stopped as soon as the host reports it
// started; the session never becomes Running.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStarting {
		s.stopRequested = true
		s.stopped.Store(true)
		s.mu.Unlock()

		slog.Info("screen-relay: stop requested while starting")
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("screen-relay: stop while starting: %w", ctx.Err())
		}
	}

	if s.state.terminal() {
		s.mu.Unlock()
		return nil
	}

	wasRunning := s.state == StateRunning
	s.state = StateStopped
	s.stopped.Store(true)
	stream := s.stream
	id := s.delegateID
	s.mu.Unlock()

	slog.Info("screen-relay: stopping session")

	if id != "" {
		s.bridge.detach(id)
	}

	var stopErr error
	if wasRunning {
		done := make(chan error, 1)
		stream.StopCapture(func(err error) { done <- err })

		select {
		case err := <-done:
			if err != nil {
				stopErr = fmt.Errorf("screen-relay: stop capture: %w", err)
			}
		case <-ctx.Done():
			slog.Warn("screen-relay: stop capture did not complete", "error", ctx.Err())
			stopErr = fmt.Errorf("screen-relay: stop capture: %w", ctx.Err())
		}
	}

	s.drain(ctx)
	s.teardown()

	st := s.Stats()
	slog.Info("screen-relay: session stopped",
		"frames_received", st.FramesReceived,
		"frames_dropped", st.FramesDropped,
	)
	return stopErr
}

// drain waits for deliveries already past the stop check.
func (s *Session) drain(ctx context.Context) {
	if s.inflight.Load() == 0 {
		return
	}

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	for s.inflight.Load() > 0 {
		select {
		case <-tick.C:
		case <-deadline.C:
			slog.Warn("screen-relay: stop timeout exceeded, deliveries still in flight",
				"inflight", s.inflight.Load())
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.stopped.Store(true)

		s.mu.Lock()
		stream, id, filter := s.stream, s.delegateID, s.filter
		s.mu.Unlock()

		if id != "" {
			s.bridge.detach(id)
			if err := stream.RemoveStreamOutput(id, host.OutputScreen); err != nil {
				slog.Debug("screen-relay: remove output", "error", err)
			}
		}
		if stream != nil {
			stream.Handle().Release()
		}
		filter.Release()

		sessionActive.Store(false)
		close(s.done)
	})
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Stopped or Failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the failure that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Config returns the stream configuration.
func (s *Session) Config() StreamConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Stats returns delivery statistics. Thread-safe.
func (s *Session) Stats() Stats {
	st := Stats{State: s.State()}
	s.counters.fill(&st, time.Now())
	return st
}
