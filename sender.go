package screenrelay

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
)

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithIgnoreAlpha sends frames tagged BGRX so receivers skip the alpha
// channel.
func WithIgnoreAlpha() SenderOption {
	return func(s *Sender) { s.fourCC = transport.FourCCBGRX }
}

// Sender owns one persistent transport endpoint. Send is synchronous and
// safe for concurrent use; calls are serialized.
type Sender struct {
	t      transport.Transport
	h      transport.Handle
	name   string
	fourCC transport.FourCC

	mu     sync.Mutex
	closed bool

	frames atomic.Uint64
	bytes  atomic.Uint64
}

// NewSender creates the named endpoint on t. A failure wraps
// ErrSenderConstruction and is not retried.
func NewSender(t transport.Transport, name string, opts ...SenderOption) (*Sender, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no transport", ErrSenderConstruction)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: sender name is required", ErrSenderConstruction)
	}

	h, err := t.CreateSender(name)
	if err != nil {
		slog.Error("screen-relay: sender creation failed", "name", name, "error", err)
		return nil, fmt.Errorf("%w: %q: %w", ErrSenderConstruction, name, err)
	}

	s := &Sender{t: t, h: h, name: name, fourCC: transport.FourCCBGRA}
	for _, opt := range opts {
		opt(s)
	}

	slog.Info("screen-relay: sender created", "name", name, "fourcc", s.fourCC.String())
	return s, nil
}

// Name returns the endpoint name.
func (s *Sender) Name() string { return s.name }

// Send transmits frame as a progressive, unclocked video frame. It blocks
// until the transport accepts the frame.
func (s *Sender) Send(frame Frame) error {
	if frame.PixelFormat != host.PixelFormatBGRA {
		return fmt.Errorf("screen-relay: unsupported pixel format %s", frame.PixelFormat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("screen-relay: send on %q: %w", s.name, transport.ErrSenderClosed)
	}

	err := s.t.SendVideo(s.h, transport.VideoFrame{
		Width:       frame.Width,
		Height:      frame.Height,
		FourCC:      s.fourCC,
		FrameFormat: transport.FrameProgressive,
		Data:        frame.Data,
		StrideBytes: frame.Stride,
	})
	if err != nil {
		return fmt.Errorf("screen-relay: send on %q: %w", s.name, err)
	}

	s.frames.Add(1)
	s.bytes.Add(uint64(len(frame.Data)))
	return nil
}

// Alive reports whether the endpoint can still transmit. Transports without
// a liveness check are assumed alive until Close.
func (s *Sender) Alive() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	if lc, ok := s.t.(transport.LivenessChecker); ok {
		return lc.Alive(s.h)
	}
	return true
}

// Close destroys the endpoint. Safe to call more than once.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	slog.Info("screen-relay: sender closed",
		"name", s.name,
		"frames_sent", s.frames.Load(),
		"bytes_sent", s.bytes.Load(),
	)

	if err := s.t.DestroySender(s.h); err != nil {
		return fmt.Errorf("screen-relay: destroy sender %q: %w", s.name, err)
	}
	return nil
}
