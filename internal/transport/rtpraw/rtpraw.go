// Package rtpraw is a transport.Transport that sends uncompressed video as
// RTP (RFC 4175) over UDP, unicast or multicast, using GStreamer.
//
// A Transport owns one destination. It carries one live sender at a time;
// the sender name becomes the pipeline name and the SDP session name that
// receivers see.
//
//	gst-launch-1.0 udpsrc port=5004 caps="application/x-rtp,..." ! rtpvrawdepay ! autovideosink
//
// or open the file written from SDP with ffplay/VLC.
package rtpraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
	"github.com/tinyzimmer/go-gst/gst"
)

// DefaultMTU keeps packets under a typical Ethernet MTU after IP/UDP headers.
const DefaultMTU = 1400

// stopTimeout bounds the wait for a sender's bus monitor to exit.
const stopTimeout = 3 * time.Second

var (
	// ErrDestinationBusy is returned by CreateSender while another sender is live.
	ErrDestinationBusy = errors.New("rtpraw: destination already has a sender")
	// ErrSenderFailed is returned by SendVideo after the pipeline reported an error.
	ErrSenderFailed = errors.New("rtpraw: sender pipeline failed")
)

var initOnce sync.Once

// Config describes the network destination.
type Config struct {
	// Host is a unicast or multicast IP address or a resolvable name.
	Host string
	Port int
	// MTU of zero means DefaultMTU.
	MTU int
	// TTL of zero keeps the system default.
	TTL int
}

func (c Config) destination() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the destination.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("rtpraw: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("rtpraw: port must be in 1-65535, got %d", c.Port)
	}
	if c.MTU != 0 && (c.MTU < 576 || c.MTU > 9000) {
		return fmt.Errorf("rtpraw: mtu must be in 576-9000, got %d", c.MTU)
	}
	if c.TTL < 0 || c.TTL > 255 {
		return fmt.Errorf("rtpraw: ttl must be in 0-255, got %d", c.TTL)
	}
	return nil
}

// ErrorCounts is a snapshot of classified pipeline errors.
type ErrorCounts struct {
	Network     uint64
	Negotiation uint64
	Resource    uint64
	Unknown     uint64
}

type errorCounters struct {
	network     atomic.Uint64
	negotiation atomic.Uint64
	resource    atomic.Uint64
	unknown     atomic.Uint64
}

func (c *errorCounters) add(category ErrorCategory) {
	switch category {
	case ErrCategoryNetwork:
		c.network.Add(1)
	case ErrCategoryNegotiation:
		c.negotiation.Add(1)
	case ErrCategoryResource:
		c.resource.Add(1)
	default:
		c.unknown.Add(1)
	}
}

type sender struct {
	name     string
	elements *senderElements

	mu   sync.Mutex
	caps string

	alive   atomic.Bool
	lastErr atomic.Pointer[error]
	frames  atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Transport implements transport.Transport and transport.LivenessChecker.
type Transport struct {
	cfg Config

	mu      sync.Mutex
	senders map[transport.Handle]*sender
	next    transport.Handle

	counts errorCounters
}

// New returns a Transport for cfg.
//
// Fails fast when GStreamer is not available.
func New(cfg Config) (*Transport, error) {
	if cfg.MTU == 0 {
		cfg.MTU = DefaultMTU
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	initOnce.Do(func() { gst.Init(nil) })
	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return nil, fmt.Errorf("rtpraw: GStreamer not available: %w", err)
	}
	elem.SetState(gst.StateNull)

	return &Transport{
		cfg:     cfg,
		senders: make(map[transport.Handle]*sender),
	}, nil
}

// CreateSender builds and starts a sender pipeline named name.
func (t *Transport) CreateSender(name string) (transport.Handle, error) {
	if name == "" {
		return 0, fmt.Errorf("rtpraw: sender name is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.senders) > 0 {
		return 0, ErrDestinationBusy
	}

	e, err := createSenderPipeline(name, t.cfg)
	if err != nil {
		return 0, fmt.Errorf("rtpraw: %w", err)
	}

	s := &sender{name: name, elements: e}
	s.alive.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go t.monitorBus(ctx, s)

	if err := e.pipeline.SetState(gst.StatePlaying); err != nil {
		cancel()
		s.wg.Wait()
		e.pipeline.SetState(gst.StateNull)
		return 0, fmt.Errorf("rtpraw: failed to start sender pipeline: %w", err)
	}

	t.next++
	h := t.next
	t.senders[h] = s

	slog.Info("rtpraw: sender created",
		"name", name,
		"destination", t.cfg.destination(),
		"handle", h,
	)
	return h, nil
}

func (t *Transport) lookup(h transport.Handle) *sender {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.senders[h]
}

// SendVideo pushes one frame. It blocks while the sender queue is full and
// copies frame.Data, which is not retained. frame.Timestamp is ignored.
func (t *Transport) SendVideo(h transport.Handle, frame transport.VideoFrame) error {
	s := t.lookup(h)
	if s == nil {
		return transport.ErrSenderClosed
	}
	if !s.alive.Load() {
		if errp := s.lastErr.Load(); errp != nil {
			return fmt.Errorf("%w: %w", ErrSenderFailed, *errp)
		}
		return ErrSenderFailed
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return fmt.Errorf("rtpraw: invalid frame size %dx%d", frame.Width, frame.Height)
	}

	data, err := packRows(frame)
	if err != nil {
		return fmt.Errorf("rtpraw: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caps := rawCaps(frame); caps != s.caps {
		s.elements.src.SetCaps(gst.NewCapsFromString(caps))
		slog.Debug("rtpraw: sender caps updated", "name", s.name, "from", s.caps, "to", caps)
		s.caps = caps
	}

	if ret := s.elements.src.PushBuffer(gst.NewBufferFromBytes(data)); ret != gst.FlowOK {
		return fmt.Errorf("rtpraw: push buffer: flow %v", ret)
	}
	s.frames.Add(1)
	return nil
}

// DestroySender ends the stream and releases the pipeline. The handle is
// invalid afterwards.
func (t *Transport) DestroySender(h transport.Handle) error {
	t.mu.Lock()
	s, ok := t.senders[h]
	delete(t.senders, h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("rtpraw: unknown sender %d", h)
	}

	s.mu.Lock()
	s.elements.src.EndStream()
	s.mu.Unlock()

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("rtpraw: bus monitor did not exit within timeout", "name", s.name)
	}

	s.alive.Store(false)
	if err := s.elements.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("rtpraw: failed to set pipeline to NULL: %w", err)
	}

	slog.Info("rtpraw: sender destroyed", "name", s.name, "frames", s.frames.Load())
	return nil
}

// Alive reports whether h exists and its pipeline has not failed.
func (t *Transport) Alive(h transport.Handle) bool {
	s := t.lookup(h)
	return s != nil && s.alive.Load()
}

// ErrorCounts returns the classified pipeline errors seen so far.
func (t *Transport) ErrorCounts() ErrorCounts {
	return ErrorCounts{
		Network:     t.counts.network.Load(),
		Negotiation: t.counts.negotiation.Load(),
		Resource:    t.counts.resource.Load(),
		Unknown:     t.counts.unknown.Load(),
	}
}

// Destination returns host:port.
func (t *Transport) Destination() string {
	return t.cfg.destination()
}

var (
	_ transport.Transport       = (*Transport)(nil)
	_ transport.LivenessChecker = (*Transport)(nil)
)
