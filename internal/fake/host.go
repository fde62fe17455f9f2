// Package fake provides deterministic in-memory stand-ins for the host capture
// service and the network video transport.
package fake

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// ErrLocked is returned when a locked Buffer is locked again.
var ErrLocked = errors.New("fake: buffer already locked")

// ErrExpired is returned when a Buffer is used after its callback returned.
var ErrExpired = errors.New("fake: buffer used outside its callback")

// ErrLockFailed is returned by Buffer.Lock when FailLock is set.
var ErrLockFailed = errors.New("fake: lock failed")

// Buffer is a synthetic BGRA frame buffer that records lock usage.
type Buffer struct {
	W, H     int
	Stride   int
	Pixels   []byte
	PTS      time.Duration
	FailLock bool

	locked   atomic.Bool
	expired  atomic.Bool
	Locks    atomic.Int32
	Unlocks  atomic.Int32
	Overlaps atomic.Int32
}

// NewBuffer returns a width×height BGRA buffer whose bytes follow a
// deterministic pattern derived from seed.
func NewBuffer(width, height int, seed byte) *Buffer {
	stride := width * 4
	pix := make([]byte, stride*height)
	for i := range pix {
		pix[i] = byte(i) ^ seed
	}
	return &Buffer{W: width, H: height, Stride: stride, Pixels: pix}
}

func (b *Buffer) Lock() error {
	if b.expired.Load() {
		return ErrExpired
	}
	if b.FailLock {
		return ErrLockFailed
	}
	if !b.locked.CompareAndSwap(false, true) {
		b.Overlaps.Add(1)
		return ErrLocked
	}
	b.Locks.Add(1)
	return nil
}

func (b *Buffer) Unlock() error {
	if !b.locked.CompareAndSwap(true, false) {
		return fmt.Errorf("fake: unlock of unlocked buffer")
	}
	b.Unlocks.Add(1)
	return nil
}

func (b *Buffer) Width() int { return b.W }
func (b *Buffer) Height() int { return b.H }
func (b *Buffer) BytesPerRow() int { return b.Stride }
func (b *Buffer) PixelFormat() host.PixelFormat { return host.PixelFormatBGRA }
func (b *Buffer) PresentationTime() time.Duration { return b.PTS }

func (b *Buffer) BaseAddress() []byte {
	if !b.locked.Load() || b.expired.Load() {
		return nil
	}
	return b.Pixels
}

// Locked reports whether the buffer is currently locked.
func (b *Buffer) Locked() bool { return b.locked.Load() }

// Expire marks the buffer as outside its callback extent.
func (b *Buffer) Expire() { b.expired.Store(true) }

// Service is a scriptable host.Service.
type Service struct {
	mu sync.Mutex

	Content      host.Content
	ContentErr   error
	NewStreamErr error

	// RejectOutput makes AddStreamOutput fail.
	RejectOutput bool
	// StartErr is passed to the StartCapture completion.
	StartErr error
	// StartGate, when set, holds every StartCapture completion until it is
	// closed.
	StartGate chan struct{}

	EnumerateCalls atomic.Int32
	streams        []*Stream
}

// GetShareableContent completes on a new goroutine, like a host queue.
func (s *Service) GetShareableContent(onComplete func(*host.Content, error)) {
	s.EnumerateCalls.Add(1)

	s.mu.Lock()
	content, err := s.Content, s.ContentErr
	s.mu.Unlock()

	go func() {
		if err != nil {
			onComplete(nil, err)
			return
		}
		c := &host.Content{}
		for _, d := range content.Displays {
			d.Handle = d.Handle.Retain()
			c.Displays = append(c.Displays, d)
		}
		for _, w := range content.Windows {
			w.Handle = w.Handle.Retain()
			c.Windows = append(c.Windows, w)
		}
		for _, a := range content.Applications {
			a.Handle = a.Handle.Retain()
			c.Applications = append(c.Applications, a)
		}
		onComplete(c, nil)
	}()
}

func (s *Service) NewStream(filter host.Filter, cfg host.StreamConfiguration, onStop func(error)) (host.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NewStreamErr != nil {
		return nil, s.NewStreamErr
	}

	st := &Stream{
		Filter:       filter,
		Config:       cfg,
		onStop:       onStop,
		rejectOutput: s.RejectOutput,
		startErr:     s.StartErr,
		startGate:    s.StartGate,
		outputs:      make(map[host.DelegateID]host.Trampoline),
	}
	st.handle = host.NewHandle(func() { st.Released.Add(1) })
	s.streams = append(s.streams, st)
	return st, nil
}

// Streams returns every stream created so far.
func (s *Service) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Stream(nil), s.streams...)
}

// Output is one AddStreamOutput call.
type Output struct {
	ID         host.DelegateID
	Trampoline host.Trampoline
}

// Stream is a fake host stream. Deliver drives the registered trampolines.
type Stream struct {
	Filter host.Filter
	Config host.StreamConfiguration

	handle       host.Handle
	onStop       func(error)
	rejectOutput bool
	startErr     error
	startGate    chan struct{}

	mu         sync.RWMutex
	outputs    map[host.DelegateID]host.Trampoline
	registered []Output
	running    bool

	StartCalls atomic.Int32
	StopCalls  atomic.Int32
	Released   atomic.Int32
}

func (s *Stream) Handle() host.Handle { return s.handle }

func (s *Stream) AddStreamOutput(id host.DelegateID, outputType host.OutputType, trampoline host.Trampoline) error {
	if s.rejectOutput {
		return errors.New("fake: host rejected stream output")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.outputs[id]; dup {
		return fmt.Errorf("fake: duplicate output %s", id)
	}
	s.outputs[id] = trampoline
	s.registered = append(s.registered, Output{ID: id, Trampoline: trampoline})
	return nil
}

func (s *Stream) RemoveStreamOutput(id host.DelegateID, outputType host.OutputType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outputs[id]; !ok {
		return fmt.Errorf("fake: unknown output %s", id)
	}
	delete(s.outputs, id)
	return nil
}

func (s *Stream) StartCapture(onComplete func(error)) {
	s.StartCalls.Add(1)
	go func() {
		if s.startGate != nil {
			<-s.startGate
		}
		if s.startErr == nil {
			s.mu.Lock()
			s.running = true
			s.mu.Unlock()
		}
		onComplete(s.startErr)
	}()
}

func (s *Stream) StopCapture(onComplete func(error)) {
	s.StopCalls.Add(1)
	go func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		onComplete(nil)
	}()
}

// Running reports whether capture was started and not stopped.
func (s *Stream) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// OutputCount returns the number of attached outputs.
func (s *Stream) OutputCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outputs)
}

// Registered returns every output ever attached, including removed ones.
func (s *Stream) Registered() []Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Output(nil), s.registered...)
}

// Deliver invokes every registered trampoline with buf on the calling
// goroutine and then expires the buffer.
func (s *Stream) Deliver(buf *Buffer) {
	s.DeliverAs(buf, host.OutputScreen)
}

// DeliverAs is Deliver with an explicit output type tag.
func (s *Stream) DeliverAs(buf *Buffer, outputType host.OutputType) {
	s.mu.RLock()
	outs := make(map[host.DelegateID]host.Trampoline, len(s.outputs))
	for id, tr := range s.outputs {
		outs[id] = tr
	}
	s.mu.RUnlock()

	for id, tr := range outs {
		tr(id, s, buf, outputType)
	}
	buf.Expire()
}

// DeliverTo invokes trampoline-routing for an id that may not be registered.
func (s *Stream) DeliverTo(id host.DelegateID, trampoline host.Trampoline, buf *Buffer) {
	trampoline(id, s, buf, host.OutputScreen)
	buf.Expire()
}

// Fail simulates the host stopping the stream with an error.
func (s *Stream) Fail(err error) {
	if s.onStop != nil {
		s.onStop(err)
	}
}
