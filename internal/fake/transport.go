package fake

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
)

// SentFrame is a copy of a frame received by Transport.SendVideo.
type SentFrame struct {
	Name  string
	Frame transport.VideoFrame
}

// Transport is a recording transport.Transport.
type Transport struct {
	CreateErr error
	SendErr   error

	mu       sync.Mutex
	names    map[transport.Handle]string
	next     transport.Handle
	frames   []SentFrame
	dead     map[transport.Handle]bool
	inFlight atomic.Int32

	CreateCalls  atomic.Int32
	SendCalls    atomic.Int32
	DestroyCalls atomic.Int32
	// MaxConcurrent is the highest number of SendVideo calls observed in
	// flight at once.
	MaxConcurrent atomic.Int32
}

func (t *Transport) CreateSender(name string) (transport.Handle, error) {
	t.CreateCalls.Add(1)
	if t.CreateErr != nil {
		return 0, t.CreateErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.names == nil {
		t.names = make(map[transport.Handle]string)
		t.dead = make(map[transport.Handle]bool)
	}
	t.next++
	t.names[t.next] = name
	return t.next, nil
}

func (t *Transport) SendVideo(h transport.Handle, frame transport.VideoFrame) error {
	t.SendCalls.Add(1)

	n := t.inFlight.Add(1)
	defer t.inFlight.Add(-1)
	for {
		max := t.MaxConcurrent.Load()
		if n <= max || t.MaxConcurrent.CompareAndSwap(max, n) {
			break
		}
	}

	if t.SendErr != nil {
		return t.SendErr
	}

	data := make([]byte, len(frame.Data))
	copy(data, frame.Data)
	frame.Data = data

	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.names[h]
	if !ok {
		return transport.ErrSenderClosed
	}
	t.frames = append(t.frames, SentFrame{Name: name, Frame: frame})
	return nil
}

func (t *Transport) DestroySender(h transport.Handle) error {
	t.DestroyCalls.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.names[h]; !ok {
		return fmt.Errorf("fake: unknown sender %d", h)
	}
	delete(t.names, h)
	return nil
}

// Alive implements transport.LivenessChecker.
func (t *Transport) Alive(h transport.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.names[h]
	return ok && !t.dead[h]
}

// Kill marks a sender as no longer alive.
func (t *Transport) Kill(h transport.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead == nil {
		t.dead = make(map[transport.Handle]bool)
	}
	t.dead[h] = true
}

// Frames returns copies of every frame sent so far.
func (t *Transport) Frames() []SentFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SentFrame(nil), t.frames...)
}
