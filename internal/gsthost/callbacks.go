package gsthost

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var (
	errBufferLocked  = errors.New("gsthost: buffer already locked")
	errBufferExpired = errors.New("gsthost: buffer used after its callback returned")
	errMapFailed     = errors.New("gsthost: failed to map buffer")
	errNoGeometry    = errors.New("gsthost: sample caps carry no frame size")
)

// bytesPerPixel of the BGRA output.
const bytesPerPixel = 4

// frameBuffer exposes a GStreamer buffer as a host.Buffer. Lock maps the
// buffer for reading and Unlock unmaps it. The wrapper expires when the
// appsink callback that created it returns.
type frameBuffer struct {
	mu      sync.Mutex
	buffer  *gst.Buffer
	data    []byte
	mapped  bool
	expired bool

	width  int
	height int
	stride int
	pts    time.Duration
}

func (b *frameBuffer) Lock() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.expired {
		return errBufferExpired
	}
	if b.mapped {
		return errBufferLocked
	}
	info := b.buffer.Map(gst.MapRead)
	if info == nil {
		return errMapFailed
	}
	b.data = info.Bytes()
	b.mapped = true
	return nil
}

func (b *frameBuffer) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmapLocked()
	return nil
}

func (b *frameBuffer) unmapLocked() {
	if !b.mapped {
		return
	}
	b.buffer.Unmap()
	b.data = nil
	b.mapped = false
}

// expire unmaps the buffer if the delegate left it locked and rejects any
// later access.
func (b *frameBuffer) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		slog.Warn("gsthost: buffer still locked when callback returned, unmapping")
	}
	b.unmapLocked()
	b.expired = true
}

func (b *frameBuffer) Width() int { return b.width }
func (b *frameBuffer) Height() int { return b.height }
func (b *frameBuffer) BytesPerRow() int { return b.stride }
func (b *frameBuffer) PixelFormat() host.PixelFormat { return host.PixelFormatBGRA }
func (b *frameBuffer) PresentationTime() time.Duration { return b.pts }

func (b *frameBuffer) BaseAddress() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return nil
	}
	return b.data
}

// frameSize reads width and height from the sample caps.
func frameSize(caps *gst.Caps) (width, height int, err error) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, errNoGeometry
	}
	structure := caps.GetStructureAt(0)

	if val, err := structure.GetValue("width"); err == nil {
		width, _ = val.(int)
	}
	if val, err := structure.GetValue("height"); err == nil {
		height, _ = val.(int)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %s", errNoGeometry, caps.String())
	}
	return width, height, nil
}

// rowStride derives the bytes per row from the mapped size of a frame. Rows
// padded by the producer yield a stride above width*4.
func rowStride(width, height int, size int64) (int, error) {
	row := int64(width * bytesPerPixel)
	if size < row*int64(height) {
		return 0, fmt.Errorf("gsthost: buffer of %d bytes is short for %dx%d BGRA", size, width, height)
	}
	if size%int64(height) == 0 {
		return int(size / int64(height)), nil
	}
	return int(row), nil
}

// presentationTime is the buffer's timestamp, or fallback when the buffer
// carries none.
func presentationTime(pts, fallback time.Duration) time.Duration {
	if pts < 0 {
		return fallback
	}
	return pts
}

// onNewSample is called by GStreamer on its streaming thread when the appsink
// has a sample. Every registered output sees the buffer for the duration of
// this call only.
//
// Returns gst.FlowOK so one bad sample never ends the stream.
func (s *stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gsthost: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gsthost: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	// The host may clip, so the frame is measured, not taken from the config.
	width, height, err := frameSize(sample.GetCaps())
	if err != nil {
		slog.Warn("gsthost: skipping frame", "error", err)
		return gst.FlowOK
	}
	stride, err := rowStride(width, height, buffer.GetSize())
	if err != nil {
		slog.Warn("gsthost: skipping frame", "error", err)
		return gst.FlowOK
	}

	fb := &frameBuffer{
		buffer: buffer,
		width:  width,
		height: height,
		stride: stride,
		pts:    presentationTime(buffer.PresentationTimestamp(), s.sinceStart()),
	}
	defer fb.expire()

	s.samples.Add(1)
	for _, o := range s.snapshotOutputs() {
		o.trampoline(o.id, s, fb, host.OutputScreen)
	}

	return gst.FlowOK
}
