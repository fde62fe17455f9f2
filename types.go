package screenrelay

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// Size is a pixel extent.
type Size = host.Size

// Rect is an origin plus extent in display pixels.
type Rect = host.Rect

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateStarting
	StateRunning
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateFailed || s == StateStopped
}

// FrameEvent is one host frame delivery. Buffer is only valid for the
// duration of the FrameHandler call that received it and must not be
// retained.
type FrameEvent struct {
	// Seq is the per-session delivery sequence number, starting at 1
	Seq uint64
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Stride is the row length in bytes
	Stride int
	// PixelFormat of the buffer (BGRA)
	PixelFormat host.PixelFormat
	// Timestamp is the host presentation time
	Timestamp time.Duration
	// TraceID identifies the frame in logs
	TraceID string
	// Buffer is the host buffer. Lock it (see WithLocked) before reading.
	Buffer host.Buffer
}

// Frame is a locked view of a host buffer. Data aliases host memory and is
// only valid until the buffer is unlocked.
type Frame struct {
	Width       int
	Height      int
	Stride      int
	PixelFormat host.PixelFormat
	Data        []byte
}

// FrameHandler receives frame deliveries. It may be called concurrently from
// several host threads.
type FrameHandler interface {
	HandleFrame(ev FrameEvent) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ev FrameEvent) error

func (f FrameHandlerFunc) HandleFrame(ev FrameEvent) error { return f(ev) }

// Stats contains current relay statistics
type Stats struct {
	// State is the session state
	State State
	// FramesReceived is the number of host deliveries routed to the output
	FramesReceived uint64
	// FramesSent is the number of frames handed to the transport
	FramesSent uint64
	// FramesDropped is the total of the Dropped* counters
	FramesDropped uint64
	// DroppedLock counts buffers that could not be locked or read
	DroppedLock uint64
	// DroppedSend counts frames the transport rejected
	DroppedSend uint64
	// DroppedStopped counts deliveries that arrived after Stop
	DroppedStopped uint64
	// DroppedUnknown counts deliveries for an unregistered delegate id
	DroppedUnknown uint64
	// DroppedPanic counts deliveries whose handler panicked
	DroppedPanic uint64
	// IgnoredOutputs counts deliveries for non-screen output types
	IgnoredOutputs uint64
	// BytesSent is the total payload handed to the transport
	BytesSent uint64
	// FPS is the mean delivery rate since the session started running
	FPS float64
	// LatencyMS is the time since the last delivery in milliseconds
	LatencyMS int64
	// Resolution of the last delivered frame (e.g. "1920x1080")
	Resolution string
	// Alive reports whether the transport can still transmit
	Alive bool
}

// CadenceStats describes frame delivery cadence over a measurement window
type CadenceStats struct {
	// FramesReceived during the window
	FramesReceived int
	// Duration of the window
	Duration time.Duration
	// FPSMean is frames per second over the window
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// JitterMean is the mean deviation from the expected interval (seconds)
	JitterMean float64
	// JitterMax is the worst deviation from the expected interval (seconds)
	JitterMax float64
	// IsStable is true when FPS stddev < 15% of mean and jitter < 20% of interval
	IsStable bool
}
