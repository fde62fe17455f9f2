// Package host defines the contract of the OS screen-capture service the relay
// consumes: asynchronous content enumeration, stream creation, output
// registration and per-frame buffer delivery on host-managed threads.
//
// Implementations live in internal/gsthost (GStreamer) and internal/fake
// (deterministic, for tests).
package host

import (
	"fmt"
	"time"
)

// Point is a position in display pixels.
type Point struct {
	X int
	Y int
}

// Size is an extent in pixels.
type Size struct {
	Width  int
	Height int
}

// Rect is an origin plus extent, in pixels.
type Rect struct {
	Origin Point
	Size   Size
}

// NewRect builds a Rect from origin and size components.
func NewRect(x, y, width, height int) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{Width: width, Height: height}}
}

// Contains reports whether o lies entirely within r.
func (r Rect) Contains(o Rect) bool {
	return o.Origin.X >= r.Origin.X &&
		o.Origin.Y >= r.Origin.Y &&
		o.Origin.X+o.Size.Width <= r.Origin.X+r.Size.Width &&
		o.Origin.Y+o.Size.Height <= r.Origin.Y+r.Size.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("((%d,%d),(%d,%d))", r.Origin.X, r.Origin.Y, r.Size.Width, r.Size.Height)
}

// Display is a capturable display.
type Display struct {
	Handle Handle
	ID     uint32
	Frame  Rect
}

// Application is a running application known to the capture service.
// Empty BundleID or Name means the host did not report one.
type Application struct {
	Handle   Handle
	BundleID string
	Name     string
	PID      int
}

// Window is an on-screen window.
type Window struct {
	Handle   Handle
	ID       uint32
	Title    string
	Frame    Rect
	Owner    Application
	OnScreen bool
}

// Content is one enumeration result. It owns one reference on every handle it
// carries; Release drops them.
type Content struct {
	Displays     []Display
	Windows      []Window
	Applications []Application
}

// Release drops the references held by the content snapshot.
func (c *Content) Release() {
	if c == nil {
		return
	}
	for _, d := range c.Displays {
		d.Handle.Release()
	}
	for _, w := range c.Windows {
		w.Handle.Release()
	}
	for _, a := range c.Applications {
		a.Handle.Release()
	}
}

// FilterMode selects how a Filter combines its display, applications and
// windows.
type FilterMode int

const (
	// FilterDisplayExcludingApplications captures a display minus the listed
	// applications, except the listed windows.
	FilterDisplayExcludingApplications FilterMode = iota
	// FilterDisplayIncludingApplications captures only the listed
	// applications on a display, except the listed windows.
	FilterDisplayIncludingApplications
	// FilterDisplayExcludingWindows captures a display minus the listed windows.
	FilterDisplayExcludingWindows
	// FilterDisplayIncludingWindows captures only the listed windows on a display.
	FilterDisplayIncludingWindows
	// FilterDesktopIndependentWindow captures a single window regardless of display.
	FilterDesktopIndependentWindow
)

func (m FilterMode) String() string {
	switch m {
	case FilterDisplayExcludingApplications:
		return "display-excluding-applications"
	case FilterDisplayIncludingApplications:
		return "display-including-applications"
	case FilterDisplayExcludingWindows:
		return "display-excluding-windows"
	case FilterDisplayIncludingWindows:
		return "display-including-windows"
	case FilterDesktopIndependentWindow:
		return "desktop-independent-window"
	default:
		return "unknown"
	}
}

// Filter is the host-facing content filter description.
type Filter struct {
	Mode         FilterMode
	Display      Display
	Window       Window
	Applications []Application
	Windows      []Window
}

// PixelFormat is a FourCC pixel format code.
type PixelFormat uint32

// PixelFormatBGRA is packed 32-bit B,G,R,A ('BGRA').
const PixelFormatBGRA PixelFormat = 'B'<<24 | 'G'<<16 | 'R'<<8 | 'A'

func (p PixelFormat) String() string {
	return string([]byte{byte(p >> 24), byte(p >> 16), byte(p >> 8), byte(p)})
}

// ColorSpaceSRGB names the sRGB colour space.
const ColorSpaceSRGB = "sRGB"

// StreamConfiguration is the host-facing capture configuration.
type StreamConfiguration struct {
	Width           int
	Height          int
	SourceRect      Rect
	DestinationRect Rect
	QueueDepth      int
	PixelFormat     PixelFormat
	ColorSpace      string
	// MinimumFrameInterval of zero leaves the cadence to the host.
	MinimumFrameInterval time.Duration
}

// OutputType tags the kind of sample a stream output receives.
type OutputType int

// OutputScreen is the screen (video) output type.
const OutputScreen OutputType = 0

// DelegateID is the opaque identity a host stream uses to route frames back
// to a registered output.
type DelegateID string

// Buffer is a host-delivered frame buffer. It is valid only for the dynamic
// extent of the callback that delivered it. BaseAddress may only be read
// between Lock and Unlock.
type Buffer interface {
	Lock() error
	Unlock() error
	Width() int
	Height() int
	BytesPerRow() int
	PixelFormat() PixelFormat
	// BaseAddress returns a view of the pixel memory, or nil when the buffer
	// is not locked.
	BaseAddress() []byte
	PresentationTime() time.Duration
}

// Trampoline is the single entry point a host stream calls for every
// delivered sample. It may be invoked concurrently from arbitrary host threads.
type Trampoline func(id DelegateID, stream Stream, buf Buffer, outputType OutputType)

// Stream is a host capture stream.
type Stream interface {
	Handle() Handle
	// AddStreamOutput attaches a delegate. The host rejects duplicates.
	AddStreamOutput(id DelegateID, outputType OutputType, trampoline Trampoline) error
	RemoveStreamOutput(id DelegateID, outputType OutputType) error
	// StartCapture and StopCapture complete asynchronously, invoking
	// onComplete exactly once.
	StartCapture(onComplete func(error))
	StopCapture(onComplete func(error))
}

// Service is the host capture service.
type Service interface {
	// GetShareableContent enumerates capturable content asynchronously,
	// invoking onComplete exactly once.
	GetShareableContent(onComplete func(*Content, error))
	// NewStream creates a stream. onStop is invoked at most once if the host
	// stops the stream on its own with an error.
	NewStream(filter Filter, cfg StreamConfiguration, onStop func(error)) (Stream, error)
}
