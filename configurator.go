package screenrelay

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// DefaultQueueDepth is the number of buffers the host may hold in flight.
const DefaultQueueDepth = 5

// StreamConfig is an immutable capture configuration.
type StreamConfig struct {
	width, height    int
	sourceRect       host.Rect
	destinationRect  host.Rect
	queueDepth       int
	pixelFormat      host.PixelFormat
	colorSpace       string
	minFrameInterval time.Duration
}

// NewStreamConfig returns a configuration that captures a desired-sized
// rectangle centered on display, delivered unscaled at desired size.
//
// The source rectangle is not checked against the display bounds; a request
// larger than the display yields a negative origin and is left to the host.
func NewStreamConfig(display host.Display, desired Size) StreamConfig {
	bounds := display.Frame.Size
	origin := host.Point{
		X: (bounds.Width - desired.Width) / 2,
		Y: (bounds.Height - desired.Height) / 2,
	}

	return StreamConfig{
		width:           desired.Width,
		height:          desired.Height,
		sourceRect:      host.Rect{Origin: origin, Size: desired},
		destinationRect: host.Rect{Size: desired},
		queueDepth:      DefaultQueueDepth,
		pixelFormat:     host.PixelFormatBGRA,
		colorSpace:      host.ColorSpaceSRGB,
	}
}

func (c StreamConfig) Width() int { return c.width }
func (c StreamConfig) Height() int { return c.height }
func (c StreamConfig) SourceRect() host.Rect { return c.sourceRect }
func (c StreamConfig) DestinationRect() host.Rect { return c.destinationRect }
func (c StreamConfig) QueueDepth() int { return c.queueDepth }
func (c StreamConfig) PixelFormat() host.PixelFormat { return c.pixelFormat }
func (c StreamConfig) ColorSpace() string { return c.colorSpace }
func (c StreamConfig) MinimumFrameInterval() time.Duration { return c.minFrameInterval }

// Host returns the host-facing configuration.
func (c StreamConfig) Host() host.StreamConfiguration {
	return host.StreamConfiguration{
		Width:                c.width,
		Height:               c.height,
		SourceRect:           c.sourceRect,
		DestinationRect:      c.destinationRect,
		QueueDepth:           c.queueDepth,
		PixelFormat:          c.pixelFormat,
		ColorSpace:           c.colorSpace,
		MinimumFrameInterval: c.minFrameInterval,
	}
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dx%d src=%s dst=%s queue=%d format=%s",
		c.width, c.height, c.sourceRect, c.destinationRect, c.queueDepth, c.pixelFormat)
}
