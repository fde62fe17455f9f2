package gsthost

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// elements holds references to the capture pipeline elements that outlive
// construction.
type elements struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
	source   string
}

// region is an inclusive pixel rectangle in root-window coordinates, the
// form ximagesrc takes.
type region struct {
	startX, startY int
	endX, endY     int
}

// margins are the pixels videocrop removes from each edge.
type margins struct {
	left, top, right, bottom int
}

// captureRegion maps a display-relative source rectangle onto root-window
// coordinates, clipped to the display. clipped reports whether any of the
// requested area fell outside the display.
func captureRegion(display host.Rect, src host.Rect) (r region, clipped bool) {
	x0 := src.Origin.X
	y0 := src.Origin.Y
	x1 := src.Origin.X + src.Size.Width
	y1 := src.Origin.Y + src.Size.Height

	if x0 < 0 {
		x0, clipped = 0, true
	}
	if y0 < 0 {
		y0, clipped = 0, true
	}
	if x1 > display.Size.Width {
		x1, clipped = display.Size.Width, true
	}
	if y1 > display.Size.Height {
		y1, clipped = display.Size.Height, true
	}

	return region{
		startX: display.Origin.X + x0,
		startY: display.Origin.Y + y0,
		endX:   display.Origin.X + x1 - 1,
		endY:   display.Origin.Y + y1 - 1,
	}, clipped
}

// cropMargins returns the videocrop margins that cut src out of a full
// display frame. Negative margins are clamped to zero.
func cropMargins(display host.Size, src host.Rect) margins {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	return margins{
		left:   clamp(src.Origin.X),
		top:    clamp(src.Origin.Y),
		right:  clamp(display.Width - src.Origin.X - src.Size.Width),
		bottom: clamp(display.Height - src.Origin.Y - src.Size.Height),
	}
}

// framerate converts a minimum frame interval into a caps fraction.
// ok is false when the interval leaves the cadence to the source.
func framerate(interval time.Duration) (num, den int, ok bool) {
	if interval <= 0 {
		return 0, 0, false
	}
	n, d := int64(time.Second), int64(interval)
	g := gcd(n, d)
	return int(n / g), int(d / g), true
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// outputCaps builds the caps the appsink accepts.
func outputCaps(cfg host.StreamConfiguration) (string, error) {
	if cfg.PixelFormat != host.PixelFormatBGRA {
		return "", fmt.Errorf("unsupported pixel format %s", cfg.PixelFormat)
	}
	caps := fmt.Sprintf("video/x-raw,format=BGRA,width=%d,height=%d", cfg.Width, cfg.Height)
	if num, den, ok := framerate(cfg.MinimumFrameInterval); ok {
		caps += fmt.Sprintf(",framerate=%d/%d", num, den)
	}
	return caps, nil
}

// sourceFactory names the screen source element for this platform.
func sourceFactory() string {
	switch runtime.GOOS {
	case "linux":
		return "ximagesrc"
	case "darwin":
		return "avfvideosrc"
	case "windows":
		return "d3d11screencapturesrc"
	default:
		return ""
	}
}

// newSource creates the platform screen source, plus a videocrop when the
// source cannot crop by itself.
func newSource(filter host.Filter, cfg host.StreamConfiguration) (src *gst.Element, crop *gst.Element, err error) {
	display := filter.Display.Frame

	factory := sourceFactory()
	if factory == "" {
		return nil, nil, fmt.Errorf("no screen source for %s", runtime.GOOS)
	}
	src, err = gst.NewElement(factory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}

	switch factory {
	case "ximagesrc":
		src.SetProperty("use-damage", false)
		src.SetProperty("show-pointer", true)

		if filter.Mode == host.FilterDesktopIndependentWindow {
			src.SetProperty("xid", uint64(filter.Window.ID))
			return src, nil, nil
		}

		r, clipped := captureRegion(display, cfg.SourceRect)
		if clipped {
			slog.Debug("gsthost: source rect clipped to display",
				"source_rect", cfg.SourceRect.String(),
				"display", display.String(),
			)
		}
		src.SetProperty("startx", uint(r.startX))
		src.SetProperty("starty", uint(r.startY))
		src.SetProperty("endx", uint(r.endX))
		src.SetProperty("endy", uint(r.endY))
		return src, nil, nil

	case "avfvideosrc":
		src.SetProperty("capture-screen", true)
		src.SetProperty("capture-screen-cursor", true)
		src.SetProperty("device-index", int(filter.Display.ID))

	case "d3d11screencapturesrc":
		src.SetProperty("show-cursor", true)
		if filter.Mode == host.FilterDesktopIndependentWindow {
			src.SetProperty("window-handle", uint64(filter.Window.ID))
			return src, nil, nil
		}
		src.SetProperty("monitor-index", int(filter.Display.ID))
	}

	m := cropMargins(display.Size, cfg.SourceRect)
	crop, err = gst.NewElement("videocrop")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create videocrop: %w", err)
	}
	crop.SetProperty("left", m.left)
	crop.SetProperty("top", m.top)
	crop.SetProperty("right", m.right)
	crop.SetProperty("bottom", m.bottom)
	return src, crop, nil
}

// createPipeline builds the capture pipeline:
//
//	<screen source> → [videocrop] → videoconvert → videoscale →
//	[videorate] → capsfilter(BGRA) → appsink
//
// The pipeline is configured but not started (state remains NULL).
func createPipeline(filter host.Filter, cfg host.StreamConfiguration) (*elements, error) {
	capsStr, err := outputCaps(cfg)
	if err != nil {
		return nil, err
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, crop, err := newSource(filter, cfg)
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	var videorate *gst.Element
	if _, _, ok := framerate(cfg.MinimumFrameInterval); ok {
		videorate, err = gst.NewElement("videorate")
		if err != nil {
			return nil, fmt.Errorf("failed to create videorate: %w", err)
		}
		videorate.SetProperty("drop-only", true)
		videorate.SetProperty("skip-to-first", true)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// The host queue: at most QueueDepth samples wait for the delegate, older
	// ones are dropped.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", uint(cfg.QueueDepth))
	appsink.SetProperty("drop", true)

	chain := []*gst.Element{src}
	if crop != nil {
		chain = append(chain, crop)
	}
	chain = append(chain, converter, scaler)
	if videorate != nil {
		chain = append(chain, videorate)
	}
	chain = append(chain, capsfilter, appsink.Element)

	if err := pipeline.AddMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to add elements to pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("gsthost: capture pipeline created",
		"source", sourceFactory(),
		"filter", filter.Mode.String(),
		"caps", capsStr,
		"queue_depth", cfg.QueueDepth,
	)

	return &elements{
		pipeline: pipeline,
		appsink:  appsink,
		source:   sourceFactory(),
	}, nil
}

// destroyPipeline sets the pipeline to NULL, releasing its resources.
func destroyPipeline(e *elements) error {
	if e == nil || e.pipeline == nil {
		return nil
	}
	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
