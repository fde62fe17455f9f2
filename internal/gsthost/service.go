// Package gsthost implements the host capture service on GStreamer.
//
// Displays are enumerated with github.com/kbinani/screenshot and running
// applications with github.com/mitchellh/go-ps. Streams are GStreamer
// pipelines ending in an appsink whose samples are handed, in place, to the
// registered outputs on the streaming thread:
//
//	ximagesrc | avfvideosrc | d3d11screencapturesrc
//	    → [videocrop] → videoconvert → videoscale → capsfilter(BGRA) → appsink
//
// The screen sources grab whole displays or single windows. They cannot
// remove applications or windows from a display grab, so exclusions in a
// filter are logged and otherwise not enforced.
package gsthost

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/kbinani/screenshot"
	"github.com/mitchellh/go-ps"
	"github.com/tinyzimmer/go-gst/gst"
)

var errNoDisplays = errors.New("gsthost: no active displays")

var initOnce sync.Once

// Service is a host.Service backed by GStreamer.
type Service struct {
	// displays and processes are swapped in tests.
	displays  func() []image.Rectangle
	processes func() ([]ps.Process, error)
}

// New returns a GStreamer capture service.
//
// Fails fast when GStreamer is not installed or not usable.
func New() (*Service, error) {
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("gsthost: GStreamer not available: %w", err)
	}
	return &Service{
		displays:  activeDisplays,
		processes: ps.Processes,
	}, nil
}

// checkGStreamerAvailable initializes GStreamer and verifies that an element
// can be created.
func checkGStreamerAvailable() error {
	initOnce.Do(func() { gst.Init(nil) })

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}

func activeDisplays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	bounds := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		bounds = append(bounds, screenshot.GetDisplayBounds(i))
	}
	return bounds
}

// GetShareableContent enumerates displays and applications on a new
// goroutine. Windows are not enumerated.
func (s *Service) GetShareableContent(onComplete func(*host.Content, error)) {
	go func() {
		c, err := s.enumerate()
		onComplete(c, err)
	}()
}

func (s *Service) enumerate() (*host.Content, error) {
	bounds := s.displays()
	if len(bounds) == 0 {
		return nil, errNoDisplays
	}

	procs, err := s.processes()
	if err != nil {
		return nil, fmt.Errorf("gsthost: failed to list processes: %w", err)
	}

	c := &host.Content{
		Displays:     make([]host.Display, 0, len(bounds)),
		Applications: make([]host.Application, 0, len(procs)),
	}
	for i, b := range bounds {
		c.Displays = append(c.Displays, host.Display{
			Handle: host.NewHandle(nil),
			ID:     uint32(i),
			Frame:  host.NewRect(b.Min.X, b.Min.Y, b.Dx(), b.Dy()),
		})
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid() < procs[j].Pid() })
	for _, p := range procs {
		// The executable name stands in for the bundle identifier.
		c.Applications = append(c.Applications, host.Application{
			Handle:   host.NewHandle(nil),
			BundleID: p.Executable(),
			Name:     p.Executable(),
			PID:      p.Pid(),
		})
	}

	slog.Debug("gsthost: content enumerated",
		"displays", len(c.Displays),
		"applications", len(c.Applications),
	)
	return c, nil
}

// NewStream builds a capture pipeline for filter and cfg. The pipeline stays
// in NULL until StartCapture. onStop is invoked at most once, when the
// pipeline errors or ends after capture started.
func (s *Service) NewStream(filter host.Filter, cfg host.StreamConfiguration, onStop func(error)) (host.Stream, error) {
	if !filter.Display.Handle.Valid() && filter.Mode != host.FilterDesktopIndependentWindow {
		return nil, fmt.Errorf("gsthost: filter display released")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("gsthost: invalid output size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.QueueDepth <= 0 {
		return nil, fmt.Errorf("gsthost: invalid queue depth %d", cfg.QueueDepth)
	}
	warnUnenforced(filter)

	e, err := createPipeline(filter, cfg)
	if err != nil {
		return nil, fmt.Errorf("gsthost: %w", err)
	}
	return newStream(e, cfg, onStop), nil
}

// warnUnenforced logs the parts of filter the screen sources cannot honour.
func warnUnenforced(filter host.Filter) {
	switch filter.Mode {
	case host.FilterDisplayExcludingApplications, host.FilterDisplayIncludingApplications:
		if len(filter.Applications) == 0 {
			return
		}
		names := make([]string, 0, len(filter.Applications))
		for _, a := range filter.Applications {
			names = append(names, a.BundleID)
		}
		slog.Warn("gsthost: application filtering not supported by screen source, capturing whole area",
			"mode", filter.Mode.String(),
			"applications", names,
		)
	case host.FilterDisplayExcludingWindows, host.FilterDisplayIncludingWindows:
		if len(filter.Windows) == 0 {
			return
		}
		slog.Warn("gsthost: window filtering not supported by screen source, capturing whole area",
			"mode", filter.Mode.String(),
			"windows", len(filter.Windows),
		)
	}
}
