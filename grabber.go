package screenrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/cadence"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
)

// GrabberConfig contains configuration for a Grabber
type GrabberConfig struct {
	// SenderName is the network endpoint name (required)
	SenderName string
	// Size is the captured and transmitted frame size (required)
	Size Size
	// DisplayIndex selects the display in enumeration order
	DisplayIndex int
	// Blocklist is added to DefaultBlocklist
	Blocklist []string
	// IgnoreAlpha tags frames BGRX instead of BGRA
	IgnoreAlpha bool
}

// Grabber wires enumeration, filtering, the capture session and the network
// sender into the relay's start/stop surface.
type Grabber struct {
	svc host.Service
	tr  transport.Transport
	cfg GrabberConfig

	mu      sync.Mutex
	session *Session
	sender  *Sender
	// cancelStart is set while Start is in progress
	cancelStart  context.CancelFunc
	startAborted bool

	// tap receives delivery times while Measure runs
	tap atomic.Pointer[chan time.Time]
}

// NewGrabber validates cfg and returns an idle Grabber.
func NewGrabber(svc host.Service, tr transport.Transport, cfg GrabberConfig) (*Grabber, error) {
	if svc == nil || tr == nil {
		return nil, fmt.Errorf("screen-relay: capture service and transport are required")
	}
	if cfg.SenderName == "" {
		return nil, fmt.Errorf("screen-relay: sender name is required")
	}
	if cfg.Size.Width <= 0 || cfg.Size.Height <= 0 {
		return nil, fmt.Errorf("screen-relay: invalid size %dx%d", cfg.Size.Width, cfg.Size.Height)
	}
	if cfg.DisplayIndex < 0 {
		return nil, fmt.Errorf("screen-relay: invalid display index %d", cfg.DisplayIndex)
	}
	return &Grabber{svc: svc, tr: tr, cfg: cfg}, nil
}

// Start creates the sender, picks the configured display, and starts a
// capture session relaying every frame to the sender. It blocks until the
// session is running, the start fails, or ctx expires.
//
// A sender construction failure is returned before anything is captured.
// Stop called while Start is blocked aborts the start.
func (g *Grabber) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.cancelStart != nil || (g.session != nil && !g.session.State().terminal()) {
		g.mu.Unlock()
		return fmt.Errorf("screen-relay: already started")
	}
	// Left over from a session that failed.
	stale := g.sender
	g.session, g.sender = nil, nil
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.cancelStart = cancel
	g.startAborted = false
	g.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	session, sender, err := g.start(ctx)

	g.mu.Lock()
	aborted := g.startAborted
	g.cancelStart = nil
	if err == nil && !aborted {
		g.session, g.sender = session, sender
	}
	g.mu.Unlock()

	if err != nil {
		return err
	}
	if aborted {
		// Stop arrived after the session came up.
		stopCtx, cancelStop := context.WithTimeout(context.Background(), drainTimeout)
		defer cancelStop()
		session.Stop(stopCtx)
		sender.Close()
		return fmt.Errorf("%w: stopped during start", ErrSessionStart)
	}
	return nil
}

func (g *Grabber) start(ctx context.Context) (*Session, *Sender, error) {
	var opts []SenderOption
	if g.cfg.IgnoreAlpha {
		opts = append(opts, WithIgnoreAlpha())
	}
	sender, err := NewSender(g.tr, g.cfg.SenderName, opts...)
	if err != nil {
		return nil, nil, err
	}

	session, err := g.startSession(ctx, sender)
	if err != nil {
		if cerr := sender.Close(); cerr != nil {
			slog.Warn("screen-relay: sender close after failed start", "error", cerr)
		}
		return nil, nil, err
	}
	return session, sender, nil
}

func (g *Grabber) startSession(ctx context.Context, sender *Sender) (*Session, error) {
	snap, err := g.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	display, err := snap.Display(g.cfg.DisplayIndex)
	if err != nil {
		return nil, err
	}

	blocklist := append(DefaultBlocklist(), g.cfg.Blocklist...)
	filter, err := BuildFilter(display, snap.Applications, blocklist)
	if err != nil {
		return nil, err
	}
	cfg := NewStreamConfig(display, g.cfg.Size)

	session, err := NewSession(g.svc)
	if err != nil {
		filter.Release()
		return nil, err
	}
	if err := session.Configure(filter, cfg); err != nil {
		filter.Release()
		session.Stop(ctx)
		return nil, err
	}

	handler := FrameHandlerFunc(func(ev FrameEvent) error {
		err := WithLocked(ev.Buffer, sender.Send)
		if err == nil {
			g.tick()
		}
		return err
	})
	if err := session.RegisterOutput(handler); err != nil {
		slog.Warn("screen-relay: output registration failed", "error", err)
		// Start reports the registration failure as a start failure.
	}

	result := make(chan error, 1)
	session.Start(func(err error) { result <- err })

	select {
	case err := <-result:
		if err != nil {
			session.Stop(context.Background())
			return nil, err
		}
	case <-ctx.Done():
		// Records the stop; the session tears down when the host start resolves.
		session.Stop(ctx)
		return nil, fmt.Errorf("%w: %w", ErrSessionStart, ctx.Err())
	}

	slog.Info("screen-relay: relay started",
		"sender", sender.Name(),
		"display", display.ID,
		"excluded_applications", len(filter.ExcludedApplications()),
		"source_rect", cfg.SourceRect().String(),
	)
	return session, nil
}

func (g *Grabber) snapshot(ctx context.Context) (*Snapshot, error) {
	type result struct {
		snap *Snapshot
		err  error
	}
	ch := make(chan result, 1)
	NewContentEnumerator(g.svc).RequestSnapshot(func(s *Snapshot, err error) {
		ch <- result{s, err}
	})

	select {
	case r := <-ch:
		return r.snap, r.err
	case <-ctx.Done():
		// Release the snapshot if it still arrives.
		go func() {
			if r := <-ch; r.snap != nil {
				r.snap.Release()
			}
		}()
		return nil, fmt.Errorf("%w: %w", ErrContentUnavailable, ctx.Err())
	}
}

func (g *Grabber) tick() {
	if ch := g.tap.Load(); ch != nil {
		select {
		case *ch <- time.Now():
		default:
		}
	}
}

// Stop stops the session and closes the sender. Idempotent.
//
// A Start still in progress is aborted and returns ErrSessionStart; Stop does
// not wait for it.
func (g *Grabber) Stop(ctx context.Context) error {
	g.mu.Lock()
	if g.cancelStart != nil {
		g.startAborted = true
		g.cancelStart()
	}
	session, sender := g.session, g.sender
	g.mu.Unlock()

	var errs []error
	if session != nil {
		if err := session.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sender != nil {
		if err := sender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Done is closed when the running session stops or fails. It returns a
// closed channel when nothing is running.
func (g *Grabber) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return g.session.Done()
}

// Err returns the failure that ended the session, if any.
func (g *Grabber) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return nil
	}
	return g.session.Err()
}

// Stats returns relay statistics. Thread-safe.
func (g *Grabber) Stats() Stats {
	g.mu.Lock()
	session, sender := g.session, g.sender
	g.mu.Unlock()

	var st Stats
	if session != nil {
		st = session.Stats()
	}
	if sender != nil {
		st.FramesSent = sender.frames.Load()
		st.BytesSent = sender.bytes.Load()
		st.Alive = sender.Alive()
	}
	return st
}

// Measure records delivery times for duration and returns cadence
// statistics. It needs a running session and at least two frames.
// An unstable cadence is reported, not treated as an error.
func (g *Grabber) Measure(ctx context.Context, duration time.Duration) (*CadenceStats, error) {
	g.mu.Lock()
	running := g.session != nil && g.session.State() == StateRunning
	g.mu.Unlock()
	if !running {
		return nil, ErrNotRunning
	}

	ch := make(chan time.Time, 256)
	if !g.tap.CompareAndSwap(nil, &ch) {
		return nil, fmt.Errorf("screen-relay: measurement already in progress")
	}
	defer g.tap.Store(nil)

	slog.Info("screen-relay: measuring cadence", "duration", duration)

	measureCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	var times []time.Time
loop:
	for {
		select {
		case <-measureCtx.Done():
			break loop
		case ts := <-ch:
			times = append(times, ts)
		}
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("screen-relay: measure: %w", ctx.Err())
	}

	if len(times) < 2 {
		return nil, fmt.Errorf("screen-relay: not enough frames to measure cadence (got %d, need at least 2)", len(times))
	}

	c := cadence.Analyze(times, time.Since(start))
	st := &CadenceStats{
		FramesReceived: c.Frames,
		Duration:       c.Window,
		FPSMean:        c.FPSMean,
		FPSStdDev:      c.FPSStdDev,
		FPSMin:         c.FPSMin,
		FPSMax:         c.FPSMax,
		JitterMean:     c.JitterMean,
		JitterMax:      c.JitterMax,
		IsStable:       c.Stable,
	}

	logAttrs := []any{
		"frames", st.FramesReceived,
		"fps_mean", fmt.Sprintf("%.2f", st.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", st.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", st.FPSMin, st.FPSMax),
		"stable", st.IsStable,
	}
	if st.IsStable {
		slog.Info("screen-relay: cadence measured", logAttrs...)
	} else {
		slog.Warn("screen-relay: cadence unstable", logAttrs...)
	}
	return st, nil
}

// ApplicationInfo describes a running application in a content listing.
type ApplicationInfo struct {
	BundleID string `yaml:"bundle_id"`
	Name     string `yaml:"name"`
	PID      int    `yaml:"pid"`
}

// String formats the application as "[bundle]name *pid", with UNKNOWN for
// missing values.
func (a ApplicationInfo) String() string {
	return fmt.Sprintf("[%s]%s *%d", orUnknown(a.BundleID), orUnknown(a.Name), a.PID)
}

// WindowInfo describes a window in a content listing.
type WindowInfo struct {
	ID       uint32          `yaml:"id"`
	Title    string          `yaml:"title"`
	Owner    ApplicationInfo `yaml:"owner"`
	OnScreen bool            `yaml:"on_screen"`
	Frame    string          `yaml:"frame"`
}

// String formats the window as "[bundle]name *pid: #id title".
func (w WindowInfo) String() string {
	return fmt.Sprintf("%s: #%d %s", w.Owner, w.ID, orUnknown(w.Title))
}

// DisplayInfo describes a display in a content listing.
type DisplayInfo struct {
	Index  int    `yaml:"index"`
	ID     uint32 `yaml:"id"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

func (d DisplayInfo) String() string {
	return fmt.Sprintf("display %d (id %d) %dx%d", d.Index, d.ID, d.Width, d.Height)
}

// ContentListing is a plain-data copy of one content snapshot.
type ContentListing struct {
	Displays     []DisplayInfo     `yaml:"displays"`
	Windows      []WindowInfo      `yaml:"windows"`
	Applications []ApplicationInfo `yaml:"applications"`
}

// String renders every window and application, one per line.
func (l ContentListing) String() string {
	var b strings.Builder
	for _, d := range l.Displays {
		fmt.Fprintln(&b, d)
	}
	for _, w := range l.Windows {
		fmt.Fprintln(&b, w)
	}
	for _, a := range l.Applications {
		fmt.Fprintln(&b, a)
	}
	return b.String()
}

// GetContent enumerates shareable content once and returns it as plain data.
// No handles escape; the snapshot is released before returning.
func (g *Grabber) GetContent(ctx context.Context) (*ContentListing, error) {
	snap, err := g.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	l := &ContentListing{}
	for i, d := range snap.Displays {
		l.Displays = append(l.Displays, DisplayInfo{
			Index:  i,
			ID:     d.ID,
			Width:  d.Frame.Size.Width,
			Height: d.Frame.Size.Height,
		})
	}
	for _, w := range snap.Windows {
		l.Windows = append(l.Windows, WindowInfo{
			ID:       w.ID,
			Title:    w.Title,
			Owner:    applicationInfo(w.Owner),
			OnScreen: w.OnScreen,
			Frame:    w.Frame.String(),
		})
	}
	for _, a := range snap.Applications {
		l.Applications = append(l.Applications, applicationInfo(a))
	}
	return l, nil
}

func applicationInfo(a host.Application) ApplicationInfo {
	return ApplicationInfo{BundleID: a.BundleID, Name: a.Name, PID: a.PID}
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}
