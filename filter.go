package screenrelay

import (
	"fmt"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// BundleID is the relay's own application identifier. It is always part of
// DefaultBlocklist so the relay never captures itself.
const BundleID = "com.e7canasta.screen-relay"

// DefaultBlocklist returns the bundle identifiers excluded from capture by
// default: the relay itself and system overlays that should not be broadcast.
func DefaultBlocklist() []string {
	return []string{
		BundleID,
		"com.apple.controlcenter",
		"com.apple.dock",
		"com.apple.TextInputMenuAgent",
		"com.1password.1password",
		"com.getdropbox.dropbox",
		"com.apple.notificationcenterui",
		"com.justsystems.inputmethod.atok32",
		"com.apple.systemuiserver",
		"com.newtek.Application-Mac-NDI-StudioMonitor",
		"com.hnc.Discord",
	}
}

// ContentFilter selects what a capture stream records. It is immutable and
// holds references on the handles it names until Release.
type ContentFilter struct {
	f        host.Filter
	released *atomic.Bool
}

// BuildFilter returns a filter that captures display minus every application
// whose bundle identifier is in blocklist. No windows are excepted.
// Applications without a bundle identifier are never excluded.
func BuildFilter(display host.Display, applications []host.Application, blocklist []string) (ContentFilter, error) {
	blocked := make(map[string]struct{}, len(blocklist))
	for _, id := range blocklist {
		blocked[id] = struct{}{}
	}

	var excluded []host.Application
	for _, app := range applications {
		if app.BundleID == "" {
			continue
		}
		if _, ok := blocked[app.BundleID]; ok {
			excluded = append(excluded, app)
		}
	}

	return newFilter(host.Filter{
		Mode:         host.FilterDisplayExcludingApplications,
		Display:      display,
		Applications: excluded,
	})
}

// NewDisplayFilterIncludingApplications captures only applications on
// display, except the listed windows.
func NewDisplayFilterIncludingApplications(display host.Display, applications []host.Application, exceptingWindows []host.Window) (ContentFilter, error) {
	return newFilter(host.Filter{
		Mode:         host.FilterDisplayIncludingApplications,
		Display:      display,
		Applications: applications,
		Windows:      exceptingWindows,
	})
}

// NewDisplayFilterExcludingApplications captures display minus applications,
// except the listed windows.
func NewDisplayFilterExcludingApplications(display host.Display, applications []host.Application, exceptingWindows []host.Window) (ContentFilter, error) {
	return newFilter(host.Filter{
		Mode:         host.FilterDisplayExcludingApplications,
		Display:      display,
		Applications: applications,
		Windows:      exceptingWindows,
	})
}

// NewDisplayFilterExcludingWindows captures display minus windows.
func NewDisplayFilterExcludingWindows(display host.Display, windows []host.Window) (ContentFilter, error) {
	return newFilter(host.Filter{
		Mode:    host.FilterDisplayExcludingWindows,
		Display: display,
		Windows: windows,
	})
}

// NewDisplayFilterIncludingWindows captures only windows on display.
func NewDisplayFilterIncludingWindows(display host.Display, windows []host.Window) (ContentFilter, error) {
	return newFilter(host.Filter{
		Mode:    host.FilterDisplayIncludingWindows,
		Display: display,
		Windows: windows,
	})
}

// NewWindowFilter captures a single window regardless of the display it is on.
func NewWindowFilter(window host.Window) (ContentFilter, error) {
	w := window.Handle.Retain()
	if !w.Valid() {
		return ContentFilter{}, fmt.Errorf("%w: window %d is no longer available",
			ErrFilterConstruction, window.ID)
	}
	window.Handle = w
	return ContentFilter{
		f:        host.Filter{Mode: host.FilterDesktopIndependentWindow, Window: window},
		released: new(atomic.Bool),
	}, nil
}

func newFilter(f host.Filter) (ContentFilter, error) {
	d := f.Display.Handle.Retain()
	if !d.Valid() {
		return ContentFilter{}, fmt.Errorf("%w: display %d is no longer available",
			ErrFilterConstruction, f.Display.ID)
	}
	f.Display.Handle = d

	f.Applications = retainApplications(f.Applications)
	f.Windows = retainWindows(f.Windows)

	return ContentFilter{f: f, released: new(atomic.Bool)}, nil
}

func retainApplications(apps []host.Application) []host.Application {
	if len(apps) == 0 {
		return nil
	}
	out := make([]host.Application, len(apps))
	for i, a := range apps {
		a.Handle = a.Handle.Retain()
		out[i] = a
	}
	return out
}

func retainWindows(windows []host.Window) []host.Window {
	if len(windows) == 0 {
		return nil
	}
	out := make([]host.Window, len(windows))
	for i, w := range windows {
		w.Handle = w.Handle.Retain()
		out[i] = w
	}
	return out
}

// Mode returns how the filter combines its display, applications and windows.
func (f ContentFilter) Mode() host.FilterMode { return f.f.Mode }

// Display returns the filtered display.
func (f ContentFilter) Display() host.Display { return f.f.Display }

// Window returns the captured window of a desktop-independent window filter.
func (f ContentFilter) Window() host.Window { return f.f.Window }

// ExcludedApplications returns the applications removed from (or, for
// including modes, selected for) capture.
func (f ContentFilter) ExcludedApplications() []host.Application {
	return append([]host.Application(nil), f.f.Applications...)
}

// Windows returns the filter's window set (exceptions, exclusions or
// inclusions depending on Mode).
func (f ContentFilter) Windows() []host.Window {
	return append([]host.Window(nil), f.f.Windows...)
}

// Valid reports whether the filter was built and not yet released.
func (f ContentFilter) Valid() bool {
	return f.released != nil && !f.released.Load()
}

// Host returns the host-facing description.
func (f ContentFilter) Host() host.Filter {
	return f.f
}

// Release drops the filter's references. Copies of a filter share one
// release; extra calls are ignored.
func (f ContentFilter) Release() {
	if f.released == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	f.f.Display.Handle.Release()
	f.f.Window.Handle.Release()
	for _, a := range f.f.Applications {
		a.Handle.Release()
	}
	for _, w := range f.f.Windows {
		w.Handle.Release()
	}
}
