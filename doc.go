// Package screenrelay forwards a live display feed to the local network as
// raw video.
//
// Frames arrive from the OS screen-capture service on host-managed threads,
// are locked and read in place, and are pushed synchronously into a
// video-over-IP sender. Nothing is queued between the capture callback and the
// network send: the host's queue depth (5 buffers) is the only buffering.
//
// # Quick Start
//
//	svc, err := gsthost.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tr, err := rtpraw.New(rtpraw.Config{Host: "239.0.0.10", Port: 5004})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	g, err := screenrelay.NewGrabber(svc, tr, screenrelay.GrabberConfig{
//	    SenderName: "screen-relay",
//	    Size:       screenrelay.Size{Width: 1920, Height: 1080},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := g.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Stop(context.Background())
//
//	<-g.Done()
//
// # Pipeline
//
//	ContentEnumerator → BuildFilter → NewStreamConfig → Session
//	    → (host thread) bridge trampoline → WithLocked → Sender.Send
//
// The building blocks are usable on their own; Grabber wires them the way
// the screen-relay binary does.
//
// # Capture area
//
// The stream captures a rectangle of the requested size centered on the
// display, delivered at that size (no scaling). With a 3840x2160 display and
// a 1920x1080 request the source rectangle is ((960,540),(1920,1080)).
//
// # Exclusions
//
// Applications whose bundle identifier appears in the blocklist are removed
// from the capture. DefaultBlocklist carries the relay's own identifier and
// common system overlays.
//
// # Threading
//
// Setup calls (RequestSnapshot, Session.Start) complete through a callback
// invoked exactly once on an internal goroutine. Frame delivery may run on
// several host threads at once; the Sender serializes transport access.
// Only one Session may be active per process.
//
// # Errors
//
// Failures are reported with the sentinel errors in errors.go and can be
// matched with errors.Is. A frame whose buffer cannot be locked or sent is
// dropped and counted in Stats; the session keeps running.
package screenrelay
