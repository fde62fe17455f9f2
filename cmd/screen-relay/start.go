package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/gsthost"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport/rtpraw"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds Grabber.Stop on exit.
const shutdownTimeout = 5 * time.Second

var errSenderLost = errors.New("sender no longer alive")

func newStartCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start relaying the display until interrupted",
		Example: `  screen-relay start
  screen-relay start --host 192.168.1.40 --port 5004 --width 1280 --height 720
  screen-relay start --block obs --block zoom.us --sdp relay.sdp --measure 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, a.cfg)
		},
	}

	d := config.Default()
	flags := cmd.Flags()
	flags.String("name", d.Sender.Name, "Sender name announced to receivers")
	flags.String("host", d.Sender.Host, "Destination address (unicast or multicast)")
	flags.Int("port", d.Sender.Port, "Destination UDP port")
	flags.Int("mtu", d.Sender.MTU, "RTP packet size")
	flags.Int("ttl", d.Sender.TTL, "Multicast TTL (0 = system default)")
	flags.Bool("ignore-alpha", d.Sender.IgnoreAlpha, "Send frames as BGRX")
	flags.String("sdp", "", "Write the session description to this file")
	flags.Int("width", d.Capture.Width, "Captured and transmitted width")
	flags.Int("height", d.Capture.Height, "Captured and transmitted height")
	flags.Int("display", d.Capture.Display, "Display index (see 'screen-relay content')")
	flags.StringSlice("block", nil, "Additional application ids never captured (repeatable)")
	flags.Duration("stats-interval", d.Stats.Interval, "Interval between stats reports (0 disables)")
	flags.Duration("measure", d.Stats.Measure, "Measure delivery cadence for this long after start (0 skips)")

	return cmd
}

func runStart(ctx context.Context, cfg *config.Config) error {
	svc, err := gsthost.New()
	if err != nil {
		return err
	}
	tr, err := rtpraw.New(rtpraw.Config{
		Host: cfg.Sender.Host,
		Port: cfg.Sender.Port,
		MTU:  cfg.Sender.MTU,
		TTL:  cfg.Sender.TTL,
	})
	if err != nil {
		return err
	}

	g, err := screenrelay.NewGrabber(svc, tr, screenrelay.GrabberConfig{
		SenderName:   cfg.Sender.Name,
		Size:         screenrelay.Size{Width: cfg.Capture.Width, Height: cfg.Capture.Height},
		DisplayIndex: cfg.Capture.Display,
		Blocklist:    cfg.Capture.Blocklist,
		IgnoreAlpha:  cfg.Sender.IgnoreAlpha,
	})
	if err != nil {
		return err
	}

	printBanner(cfg, tr.Destination())

	if err := g.Start(ctx); err != nil {
		slog.Error("screen-relay: failed to start", "error", err)
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.Stop(stopCtx); err != nil {
			slog.Error("screen-relay: error stopping relay", "error", err)
		}
		printFinal(g.Stats(), tr.ErrorCounts())
	}()

	if cfg.Sender.SDPFile != "" {
		sdp := tr.SDP(cfg.Sender.Name, cfg.Capture.Width, cfg.Capture.Height)
		if err := os.WriteFile(cfg.Sender.SDPFile, []byte(sdp), 0o644); err != nil {
			return fmt.Errorf("write sdp file: %w", err)
		}
		slog.Info("screen-relay: session description written", "path", cfg.Sender.SDPFile)
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-g.Done():
			if err := g.Err(); err != nil {
				return err
			}
			return errors.New("capture ended")
		}
	})

	group.Go(func() error {
		return watchStats(gctx, g, tr, cfg.Stats.Interval)
	})

	if cfg.Stats.Measure > 0 {
		group.Go(func() error {
			st, err := g.Measure(gctx, cfg.Stats.Measure)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				slog.Warn("screen-relay: cadence measurement failed", "error", err)
				return nil
			}
			printCadence(st)
			return nil
		})
	}

	slog.Info("screen-relay: relaying, press Ctrl+C to stop")
	err = group.Wait()
	if ctx.Err() != nil {
		slog.Info("screen-relay: received interrupt signal, shutting down")
		return nil
	}
	return err
}

// watchStats logs a stats line every interval and fails when the sender
// stops being able to transmit.
func watchStats(ctx context.Context, g *screenrelay.Grabber, tr *rtpraw.Transport, interval time.Duration) error {
	// Liveness is checked even with reporting off.
	check := interval
	if check <= 0 {
		check = time.Second
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := g.Stats()
			if st.State == screenrelay.StateRunning && !st.Alive {
				slog.Error("screen-relay: sender lost", "errors", tr.ErrorCounts())
				return errSenderLost
			}
			if interval <= 0 {
				continue
			}
			slog.Info("screen-relay: stats",
				"state", st.State.String(),
				"received", st.FramesReceived,
				"sent", st.FramesSent,
				"dropped", st.FramesDropped,
				"fps", fmt.Sprintf("%.2f", st.FPS),
				"latency_ms", st.LatencyMS,
				"resolution", st.Resolution,
				"mb_sent", fmt.Sprintf("%.1f", float64(st.BytesSent)/1024/1024),
			)
		}
	}
}
