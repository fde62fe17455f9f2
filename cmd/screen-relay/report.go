package main

import (
	"fmt"
	"time"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport/rtpraw"
)

func printBanner(cfg *config.Config, destination string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║                    screen-relay %-8s                  ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Sender Name:   %s\n", cfg.Sender.Name)
	fmt.Printf("  Destination:   %s (mtu %d)\n", destination, cfg.Sender.MTU)
	fmt.Printf("  Size:          %dx%d\n", cfg.Capture.Width, cfg.Capture.Height)
	fmt.Printf("  Display:       %d\n", cfg.Capture.Display)
	if len(cfg.Capture.Blocklist) > 0 {
		fmt.Printf("  Also Blocked:  %v\n", cfg.Capture.Blocklist)
	}
	fmt.Printf("\n")
}

func printCadence(st *screenrelay.CadenceStats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Cadence Measurement\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", st.FramesReceived)
	fmt.Printf("│ Duration:           %6.1f seconds\n", st.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", st.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", st.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", st.FPSMin, st.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", st.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", st.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", st.IsStable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func printFinal(st screenrelay.Stats, errs rtpraw.ErrorCounts) {
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  State:              %s\n", st.State)
	fmt.Printf("  Frames Received:    %d frames\n", st.FramesReceived)
	fmt.Printf("  Frames Sent:        %d frames\n", st.FramesSent)
	fmt.Printf("  Frames Dropped:     %d frames\n", st.FramesDropped)
	if st.FramesDropped > 0 {
		fmt.Printf("    lock/read:        %d\n", st.DroppedLock)
		fmt.Printf("    send:             %d\n", st.DroppedSend)
		fmt.Printf("    after stop:       %d\n", st.DroppedStopped)
		fmt.Printf("    unknown output:   %d\n", st.DroppedUnknown)
		fmt.Printf("    handler panic:    %d\n", st.DroppedPanic)
	}
	fmt.Printf("  Average FPS:        %.2f fps\n", st.FPS)
	fmt.Printf("  Bytes Sent:         %.2f MB\n", float64(st.BytesSent)/1024/1024)
	if total := errs.Network + errs.Negotiation + errs.Resource + errs.Unknown; total > 0 {
		fmt.Printf("─────────────────────────────────────────────────────────\n")
		fmt.Printf("  Network Errors:     %d\n", errs.Network)
		fmt.Printf("  Negotiation Errors: %d\n", errs.Negotiation)
		fmt.Printf("  Resource Errors:    %d\n", errs.Resource)
		fmt.Printf("  Unknown Errors:     %d\n", errs.Unknown)
	}
	fmt.Printf("  Reported At:        %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
