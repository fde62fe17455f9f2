// Command screen-relay streams a display to the local network as raw RTP
// video.
//
// Usage:
//
//	screen-relay start --host 239.0.0.10 --port 5004 --width 1920 --height 1080
//	screen-relay content
//	screen-relay content -o yaml
//	screen-relay version
//
// Every flag can also be set in $XDG_CONFIG_HOME/screen-relay/config.yaml or
// through SCREEN_RELAY_* environment variables (SCREEN_RELAY_SENDER_HOST, ...).
package main

import (
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "v0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
