package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"log-format":     "log.format",
	"name":           "sender.name",
	"host":           "sender.host",
	"port":           "sender.port",
	"mtu":            "sender.mtu",
	"ttl":            "sender.ttl",
	"ignore-alpha":   "sender.ignore_alpha",
	"sdp":            "sender.sdp_file",
	"width":          "capture.width",
	"height":         "capture.height",
	"display":        "capture.display",
	"block":          "capture.blocklist",
	"stats-interval": "stats.interval",
	"measure":        "stats.measure",
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "screen-relay",
		Short: "Relay a display to the network as raw video",
		Long: `screen-relay captures a centered region of a display and sends every frame,
uncompressed, as RTP video to a unicast or multicast destination.

The relay never captures itself, the Dock, or the other applications on
its blocklist.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", fmt.Sprintf("Config file (default %s)", config.DefaultPath()))
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", "text", "Log format: text, json")

	cmd.AddCommand(newStartCommand(a))
	cmd.AddCommand(newContentCommand(a))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// load binds the flags of cmd to their config keys, reads the configuration
// and installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	if err := bindFlags(a.v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.v.Set("log.level", "debug")
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	setupLogger(os.Stderr, cfg)
	return nil
}

// bindFlags binds each flag in keys to its viper key. Unset flags do not
// override the file or environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setupLogger(w io.Writer, cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.Level()}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// No config needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "screen-relay %s\n", version)
		},
	}
}
