package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/gsthost"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// contentTimeout bounds the enumeration.
const contentTimeout = 10 * time.Second

// listingSource is the part of Grabber the content command needs.
type listingSource interface {
	GetContent(ctx context.Context) (*screenrelay.ContentListing, error)
}

// noTransport backs a Grabber that only lists content.
type noTransport struct{}

var errListOnly = errors.New("listing only, no transport")

func (noTransport) CreateSender(string) (transport.Handle, error) { return 0, errListOnly }
func (noTransport) SendVideo(transport.Handle, transport.VideoFrame) error {
	return errListOnly
}
func (noTransport) DestroySender(transport.Handle) error { return errListOnly }

type contentOptions struct {
	OutputFormat string
}

func newContentCommand(a *app) *cobra.Command {
	opts := &contentOptions{}

	cmd := &cobra.Command{
		Use:   "content",
		Short: "List shareable displays, windows and applications",
		Example: `  screen-relay content
  screen-relay content -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := gsthost.New()
			if err != nil {
				return err
			}
			// The listing never creates a sender; any transport will do.
			g, err := screenrelay.NewGrabber(svc, noTransport{}, screenrelay.GrabberConfig{
				SenderName: a.cfg.Sender.Name,
				Size:       screenrelay.Size{Width: a.cfg.Capture.Width, Height: a.cfg.Capture.Height},
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), contentTimeout)
			defer cancel()
			return runContent(ctx, cmd.OutOrStdout(), g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (text or yaml)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runContent(ctx context.Context, w io.Writer, src listingSource, opts *contentOptions) error {
	if opts.OutputFormat != "text" && opts.OutputFormat != "yaml" {
		return fmt.Errorf("invalid output format %q (must be text or yaml)", opts.OutputFormat)
	}

	listing, err := src.GetContent(ctx)
	if err != nil {
		return err
	}

	if opts.OutputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(listing); err != nil {
			return fmt.Errorf("encode listing: %w", err)
		}
		return enc.Close()
	}

	renderListing(w, listing)
	return nil
}

func renderListing(w io.Writer, l *screenrelay.ContentListing) {
	heading := color.New(color.Bold)
	faint := color.New(color.Faint)
	index := color.New(color.FgCyan)

	heading.Fprintln(w, "Displays")
	for _, d := range l.Displays {
		fmt.Fprintf(w, "  %s %s\n", index.Sprintf("%d.", d.Index), d)
	}

	heading.Fprintln(w, "Windows")
	if len(l.Windows) == 0 {
		faint.Fprintln(w, "  (none reported)")
	}
	for _, win := range l.Windows {
		line := win.String()
		if !win.OnScreen {
			line = faint.Sprint(line)
		}
		fmt.Fprintf(w, "  %s\n", line)
	}

	heading.Fprintln(w, "Applications")
	for _, app := range l.Applications {
		fmt.Fprintf(w, "  %s\n", app)
	}
}
