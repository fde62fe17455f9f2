package rtpraw

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/transport"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// payloadType is the dynamic RTP payload type used for raw video.
const payloadType = 96

// senderElements holds the sender pipeline elements used after construction.
type senderElements struct {
	pipeline *gst.Pipeline
	src      *app.Source
}

// createSenderPipeline builds:
//
//	appsrc → videoconvert → capsfilter(BGRA) → rtpvrawpay → udpsink
//
// appsrc blocks when its queue is full, so a push returns once the previous
// frame has moved downstream. Frames are stamped on arrival (do-timestamp).
func createSenderPipeline(name string, cfg Config) (*senderElements, error) {
	pipeline, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	src.SetProperty("do-timestamp", true)
	src.SetProperty("block", true)
	src.SetProperty("format", gst.FormatTime)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	// BGRX input gets an opaque alpha here; the wire format is always BGRA.
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=BGRA"))

	payloader, err := gst.NewElement("rtpvrawpay")
	if err != nil {
		return nil, fmt.Errorf("failed to create rtpvrawpay: %w", err)
	}
	payloader.SetProperty("mtu", uint(cfg.MTU))
	payloader.SetProperty("pt", uint(payloadType))

	sink, err := gst.NewElement("udpsink")
	if err != nil {
		return nil, fmt.Errorf("failed to create udpsink: %w", err)
	}
	sink.SetProperty("host", cfg.Host)
	sink.SetProperty("port", cfg.Port)
	sink.SetProperty("sync", false)
	sink.SetProperty("async", false)
	if cfg.TTL > 0 {
		sink.SetProperty("ttl", cfg.TTL)
		sink.SetProperty("ttl-mc", cfg.TTL)
	}

	chain := []*gst.Element{src.Element, converter, capsfilter, payloader, sink}
	if err := pipeline.AddMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to add elements to pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("rtpraw: sender pipeline created",
		"name", name,
		"destination", cfg.destination(),
		"mtu", cfg.MTU,
	)
	return &senderElements{pipeline: pipeline, src: src}, nil
}

// rawCaps describes frame for appsrc.
func rawCaps(frame transport.VideoFrame) string {
	caps := fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=0/1",
		frame.FourCC, frame.Width, frame.Height)
	if frame.FrameFormat == transport.FrameInterleaved {
		caps += ",interlace-mode=interleaved"
	}
	return caps
}

// packRows returns frame's pixels with rows of exactly Width*4 bytes, the
// layout GStreamer expects for 32-bit formats. Data that is already packed is
// returned as is.
func packRows(frame transport.VideoFrame) ([]byte, error) {
	row := frame.Width * 4
	stride := frame.StrideBytes
	if stride == 0 {
		stride = row
	}
	if stride < row {
		return nil, fmt.Errorf("stride %d shorter than row %d", stride, row)
	}
	if need := stride*(frame.Height-1) + row; len(frame.Data) < need {
		return nil, fmt.Errorf("frame data %d bytes, need %d", len(frame.Data), need)
	}
	if stride == row {
		return frame.Data[:row*frame.Height], nil
	}

	packed := make([]byte, row*frame.Height)
	for y := 0; y < frame.Height; y++ {
		copy(packed[y*row:(y+1)*row], frame.Data[y*stride:y*stride+row])
	}
	return packed, nil
}
