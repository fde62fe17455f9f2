// Package transport defines the network video transport the relay pushes
// frames into. The wire protocol belongs to the implementation.
package transport

import (
	"errors"
	"time"
)

// FourCC identifies the pixel layout of a video frame.
type FourCC int

const (
	// FourCCBGRA is packed B,G,R,A with a meaningful alpha channel.
	FourCCBGRA FourCC = iota
	// FourCCBGRX is packed B,G,R,X with alpha ignored.
	FourCCBGRX
)

func (f FourCC) String() string {
	switch f {
	case FourCCBGRA:
		return "BGRA"
	case FourCCBGRX:
		return "BGRx"
	default:
		return "unknown"
	}
}

// FrameFormat is the scan type of a video frame.
type FrameFormat int

const (
	// FrameProgressive is a full, non-interlaced frame.
	FrameProgressive FrameFormat = iota
	// FrameInterleaved is an interlaced frame carrying both fields.
	FrameInterleaved
)

func (f FrameFormat) String() string {
	switch f {
	case FrameProgressive:
		return "progressive"
	case FrameInterleaved:
		return "interleaved"
	default:
		return "unknown"
	}
}

// VideoFrame is one frame handed to SendVideo. Data is only guaranteed valid
// for the duration of the call; implementations must not retain it.
type VideoFrame struct {
	Width       int
	Height      int
	FourCC      FourCC
	FrameFormat FrameFormat
	Data        []byte
	// StrideBytes of zero means Width*4.
	StrideBytes int
	// Timestamp of zero lets the transport stamp the frame (unclocked).
	Timestamp time.Duration
}

// Handle identifies a sender created by a Transport.
type Handle uint64

// ErrSenderClosed is returned by SendVideo after DestroySender.
var ErrSenderClosed = errors.New("transport: sender closed")

// Transport is the network video transport client.
//
// SendVideo is synchronous: it returns once the frame has been handed to the
// network stack (or the transport's own pacing has released it). It may block.
type Transport interface {
	CreateSender(name string) (Handle, error)
	SendVideo(h Handle, frame VideoFrame) error
	DestroySender(h Handle) error
}

// LivenessChecker is implemented by transports that can report whether a
// sender is still able to transmit.
type LivenessChecker interface {
	Alive(h Handle) bool
}
