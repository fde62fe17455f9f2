package screenrelay

import "errors"

var (
	// ErrContentUnavailable is returned when the capture service cannot
	// enumerate shareable content (permission denied, service unavailable).
	ErrContentUnavailable = errors.New("screen-relay: shareable content unavailable")

	// ErrFilterConstruction is returned when a content filter cannot be built
	// from the given display.
	ErrFilterConstruction = errors.New("screen-relay: content filter construction failed")

	// ErrSessionStart is returned when a capture session fails to start.
	ErrSessionStart = errors.New("screen-relay: capture session start failed")

	// ErrDelegateRegistration is returned when the frame output cannot be
	// attached to the capture stream.
	ErrDelegateRegistration = errors.New("screen-relay: output registration failed")

	// ErrSenderConstruction is returned when the network sender cannot be
	// created. It is not retried.
	ErrSenderConstruction = errors.New("screen-relay: sender construction failed")

	// ErrFrameDelivery is returned when a delivered buffer cannot be locked or
	// read. The frame is dropped.
	ErrFrameDelivery = errors.New("screen-relay: frame delivery failed")

	// ErrSessionActive is returned when a second session is created while one
	// is still active in the process.
	ErrSessionActive = errors.New("screen-relay: a capture session is already active")

	// ErrNotRunning is returned by operations that need a running session.
	ErrNotRunning = errors.New("screen-relay: not running")
)
