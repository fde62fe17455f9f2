package screenrelay

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
)

// Extract locks buf and returns a view of its pixels together with the
// function that unlocks it. unlock is idempotent and must be called on every
// path; WithLocked does that for you.
//
// A buffer that cannot be locked, or whose memory is smaller than
// stride*height, yields an error wrapping ErrFrameDelivery and no lock is held.
func Extract(buf host.Buffer) (Frame, func() error, error) {
	if err := buf.Lock(); err != nil {
		return Frame{}, nil, fmt.Errorf("%w: lock buffer: %w", ErrFrameDelivery, err)
	}

	var once sync.Once
	var unlockErr error
	unlock := func() error {
		once.Do(func() {
			if err := buf.Unlock(); err != nil {
				unlockErr = fmt.Errorf("%w: unlock buffer: %w", ErrFrameDelivery, err)
			}
		})
		return unlockErr
	}

	f := Frame{
		Width:       buf.Width(),
		Height:      buf.Height(),
		Stride:      buf.BytesPerRow(),
		PixelFormat: buf.PixelFormat(),
		Data:        buf.BaseAddress(),
	}

	if f.Data == nil {
		unlock()
		return Frame{}, nil, fmt.Errorf("%w: buffer has no base address", ErrFrameDelivery)
	}
	if need := f.Stride * f.Height; f.Stride < f.Width*4 || len(f.Data) < need {
		unlock()
		return Frame{}, nil, fmt.Errorf("%w: buffer too small (%dx%d stride=%d len=%d)",
			ErrFrameDelivery, f.Width, f.Height, f.Stride, len(f.Data))
	}

	return f, unlock, nil
}

// WithLocked runs fn with a locked view of buf and unlocks it afterwards,
// including when fn panics. fn must not retain frame.Data.
func WithLocked(buf host.Buffer, fn func(frame Frame) error) (err error) {
	frame, unlock, err := Extract(buf)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			slog.Warn("screen-relay: buffer unlock failed", "error", uerr)
			if err == nil {
				err = uerr
			}
		}
	}()

	return fn(frame)
}
