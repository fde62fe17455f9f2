package screenrelay_test

import (
	"errors"
	"testing"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/fake"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLocked_ReadsAndUnlocks(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0x5a)

	var seen screenrelay.Frame
	err := screenrelay.WithLocked(buf, func(f screenrelay.Frame) error {
		assert.True(t, buf.Locked())
		seen = f
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 8, seen.Width)
	assert.Equal(t, 4, seen.Height)
	assert.Equal(t, 32, seen.Stride)
	assert.Equal(t, host.PixelFormatBGRA, seen.PixelFormat)
	assert.Len(t, seen.Data, 8*4*4)

	assert.False(t, buf.Locked())
	assert.Equal(t, int32(1), buf.Locks.Load())
	assert.Equal(t, int32(1), buf.Unlocks.Load())
}

func TestWithLocked_LockFailureDropsFrame(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0)
	buf.FailLock = true

	called := false
	err := screenrelay.WithLocked(buf, func(screenrelay.Frame) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, screenrelay.ErrFrameDelivery)
	assert.ErrorIs(t, err, fake.ErrLockFailed)
	assert.False(t, called)
	assert.Equal(t, int32(0), buf.Unlocks.Load())
}

func TestWithLocked_UnlocksOnError(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0)
	boom := errors.New("send failed")

	err := screenrelay.WithLocked(buf, func(screenrelay.Frame) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, buf.Locked())
	assert.Equal(t, int32(1), buf.Unlocks.Load())
}

func TestWithLocked_UnlocksOnPanic(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0)

	assert.Panics(t, func() {
		_ = screenrelay.WithLocked(buf, func(screenrelay.Frame) error { panic("handler bug") })
	})
	assert.False(t, buf.Locked())
	assert.Equal(t, int32(1), buf.Unlocks.Load())
}

func TestWithLocked_ShortBuffer(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0)
	buf.Pixels = buf.Pixels[:10]

	err := screenrelay.WithLocked(buf, func(screenrelay.Frame) error { return nil })

	assert.ErrorIs(t, err, screenrelay.ErrFrameDelivery)
	assert.False(t, buf.Locked(), "lock released on the validation path")
	assert.Equal(t, int32(1), buf.Locks.Load())
	assert.Equal(t, int32(1), buf.Unlocks.Load())
}

func TestWithLocked_ExpiredBuffer(t *testing.T) {
	buf := fake.NewBuffer(8, 4, 0)
	buf.Expire()

	err := screenrelay.WithLocked(buf, func(screenrelay.Frame) error { return nil })
	assert.ErrorIs(t, err, screenrelay.ErrFrameDelivery)
}

func TestExtract_UnlockIsIdempotent(t *testing.T) {
	buf := fake.NewBuffer(2, 2, 0)

	f, unlock, err := screenrelay.Extract(buf)
	require.NoError(t, err)
	assert.Len(t, f.Data, 16)

	require.NoError(t, unlock())
	require.NoError(t, unlock())
	assert.Equal(t, int32(1), buf.Unlocks.Load())
}
