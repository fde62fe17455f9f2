package host

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandle_ReleasesExactlyOnce(t *testing.T) {
	var freed atomic.Int32
	h := NewHandle(func() { freed.Add(1) })

	assert.True(t, h.Valid())
	assert.NotZero(t, h.ID())

	h2 := h.Retain()
	assert.Equal(t, h.ID(), h2.ID())

	h.Release()
	assert.True(t, h2.Valid(), "one reference still held")
	assert.Equal(t, int32(0), freed.Load())

	h2.Release()
	assert.False(t, h.Valid())
	assert.Equal(t, int32(1), freed.Load())

	// Over-release is ignored.
	h.Release()
	h2.Release()
	assert.Equal(t, int32(1), freed.Load())
}

func TestHandle_RetainAfterFreeReturnsZero(t *testing.T) {
	h := NewHandle(nil)
	h.Release()

	r := h.Retain()
	assert.False(t, r.Valid())
	assert.Zero(t, r.ID())
}

func TestHandle_ZeroValue(t *testing.T) {
	var h Handle
	assert.False(t, h.Valid())
	assert.Zero(t, h.ID())
	h.Release()
	assert.False(t, h.Retain().Valid())
}

func TestHandle_ConcurrentRetainRelease(t *testing.T) {
	var freed atomic.Int32
	h := NewHandle(func() { freed.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := h.Retain()
			r.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), freed.Load())
	h.Release()
	assert.Equal(t, int32(1), freed.Load())
}

func TestRect_Contains(t *testing.T) {
	display := NewRect(0, 0, 3840, 2160)

	assert.True(t, display.Contains(NewRect(960, 540, 1920, 1080)))
	assert.True(t, display.Contains(display))
	assert.False(t, display.Contains(NewRect(3000, 0, 1920, 1080)))
	assert.False(t, display.Contains(NewRect(-1, 0, 10, 10)))
	assert.Equal(t, "((960,540),(1920,1080))", NewRect(960, 540, 1920, 1080).String())
}

func TestPixelFormat_String(t *testing.T) {
	assert.Equal(t, "BGRA", PixelFormatBGRA.String())
	assert.Equal(t, PixelFormat(1111970369), PixelFormatBGRA)
}
