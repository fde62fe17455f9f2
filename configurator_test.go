package screenrelay_test

import (
	"testing"

	screenrelay "github.com/e7canasta/orion-care-sensor/modules/screen-relay"
	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/stretchr/testify/assert"
)

func TestNewStreamConfig_CenterCrop(t *testing.T) {
	tests := []struct {
		name    string
		display host.Size
		desired screenrelay.Size
		want    host.Rect
	}{
		{
			name:    "4K display, 1080p capture",
			display: host.Size{Width: 3840, Height: 2160},
			desired: screenrelay.Size{Width: 1920, Height: 1080},
			want:    host.NewRect(960, 540, 1920, 1080),
		},
		{
			name:    "1080p display, 720p capture",
			display: host.Size{Width: 1920, Height: 1080},
			desired: screenrelay.Size{Width: 1280, Height: 720},
			want:    host.NewRect(320, 180, 1280, 720),
		},
		{
			name:    "same size",
			display: host.Size{Width: 1920, Height: 1080},
			desired: screenrelay.Size{Width: 1920, Height: 1080},
			want:    host.NewRect(0, 0, 1920, 1080),
		},
		{
			name:    "larger than display is not clamped",
			display: host.Size{Width: 1280, Height: 720},
			desired: screenrelay.Size{Width: 1920, Height: 1080},
			want:    host.NewRect(-320, -180, 1920, 1080),
		},
		{
			name:    "odd remainder rounds toward zero",
			display: host.Size{Width: 1921, Height: 1081},
			desired: screenrelay.Size{Width: 1280, Height: 720},
			want:    host.NewRect(320, 180, 1280, 720),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := host.Display{ID: 1, Frame: host.Rect{Size: tt.display}}
			cfg := screenrelay.NewStreamConfig(d, tt.desired)

			assert.Equal(t, tt.want, cfg.SourceRect())
			assert.Equal(t, host.Rect{Size: tt.desired}, cfg.DestinationRect())
			assert.Equal(t, tt.desired.Width, cfg.Width())
			assert.Equal(t, tt.desired.Height, cfg.Height())
		})
	}
}

func TestNewStreamConfig_Defaults(t *testing.T) {
	d := host.Display{ID: 1, Frame: host.NewRect(0, 0, 3840, 2160)}
	cfg := screenrelay.NewStreamConfig(d, screenrelay.Size{Width: 1920, Height: 1080})

	assert.Equal(t, 5, cfg.QueueDepth())
	assert.Equal(t, host.PixelFormatBGRA, cfg.PixelFormat())
	assert.Equal(t, host.ColorSpaceSRGB, cfg.ColorSpace())
	assert.Zero(t, cfg.MinimumFrameInterval())
	assert.Equal(t, "((960,540),(1920,1080))", cfg.SourceRect().String())

	h := cfg.Host()
	assert.Equal(t, cfg.SourceRect(), h.SourceRect)
	assert.Equal(t, 5, h.QueueDepth)
	assert.Equal(t, host.PixelFormatBGRA, h.PixelFormat)
}
