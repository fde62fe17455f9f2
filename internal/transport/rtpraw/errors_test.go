package rtpraw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		debug   string
		want    ErrorCategory
	}{
		{"udp send failure", "Could not send data.", "gstmultiudpsink.c: Error sending UDP packets", ErrCategoryNetwork},
		{"no route", "Network is unreachable", "", ErrCategoryNetwork},
		{"caps", "Internal data stream error.", "streaming stopped, reason not-negotiated (-4)", ErrCategoryNegotiation},
		{"mtu too small", "MTU too small for payload", "", ErrCategoryNegotiation},
		{"missing plugin", "no element \"rtpvrawpay\"", "", ErrCategoryResource},
		{"permission wins over network", "Could not open socket", "Permission denied", ErrCategoryResource},
		{"unclassified", "Something odd happened", "", ErrCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message, tt.debug))
		})
	}
}

func TestClassifyGStreamerError_Nil(t *testing.T) {
	assert.Equal(t, ErrCategoryUnknown, ClassifyGStreamerError(nil))
}

func TestErrorCategory_String(t *testing.T) {
	assert.Equal(t, "network", ErrCategoryNetwork.String())
	assert.Equal(t, "negotiation", ErrCategoryNegotiation.String())
	assert.Equal(t, "resource", ErrCategoryResource.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}
