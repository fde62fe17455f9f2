package rtpraw

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies sender pipeline errors for telemetry.
type ErrorCategory int

const (
	// ErrCategoryNetwork covers socket, routing and destination failures.
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryNegotiation covers caps and format negotiation failures.
	ErrCategoryNegotiation
	// ErrCategoryResource covers missing plugins, permissions and memory.
	ErrCategoryResource
	// ErrCategoryUnknown covers everything else.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var (
	resourceKeywords = []string{
		"permission",
		"denied",
		"no element",
		"missing plugin",
		"out of memory",
		"could not allocate",
	}
	negotiationKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"format",
		"mtu",
	}
	networkKeywords = []string{
		"socket",
		"udp",
		"network",
		"unreachable",
		"no route",
		"could not send",
		"error sending",
		"resolve",
		"address",
	}
)

// Classify categorizes an error by keyword, most specific category first.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

// ClassifyGStreamerError categorizes a bus error. go-gst's GError does not
// expose the domain, so classification relies on the message text.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return Classify(gerr.Error(), gerr.DebugString())
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
