package rtpraw

import (
	"fmt"
	"net"
	"strings"
)

// SDP returns a session description receivers can open to play a sender
// named name producing width x height frames.
func (t *Transport) SDP(name string, width, height int) string {
	return describe(t.cfg, name, width, height)
}

func describe(cfg Config, name string, width, height int) string {
	family := "IP4"
	if ip := net.ParseIP(cfg.Host); ip != nil && ip.To4() == nil {
		family = "IP6"
	}
	conn := cfg.Host
	if ip := net.ParseIP(cfg.Host); ip != nil && ip.IsMulticast() && family == "IP4" {
		ttl := cfg.TTL
		if ttl == 0 {
			ttl = 1
		}
		conn = fmt.Sprintf("%s/%d", cfg.Host, ttl)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "v=0\r\n")
	fmt.Fprintf(&b, "o=- 0 0 IN %s %s\r\n", family, cfg.Host)
	fmt.Fprintf(&b, "s=%s\r\n", name)
	fmt.Fprintf(&b, "c=IN %s %s\r\n", family, conn)
	fmt.Fprintf(&b, "t=0 0\r\n")
	fmt.Fprintf(&b, "m=video %d RTP/AVP %d\r\n", cfg.Port, payloadType)
	fmt.Fprintf(&b, "a=rtpmap:%d raw/90000\r\n", payloadType)
	fmt.Fprintf(&b, "a=fmtp:%d sampling=BGRA; width=%d; height=%d; depth=8; colorimetry=SMPTE240M\r\n",
		payloadType, width, height)
	return b.String()
}
