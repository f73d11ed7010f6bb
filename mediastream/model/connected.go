package model

import "github.com/voiceops/streamprobe/mediastream/spec"

// ProtocolName is the protocol announced by a Connected message.
const ProtocolName = "Call"

// ProtocolVersion is the protocol version announced by a Connected message.
const ProtocolVersion = "1.0.0"

// Connected is the greeting a conforming endpoint emits as soon as it has
// accepted the transport, before any session has started.
type Connected struct {
	// Event is always spec.EventConnected.
	Event string `json:"event"`

	// Protocol names the application protocol spoken on this stream.
	Protocol string `json:"protocol"`

	// Version is the protocol version.
	Version string `json:"version"`
}

// NewConnected assembles the canonical Connected greeting.
func NewConnected() Connected {
	return Connected{
		Event:    spec.EventConnected,
		Protocol: ProtocolName,
		Version:  ProtocolVersion,
	}
}
