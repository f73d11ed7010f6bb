// Package spec contains constants of the media-stream session protocol
// shared by the probe, the sink, and the tests.
package spec

import "time"

// StreamURLPath selects the media-stream endpoint on the sink.
const StreamURLPath = "/stream/v1/media"

// Event discriminators. The value of the "event" field identifies the
// type of every text frame exchanged on an open stream.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// DefaultStreamSID is the stream session identifier used by probe runs
// when the operator does not provide one.
const DefaultStreamSID = "VM_TEST_123"

// DefaultAccountSID is the synthetic account identifier carried by the
// probe's handshake.
const DefaultAccountSID = "AC_TEST_123"

// DefaultCallSID is the synthetic call identifier carried by the probe's
// handshake.
const DefaultCallSID = "CA_TEST_123"

// DefaultTrack is the media track the probe declares in its handshake.
const DefaultTrack = "inbound"

// DefaultFromNumber is the sample originating phone number carried in the
// handshake's custom parameters.
const DefaultFromNumber = "+17138552377"

// DefaultWindow is how long the probe accepts inbound messages after the
// connection reaches the open state.
const DefaultWindow = 10 * time.Second

// DialTimeout bounds the WebSocket negotiation, including DNS and TLS.
const DialTimeout = 7 * time.Second

// CloseGrace is how long we wait for the peer's close echo after sending
// our own close frame before dropping the transport.
const CloseGrace = 2 * time.Second

// CloseReason is the human-readable reason sent with the probe's normal
// closure frame at window expiry.
const CloseReason = "Test complete"

// CloseReasonCanceled is the close reason sent when a run is interrupted
// before the observation window elapses.
const CloseReasonCanceled = "Test canceled"

// MaxMessageSize is the read limit applied to every stream connection.
// Inbound frames larger than this are a transport error.
const MaxMessageSize = 1 << 17

// PreviewLength is the number of leading characters of each inbound
// payload retained for diagnostic logging.
const PreviewLength = 100
