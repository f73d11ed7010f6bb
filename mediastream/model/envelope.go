package model

// Envelope is the discriminator-only view of any stream message. Peers
// unmarshal inbound text frames into an Envelope first and commit to the
// full schema only once the event type is known.
type Envelope struct {
	// Event discriminates the message type.
	Event string `json:"event"`

	// StreamSID identifies the stream, when the message carries one.
	StreamSID string `json:"streamSid,omitempty"`
}
