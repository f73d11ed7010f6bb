package probe

// EvKey uniquely identifies a kind of probe event.
type EvKey int

const (
	// TransitionEvent indicates an event describing a state change.
	TransitionEvent = EvKey(iota)
	// HandshakeEvent indicates that the start handshake has been sent.
	HandshakeEvent
	// MessageEvent indicates an event describing an inbound message.
	MessageEvent
	// CloseEvent indicates an event describing the close of the stream.
	CloseEvent
	// FailureEvent indicates an event describing a transport error.
	FailureEvent
)

// Event is the structure of a generic probe event.
type Event struct {
	Key   EvKey       // Tells you the kind of the event
	Value interface{} // One of the record structures below
}

// TransitionRecord is the structure of a state-change event.
type TransitionRecord struct {
	From State // The state we left
	To   State // The state we entered
}

// HandshakeRecord is the structure of a handshake event.
type HandshakeRecord struct {
	StreamSID string // The stream announced to the endpoint
}

// MessageRecord is the structure of an inbound-message event.
type MessageRecord struct {
	Preview string // Leading characters of the payload
	Size    int    // Full payload size in bytes
}

// CloseRecord is the structure of a stream-close event. A probe run that
// reaches the open state produces exactly one CloseRecord.
type CloseRecord struct {
	Code   int    // The close code
	Reason string // The close reason
	Remote bool   // Whether the remote endpoint initiated the close
}

// FailureRecord is the structure of a failure event.
type FailureRecord struct {
	Err error // The error that occurred
}
