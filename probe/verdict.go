package probe

import "time"

// CurrentSchemaVersion is the current version of the Verdict struct below.
// The version should be incremented for every structure change to Verdict
// so that archived runs stay parsable.
const CurrentSchemaVersion = 1

// Verdict is the outcome of one probe run, serialized as JSON to disk as
// the archival record of the run.
//
// Success is defined as "the open transition was observed at least once",
// independent of how many messages arrived afterwards. A remote endpoint
// that accepts the connection and then immediately drops it still yields a
// successful verdict; reachability is what the probe measures.
type Verdict struct {
	// SchemaVersion represents the version of the Verdict structure.
	SchemaVersion int

	// UUID is the unique identifier of this run.
	UUID string

	// Endpoint is the probed URL.
	Endpoint string

	StartTime time.Time
	EndTime   time.Time

	// Opened reports whether the connection reached the open state.
	Opened bool

	// Success mirrors Opened. It exists so the archival record states the
	// verdict explicitly rather than leaving readers to derive it.
	Success bool

	// CloseCode is the close code observed or sent on the stream. Zero
	// when the connection never opened.
	CloseCode int

	// CloseReason is the close reason paired with CloseCode.
	CloseReason string

	// MessageCount is the number of inbound messages observed between the
	// open and closed states.
	MessageCount int64

	// DialError describes the negotiation failure, when there was one.
	DialError string `json:",omitempty"`
}
