package model

// Mark acknowledges a named position in the media stream. Endpoints send
// it back when playback reaches the matching label.
type Mark struct {
	// Event is always spec.EventMark.
	Event string `json:"event"`

	// StreamSID identifies the stream the mark belongs to.
	StreamSID string `json:"streamSid"`

	// Mark carries the label.
	Mark MarkDetail `json:"mark"`
}

// MarkDetail is the nested payload of a Mark message.
type MarkDetail struct {
	// Name is the label attached to the stream position.
	Name string `json:"name"`
}
