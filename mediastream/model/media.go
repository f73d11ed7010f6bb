package model

// Media carries one chunk of encoded audio belonging to an open stream.
type Media struct {
	// Event is always spec.EventMedia.
	Event string `json:"event"`

	// StreamSID identifies the stream the chunk belongs to.
	StreamSID string `json:"streamSid"`

	// Media carries the chunk itself.
	Media MediaPayload `json:"media"`
}

// MediaPayload is the nested payload of a Media message.
type MediaPayload struct {
	// Track is the media track this chunk belongs to.
	Track string `json:"track"`

	// Chunk is the 1-based sequence number of this chunk on its track.
	Chunk string `json:"chunk"`

	// Timestamp is the chunk's presentation time in milliseconds from the
	// start of the stream.
	Timestamp string `json:"timestamp"`

	// Payload is the base64-encoded audio.
	Payload string `json:"payload"`
}
