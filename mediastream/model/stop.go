package model

// Stop announces the end of a media session. No Media messages for the
// stream may follow it.
type Stop struct {
	// Event is always spec.EventStop.
	Event string `json:"event"`

	// StreamSID identifies the stream being stopped.
	StreamSID string `json:"streamSid"`

	// Stop carries the identifiers of the session being torn down.
	Stop StopDetail `json:"stop"`
}

// StopDetail is the nested payload of a Stop message.
type StopDetail struct {
	// AccountSID identifies the account that owned the session.
	AccountSID string `json:"accountSid"`

	// CallSID identifies the call the stream belonged to.
	CallSID string `json:"callSid"`
}
