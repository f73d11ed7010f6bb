// Package model contains the wire messages of the media-stream session
// protocol. Every message is a JSON text frame whose "event" field
// discriminates its type. Field names and nesting are normative: a
// compatible peer matches them byte for byte.
package model

import "github.com/voiceops/streamprobe/mediastream/spec"

// Start is the handshake message: the first application-layer payload
// sent after the transport reaches the open state. It announces a new
// media session to the receiving endpoint.
type Start struct {
	// Event is always spec.EventStart.
	Event string `json:"event"`

	// StreamSID identifies the media stream. It repeats inside Start.
	StreamSID string `json:"streamSid"`

	// Start carries the session metadata.
	Start StartDetail `json:"start"`
}

// StartDetail is the nested session metadata of a Start message.
type StartDetail struct {
	// StreamSID carries the same value as the enclosing message.
	StreamSID string `json:"streamSid"`

	// AccountSID identifies the account originating the session.
	AccountSID string `json:"accountSid"`

	// CallSID identifies the call the stream belongs to.
	CallSID string `json:"callSid"`

	// Tracks lists the media tracks enabled on this stream.
	Tracks []string `json:"tracks"`

	// CustomParameters carries free-form session parameters, such as the
	// originating phone number under the "From" key.
	CustomParameters map[string]string `json:"customParameters"`
}

// NewStart assembles a Start message. The stream identifier is written in
// both places the wire format requires it, so the two can never disagree.
func NewStart(streamSID, accountSID, callSID string, tracks []string, custom map[string]string) Start {
	return Start{
		Event:     spec.EventStart,
		StreamSID: streamSID,
		Start: StartDetail{
			StreamSID:        streamSID,
			AccountSID:       accountSID,
			CallSID:          callSID,
			Tracks:           tracks,
			CustomParameters: custom,
		},
	}
}
