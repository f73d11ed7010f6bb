package probe

import "fmt"

// State is the lifecycle state of the probe's connection. A probe run
// walks the states in order, except that a failed negotiation takes the
// Connecting to Errored shortcut. Closed is the only terminal state.
type State int

const (
	// Idle means the probe has not started yet.
	Idle = State(iota)
	// Connecting means transport negotiation is in progress.
	Connecting
	// Open means the transport is established and the handshake may be sent.
	Open
	// Closing means a close has been requested by either side.
	Closing
	// Closed means the transport is fully torn down.
	Closed
	// Errored means transport negotiation failed outright.
	Errored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("UnknownState(%d)", int(s))
}

// next enumerates the legal lifecycle transitions.
var next = map[State][]State{
	Idle:       {Connecting},
	Connecting: {Open, Errored},
	Open:       {Closing, Closed},
	Closing:    {Closed},
	Errored:    {Closed},
	Closed:     {},
}

// CanTransition reports whether the lifecycle may move from one state
// directly to another.
func CanTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
