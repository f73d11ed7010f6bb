// Package probe implements the media-stream connectivity probe: a
// single-shot WebSocket client that opens a stream against a remote
// endpoint, performs the session-start handshake, observes inbound
// traffic for a bounded window, and reports a verdict.
//
// The probe is a diagnostic, not a resilient client: it never retries,
// and any transport error is terminal for the run.
package probe

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voiceops/streamprobe/logging"
	"github.com/voiceops/streamprobe/mediastream/model"
	"github.com/voiceops/streamprobe/mediastream/spec"
)

// Probe is a single-shot connectivity probe for a media-stream endpoint.
// The zero value is not usable: URL and Handshake must be set. The probe
// owns its connection exclusively for the lifetime of the run.
type Probe struct {
	// Dialer is the WebSocket dialer. Its compression setting is
	// overridden at connect time; everything else is honored.
	Dialer websocket.Dialer

	// URL is the endpoint to probe.
	URL url.URL

	// Window is the observation window that starts when the connection
	// opens. Zero means spec.DefaultWindow.
	Window time.Duration

	// Handshake is sent verbatim as the first text frame after open.
	Handshake model.Start
}

// frame is one inbound read, or the terminal read error.
type frame struct {
	data []byte
	err  error
}

// Start runs the probe in a background goroutine. Lifecycle events are
// emitted on the returned channel in the order they occur and the channel
// is closed once the connection is fully torn down.
//
// Liveness guarantee: every read and write on the connection carries a
// deadline, so the goroutine terminates within the observation window
// plus the close grace even against a wedged endpoint.
func (p *Probe) Start(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go p.run(ctx, ch)
	return ch
}

func (p *Probe) run(ctx context.Context, ch chan<- Event) {
	defer close(ch)
	state := Idle
	transition := func(to State) {
		if !CanTransition(state, to) {
			// Never expected; seeing this warning means the lifecycle
			// logic regressed.
			logging.Logger.Warnf("probe: illegal transition %s to %s", state, to)
		}
		ch <- Event{Key: TransitionEvent, Value: TransitionRecord{From: state, To: to}}
		state = to
	}

	transition(Connecting)
	dialer := p.Dialer
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = spec.DialTimeout
	}
	// Per-message compression must stay off: deflated frames do not
	// survive some intermediary proxies intact, and a corrupted frame
	// would be indistinguishable from an endpoint failure.
	dialer.EnableCompression = false
	conn, _, err := dialer.DialContext(ctx, p.URL.String(), nil)
	if err != nil {
		ch <- Event{Key: FailureEvent, Value: FailureRecord{Err: err}}
		transition(Errored)
		transition(Closed)
		return
	}
	transition(Open)
	conn.SetReadLimit(spec.MaxMessageSize)

	window := p.Window
	if window == 0 {
		window = spec.DefaultWindow
	}
	conn.SetReadDeadline(time.Now().Add(window + spec.CloseGrace)) // Liveness!

	conn.SetWriteDeadline(time.Now().Add(spec.DialTimeout))
	if err := conn.WriteJSON(p.Handshake); err != nil {
		ch <- Event{Key: FailureEvent, Value: FailureRecord{Err: err}}
		conn.Close()
		transition(Closed)
		return
	}
	ch <- Event{Key: HandshakeEvent, Value: HandshakeRecord{StreamSID: p.Handshake.StreamSID}}

	frames := startReader(conn)
	timer := time.NewTimer(window)
	defer timer.Stop()

	closeSent := false
	requestClose := func(reason string) {
		// Idempotent: a close request against a stream that is already
		// closing or closed must not alter the recorded code and reason.
		if closeSent || state != Open {
			return
		}
		closeSent = true
		ch <- Event{Key: CloseEvent, Value: CloseRecord{
			Code:   websocket.CloseNormalClosure,
			Reason: reason,
		}}
		transition(Closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		d := time.Now().Add(time.Second) // Liveness!
		if err := conn.WriteControl(websocket.CloseMessage, msg, d); err != nil {
			logging.Logger.WithError(err).Debug("probe: conn.WriteControl failed")
		}
		// Tighten the deadline so the reader stops soon even if the peer
		// never echoes our close.
		conn.SetReadDeadline(time.Now().Add(spec.CloseGrace))
	}

	done := ctx.Done()
	for {
		select {
		case fr := <-frames:
			if fr.err == nil {
				ch <- Event{Key: MessageEvent, Value: MessageRecord{
					Preview: preview(fr.data),
					Size:    len(fr.data),
				}}
				continue
			}
			// The reader is finished: decide what its error means.
			switch {
			case closeSent:
				// We initiated the close; the peer's echo, silence, or
				// error is teardown noise at this point.
			case isRemoteClose(fr.err):
				ce := fr.err.(*websocket.CloseError)
				ch <- Event{Key: CloseEvent, Value: CloseRecord{
					Code:   ce.Code,
					Reason: ce.Text,
					Remote: true,
				}}
				transition(Closing)
			default:
				// The transport died without a close frame. Report the
				// reserved abnormal-closure code the way browser clients
				// do, keeping the error itself in the failure record.
				ch <- Event{Key: FailureEvent, Value: FailureRecord{Err: fr.err}}
				ch <- Event{Key: CloseEvent, Value: CloseRecord{
					Code:   websocket.CloseAbnormalClosure,
					Remote: true,
				}}
			}
			conn.Close()
			transition(Closed)
			return
		case <-timer.C:
			requestClose(spec.CloseReason)
		case <-done:
			requestClose(spec.CloseReasonCanceled)
			done = nil
		}
	}
}

// startReader reads inbound messages in a background goroutine. Each
// message is forwarded on the returned channel; the terminal read error
// is forwarded last, then the channel is closed.
//
// Liveness guarantee: reads are bounded by the deadlines the caller keeps
// on conn, so the goroutine always terminates.
func startReader(conn *websocket.Conn) <-chan frame {
	frames := make(chan frame)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				frames <- frame{err: err}
				return
			}
			frames <- frame{data: data}
		}
	}()
	return frames
}

// isRemoteClose reports whether err carries a close frame from the peer.
func isRemoteClose(err error) bool {
	_, ok := err.(*websocket.CloseError)
	return ok
}

// preview returns the leading characters of an inbound payload retained
// for diagnostic logs.
func preview(data []byte) string {
	if len(data) > spec.PreviewLength {
		data = data[:spec.PreviewLength]
	}
	return string(data)
}

// Run executes the probe, logs every event through the shared logger, and
// folds the event stream into a Verdict. It is the blocking form of Start
// and the form the command line uses.
func (p *Probe) Run(ctx context.Context) Verdict {
	v := Verdict{
		SchemaVersion: CurrentSchemaVersion,
		UUID:          uuid.NewString(),
		Endpoint:      p.URL.String(),
		StartTime:     time.Now().UTC(),
	}
	for ev := range p.Start(ctx) {
		switch rec := ev.Value.(type) {
		case TransitionRecord:
			logging.Logger.Infof("probe: connection is %s", rec.To)
			if rec.To == Open {
				v.Opened = true
			}
		case HandshakeRecord:
			logging.Logger.Infof("probe: sent start handshake for stream %s", rec.StreamSID)
		case MessageRecord:
			v.MessageCount++
			logging.Logger.Infof("probe: message %d (%d bytes): %s", v.MessageCount, rec.Size, rec.Preview)
		case CloseRecord:
			v.CloseCode = rec.Code
			v.CloseReason = rec.Reason
			if rec.Remote {
				logging.Logger.Infof("probe: remote closed the stream: %d (%q)", rec.Code, rec.Reason)
			} else {
				logging.Logger.Infof("probe: closing the stream: %d (%q)", rec.Code, rec.Reason)
			}
		case FailureRecord:
			logging.Logger.WithError(rec.Err).Warn("probe: transport error")
			if !v.Opened {
				v.DialError = rec.Err.Error()
			}
		}
	}
	v.EndTime = time.Now().UTC()
	v.Success = v.Opened
	return v
}
