// Package sink implements a loopback media-stream endpoint. It accepts
// the probe's session-start handshake, optionally emits synthetic media
// frames, and holds the stream until the peer closes or a bound expires.
// It exists so probes can be verified end to end without touching a
// production endpoint; it is not a media server.
package sink

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m-lab/go/warnonerror"

	"github.com/voiceops/streamprobe/logging"
	"github.com/voiceops/streamprobe/mediastream/model"
	"github.com/voiceops/streamprobe/mediastream/spec"
	"github.com/voiceops/streamprobe/metrics"
	"github.com/voiceops/streamprobe/results"
)

// DefaultHold bounds how long an accepted stream is kept open when the
// peer neither closes nor stops the session.
const DefaultHold = 30 * time.Second

// DefaultMediaInterval is the pacing between synthetic media frames.
const DefaultMediaInterval = 250 * time.Millisecond

// closeReason is sent with the sink's own normal-closure frames.
const closeReason = "Session complete"

// CurrentSchemaVersion is the current version of the SessionRecord struct
// below. Increment it for every structure change so archived sessions
// stay parsable.
const CurrentSchemaVersion = 1

// silencePayload is one 20ms frame of mu-law silence at 8kHz, base64
// encoded the way the wire format requires.
var silencePayload = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xff}, 160))

// Handler serves the media-stream endpoint.
type Handler struct {
	// Upgrader is the WebSocket upgrader. Use NewUpgrader unless a test
	// needs something special.
	Upgrader websocket.Upgrader

	// DataDir is the directory where session records are saved. Empty
	// disables archival.
	DataDir string

	// Greet makes the sink confirm an accepted handshake with a
	// connected event before anything else.
	Greet bool

	// MediaFrames is how many synthetic media frames to emit on an
	// accepted stream. Zero means the sink stays silent.
	MediaFrames int

	// MediaInterval is the pacing between frames. Zero means
	// DefaultMediaInterval.
	MediaInterval time.Duration

	// MarkName, when non-empty, is sent as a mark event after the last
	// media frame.
	MarkName string

	// Hold bounds how long the stream is kept open after the handshake.
	// Zero means DefaultHold.
	Hold time.Duration
}

// SessionRecord is the archival record of one sink session.
type SessionRecord struct {
	// SchemaVersion represents the version of the SessionRecord structure.
	SchemaVersion int

	// UUID is the unique identifier of this session.
	UUID string

	StartTime time.Time
	EndTime   time.Time

	// RemoteAddr is the peer's address.
	RemoteAddr string

	// Accepted reports whether the handshake was valid.
	Accepted bool

	// Start is the handshake the peer sent, when there was a valid one.
	Start *model.Start `json:",omitempty"`

	// FramesSent is the number of synthetic media frames emitted.
	FramesSent int

	// CloseCode is the close code observed or sent on the stream.
	CloseCode int

	// CloseReason is the close reason paired with CloseCode.
	CloseReason string
}

// NewUpgrader returns the upgrader every stream endpoint must use:
// per-message compression off, because deflated frames do not survive
// some intermediary proxies intact, and a permissive origin policy,
// because callers are probes and gateways rather than browsers.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: false,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// inbound is one parsed inbound frame, or the terminal read error.
type inbound struct {
	envelope model.Envelope
	err      error
}

// startReader reads and classifies inbound frames in a background
// goroutine. The terminal read error is forwarded last, then the channel
// is closed.
//
// Liveness guarantee: reads are bounded by the deadlines the caller
// keeps on conn, so the goroutine always terminates.
func startReader(conn *websocket.Conn) <-chan inbound {
	ch := make(chan inbound)
	go func() {
		defer close(ch)
		for {
			mtype, data, err := conn.ReadMessage()
			if err != nil {
				ch <- inbound{err: err}
				return
			}
			var envelope model.Envelope
			if mtype == websocket.TextMessage {
				// A frame that does not parse stays an empty envelope;
				// the session loop logs it and moves on.
				json.Unmarshal(data, &envelope)
			}
			ch <- inbound{envelope: envelope}
		}
	}()
	return ch
}

// readStart reads and validates the session-start handshake. The first
// frame on a fresh stream must be a text frame carrying a start event
// with a stream identifier.
func readStart(conn *websocket.Conn) (*model.Start, error) {
	conn.SetReadDeadline(time.Now().Add(spec.DialTimeout)) // Liveness!
	mtype, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mtype != websocket.TextMessage {
		return nil, errors.New("first frame is not text")
	}
	var start model.Start
	if err := json.Unmarshal(data, &start); err != nil {
		return nil, err
	}
	if start.Event != spec.EventStart {
		return nil, fmt.Errorf("first event is %q, want %q", start.Event, spec.EventStart)
	}
	if start.StreamSID == "" {
		return nil, errors.New("start event without streamSid")
	}
	if start.Start.StreamSID != start.StreamSID {
		return nil, fmt.Errorf("stream id mismatch: %q outside, %q inside",
			start.StreamSID, start.Start.StreamSID)
	}
	return &start, nil
}

// sendClose writes a close frame without waiting for the echo.
func sendClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	d := time.Now().Add(time.Second) // Liveness!
	if err := conn.WriteControl(websocket.CloseMessage, msg, d); err != nil {
		logging.Logger.WithError(err).Debug("sink: conn.WriteControl failed")
	}
}

// ServeStream handles one media-stream session.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logging.Logger.WithError(err).Warn("sink: upgrade failed")
		return
	}
	defer warnonerror.Close(conn, "sink: ignoring conn.Close result")
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	begin := time.Now()
	rec := SessionRecord{
		SchemaVersion: CurrentSchemaVersion,
		UUID:          uuid.NewString(),
		StartTime:     begin.UTC(),
		RemoteAddr:    r.RemoteAddr,
	}
	verdict := "rejected"
	defer func() {
		rec.EndTime = time.Now().UTC()
		metrics.StreamsTotal.WithLabelValues(verdict).Inc()
		metrics.StreamDuration.WithLabelValues(verdict).Observe(time.Since(begin).Seconds())
		h.archive(&rec)
	}()

	conn.SetReadLimit(spec.MaxMessageSize)
	start, err := readStart(conn)
	if err != nil {
		logging.Logger.WithError(err).Warn("sink: bad handshake")
		rec.CloseCode = websocket.CloseProtocolError
		rec.CloseReason = "expected start event"
		sendClose(conn, rec.CloseCode, rec.CloseReason)
		return
	}
	rec.Accepted = true
	rec.Start = start
	verdict = "accepted"
	logging.Logger.Infof("sink: stream %s started for call %s", start.StreamSID, start.Start.CallSID)

	h.serveSession(conn, start, &rec, begin)
	logging.Logger.Infof("sink: stream %s done: close %d (%q), %d frames sent",
		start.StreamSID, rec.CloseCode, rec.CloseReason, rec.FramesSent)
}

// serveSession runs the session loop on an accepted stream: paced
// synthetic media out, classified frames in, a hold timer bounding the
// whole thing.
func (h *Handler) serveSession(conn *websocket.Conn, start *model.Start, rec *SessionRecord, begin time.Time) {
	hold := h.Hold
	if hold == 0 {
		hold = DefaultHold
	}
	interval := h.MediaInterval
	if interval == 0 {
		interval = DefaultMediaInterval
	}
	conn.SetReadDeadline(time.Now().Add(hold + spec.CloseGrace)) // Liveness!

	// recordClose keeps the first close outcome; later ones are teardown
	// noise.
	recordClose := func(code int, reason string) {
		if rec.CloseCode == 0 {
			rec.CloseCode = code
			rec.CloseReason = reason
		}
	}

	if h.Greet {
		conn.SetWriteDeadline(time.Now().Add(spec.DialTimeout))
		if err := conn.WriteJSON(model.NewConnected()); err != nil {
			logging.Logger.WithError(err).Warn("sink: conn.WriteJSON failed")
			recordClose(websocket.CloseAbnormalClosure, "")
			return
		}
	}

	track := spec.DefaultTrack
	if len(start.Start.Tracks) > 0 {
		track = start.Start.Tracks[0]
	}

	frames := startReader(conn)
	holdTimer := time.NewTimer(hold)
	defer holdTimer.Stop()
	var tickch <-chan time.Time
	if h.MediaFrames > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickch = ticker.C
	}

	for {
		select {
		case <-tickch:
			rec.FramesSent++
			m := model.Media{
				Event:     spec.EventMedia,
				StreamSID: start.StreamSID,
				Media: model.MediaPayload{
					Track:     track,
					Chunk:     strconv.Itoa(rec.FramesSent),
					Timestamp: strconv.FormatInt(time.Since(begin).Milliseconds(), 10),
					Payload:   silencePayload,
				},
			}
			conn.SetWriteDeadline(time.Now().Add(spec.DialTimeout))
			if err := conn.WriteJSON(m); err != nil {
				logging.Logger.WithError(err).Warn("sink: conn.WriteJSON failed")
				recordClose(websocket.CloseAbnormalClosure, "")
				return
			}
			metrics.MediaFramesSent.Inc()
			if rec.FramesSent >= h.MediaFrames {
				tickch = nil
				if h.MarkName != "" {
					mark := model.Mark{
						Event:     spec.EventMark,
						StreamSID: start.StreamSID,
						Mark:      model.MarkDetail{Name: h.MarkName},
					}
					conn.SetWriteDeadline(time.Now().Add(spec.DialTimeout))
					if err := conn.WriteJSON(mark); err != nil {
						logging.Logger.WithError(err).Warn("sink: conn.WriteJSON failed")
						recordClose(websocket.CloseAbnormalClosure, "")
						return
					}
				}
			}
		case fr := <-frames:
			if fr.err != nil {
				if ce, ok := fr.err.(*websocket.CloseError); ok {
					recordClose(ce.Code, ce.Text)
				} else {
					logging.Logger.WithError(fr.err).Debug("sink: conn.ReadMessage failed")
					recordClose(websocket.CloseAbnormalClosure, "")
				}
				return
			}
			switch fr.envelope.Event {
			case spec.EventStop:
				// The peer declared the session over; close and then
				// wait for the reader to drain the close echo.
				logging.Logger.Debugf("sink: stream %s stopped by peer", start.StreamSID)
				recordClose(websocket.CloseNormalClosure, closeReason)
				sendClose(conn, websocket.CloseNormalClosure, closeReason)
				conn.SetReadDeadline(time.Now().Add(spec.CloseGrace))
				tickch = nil
			default:
				logging.Logger.Debugf("sink: stream %s inbound %q event", start.StreamSID, fr.envelope.Event)
			}
		case <-holdTimer.C:
			recordClose(websocket.CloseNormalClosure, closeReason)
			sendClose(conn, websocket.CloseNormalClosure, closeReason)
			conn.SetReadDeadline(time.Now().Add(spec.CloseGrace))
			tickch = nil
		}
	}
}

// archive saves the session record when a datadir is configured.
// Archival failures are logged and do not affect the session outcome.
func (h *Handler) archive(rec *SessionRecord) {
	if h.DataDir == "" {
		return
	}
	fp, err := results.NewFile(rec.UUID, h.DataDir, "streamsink", false)
	if err != nil {
		return // error already printed
	}
	defer warnonerror.Close(fp, "sink: ignoring results file close error")
	if err := fp.WriteRecord(rec); err != nil {
		logging.Logger.WithError(err).Warn("sink: cannot write session record")
	}
}
