// Package sinktest provides a local stream endpoint for testing probes
// in unittests.
package sinktest

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-lab/go/testingx"

	"github.com/voiceops/streamprobe/mediastream/spec"
	"github.com/voiceops/streamprobe/sink"
)

// NewServer creates a local httptest server speaking the media-stream
// protocol, configured by config. The upgrader is always the canonical
// one and a temp datadir is provided when config leaves it empty. The
// handler must not be mutated once the server is running.
func NewServer(t *testing.T, config sink.Handler) (*sink.Handler, *httptest.Server) {
	config.Upgrader = sink.NewUpgrader()
	if config.DataDir == "" {
		dir, err := ioutil.TempDir("", "sinktest-*")
		testingx.Must(t, err, "failed to create temp dir")
		config.DataDir = dir
	}
	handler := &config

	mux := http.NewServeMux()
	mux.Handle(spec.StreamURLPath, http.HandlerFunc(handler.ServeStream))
	return handler, httptest.NewServer(mux)
}
