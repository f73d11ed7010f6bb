package main

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/go/osx"
	"github.com/m-lab/go/rtx"

	"github.com/voiceops/streamprobe/mediastream/spec"
	"github.com/voiceops/streamprobe/probe"
	"github.com/voiceops/streamprobe/sink"
	"github.com/voiceops/streamprobe/sink/sinktest"
)

// setupMain points the command line at the given endpoint via environment
// variables and gives the run its own datadir.
func setupMain(target string, win time.Duration) func() {
	cleanups := []func(){}

	dir, err := ioutil.TempDir("", "TestStreamprobeMain")
	rtx.Must(err, "Could not create tempdir")

	for _, ev := range []struct{ key, value string }{
		{"ENDPOINT", target},
		{"WINDOW", win.String()},
		{"DATADIR", dir},
	} {
		cleanups = append(cleanups, osx.MustSetenv(ev.key, ev.value))
	}
	// ArgsFromEnv does not reapply the environment to a flag that a
	// previous run of main() in this process already set, so assign the
	// values that vary between tests directly as well.
	*endpoint = target
	*window = win
	*datadir = dir
	return func() {
		os.RemoveAll(dir)
		for _, f := range cleanups {
			f()
		}
	}
}

// streamEndpoint rewrites a test server URL into the ws:// endpoint flag.
func streamEndpoint(rawurl string) string {
	u, err := url.Parse(rawurl)
	rtx.Must(err, "Could not parse url to local server:", rawurl)
	return "ws://" + u.Host + spec.StreamURLPath
}

// findVerdict reads back the one verdict main() must have archived.
func findVerdict(t *testing.T, dir string) *probe.Verdict {
	var v *probe.Verdict
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(p, ".json") {
			return err
		}
		data, err := ioutil.ReadFile(p)
		if err != nil {
			return err
		}
		v = &probe.Verdict{}
		return json.Unmarshal(data, v)
	})
	rtx.Must(err, "Could not walk the datadir")
	if v == nil {
		t.Fatal("main() did not archive a verdict")
	}
	return v
}

func Test_MainProbesALocalSink(t *testing.T) {
	h, ts := sinktest.NewServer(t, sink.Handler{
		Greet:         true,
		MediaFrames:   1,
		MediaInterval: 5 * time.Millisecond,
		Hold:          10 * time.Second,
	})
	defer ts.Close()
	defer os.RemoveAll(h.DataDir)

	cleanup := setupMain(streamEndpoint(ts.URL), 250*time.Millisecond)
	defer cleanup()

	// Set up the global context for main()
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	// A successful probe returns from main instead of exiting.
	main()

	v := findVerdict(t, os.Getenv("DATADIR"))
	if !v.Success || !v.Opened {
		t.Errorf("verdict: %+v", v)
	}
	if v.MessageCount != 2 { // connected + one media frame
		t.Errorf("message count: got %d, want 2", v.MessageCount)
	}
	if v.CloseReason != spec.CloseReason {
		t.Errorf("close reason: got %q, want %q", v.CloseReason, spec.CloseReason)
	}
}

func Test_ContextCancelsMain(t *testing.T) {
	h, ts := sinktest.NewServer(t, sink.Handler{Hold: 60 * time.Second})
	defer ts.Close()
	defer os.RemoveAll(h.DataDir)

	// The window is far longer than the test; only cancellation can
	// finish the run in time.
	cleanup := setupMain(streamEndpoint(ts.URL), 60*time.Second)
	defer cleanup()

	// Set up the global context for main()
	ctx, cancel = context.WithCancel(context.Background())

	// Run main, but cancel it very soon after starting.
	go func() {
		time.Sleep(1 * time.Second)
		cancel()
	}()
	begin := time.Now()
	main()
	if elapsed := time.Since(begin); elapsed > 30*time.Second {
		t.Errorf("main took %s to exit after cancellation", elapsed)
	}

	v := findVerdict(t, os.Getenv("DATADIR"))
	if !v.Success {
		t.Errorf("verdict: %+v", v)
	}
	if v.CloseReason != spec.CloseReasonCanceled {
		t.Errorf("close reason: got %q, want %q", v.CloseReason, spec.CloseReasonCanceled)
	}
}
