// streamsink serves a loopback media-stream endpoint for verifying
// probes end to end: it accepts session-start handshakes, emits a few
// synthetic media frames, and holds each stream until the peer closes
// or a bound expires.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voiceops/streamprobe/logging"
	"github.com/voiceops/streamprobe/mediastream/spec"
	"github.com/voiceops/streamprobe/sink"
)

var (
	// Flags that can be passed in on the command line
	listenAddr    = flag.String("listen", ":8080", "The address and port to use for the stream endpoint")
	certFile      = flag.String("cert", "", "The file with server certificates in PEM format.")
	keyFile       = flag.String("key", "", "The file with server key in PEM format.")
	dataDir       = flag.String("datadir", "", "The directory in which to write session records; empty disables archival")
	greet         = flag.Bool("greet", true, "Confirm accepted handshakes with a connected event")
	mediaFrames   = flag.Int("media-frames", 3, "Synthetic media frames to emit on each accepted stream")
	mediaInterval = flag.Duration("media-interval", sink.DefaultMediaInterval, "Pacing between synthetic media frames")
	markName      = flag.String("mark", "sink-media-complete", "Name of the mark event sent after the last media frame; empty disables it")
	hold          = flag.Duration("hold", sink.DefaultHold, "How long to hold an accepted stream open")

	// A metric to use to signal that the server is in lame duck mode.
	lameDuck = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamsink_lame_duck",
		Help: "Indicates when the server is in lame duck",
	})

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func catchSigterm() {
	// Disable lame duck status.
	lameDuck.Set(0)

	// Register channel to receive SIGTERM events.
	c := make(chan os.Signal, 1)
	defer close(c)
	signal.Notify(c, syscall.SIGTERM)

	// Wait until we receive a SIGTERM or the context is canceled.
	select {
	case <-c:
		fmt.Println("Received SIGTERM")
	case <-ctx.Done():
		fmt.Println("Canceled")
	}
	// Set lame duck status. This will remain set until exit.
	lameDuck.Set(1)
	// When we receive a second SIGTERM, cancel the context and shut everything
	// down. This should cause main() to exit cleanly.
	select {
	case <-c:
		fmt.Println("Received SIGTERM")
		cancel()
	case <-ctx.Done():
		fmt.Println("Canceled")
	}
}

// httpServer creates a new *http.Server with explicit Read and Write timeouts.
// The timeouts only govern the HTTP half of a connection; an upgraded
// stream manages its own deadlines.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	// Expose a prometheus /metrics endpoint on its own port.
	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	go catchSigterm()

	handler := &sink.Handler{
		Upgrader:      sink.NewUpgrader(),
		DataDir:       *dataDir,
		Greet:         *greet,
		MediaFrames:   *mediaFrames,
		MediaInterval: *mediaInterval,
		MarkName:      *markName,
		Hold:          *hold,
	}
	mux := http.NewServeMux()
	mux.Handle(spec.StreamURLPath, http.HandlerFunc(handler.ServeStream))

	srv := httpServer(*listenAddr, logging.MakeAccessLogHandler(mux))
	defer srv.Close()
	if *certFile != "" && *keyFile != "" {
		logging.Logger.Infof("streamsink: about to listen for TLS streams on %s", *listenAddr)
		rtx.Must(httpx.ListenAndServeTLSAsync(srv, *certFile, *keyFile), "Could not start TLS server")
	} else {
		logging.Logger.Infof("streamsink: about to listen for streams on %s", *listenAddr)
		rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start server")
	}

	// Serve until the context is canceled.
	<-ctx.Done()
}
