// streamprobe probes a WebSocket media-stream endpoint: it dials the
// endpoint, sends the session-start handshake, observes inbound traffic
// for a bounded window, closes the stream cleanly, and exits zero when
// the endpoint accepted the connection and nonzero when it did not.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/voiceops/streamprobe/logging"
	"github.com/voiceops/streamprobe/mediastream/model"
	"github.com/voiceops/streamprobe/mediastream/spec"
	"github.com/voiceops/streamprobe/probe"
	"github.com/voiceops/streamprobe/results"
)

var (
	// Flags that can be passed in on the command line
	endpoint      = flag.String("endpoint", "", "WebSocket URL of the media-stream endpoint to probe")
	window        = flag.Duration("window", spec.DefaultWindow, "Observation window after the connection opens")
	dialTimeout   = flag.Duration("timeout", spec.DialTimeout, "Maximum time for transport negotiation, DNS and TLS included")
	streamSID     = flag.String("stream-sid", spec.DefaultStreamSID, "Stream identifier announced in the handshake")
	accountSID    = flag.String("account-sid", spec.DefaultAccountSID, "Account identifier announced in the handshake")
	callSID       = flag.String("call-sid", spec.DefaultCallSID, "Call identifier announced in the handshake")
	fromNumber    = flag.String("from", spec.DefaultFromNumber, "Originating number announced in the handshake")
	datadir       = flag.String("datadir", "", "Directory in which to save verdicts; empty disables archival")
	compress      = flag.Bool("gzip", false, "Save the verdict gzip-compressed")
	skipTLSVerify = flag.Bool("skip-tls-verify", false, "Skip TLS verify")
	quiet         = flag.Bool("quiet", false, "Log only transitions and the verdict, not per-frame details")
	tracks        = flagx.StringArray{}
	params        = flagx.StringArray{}

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func init() {
	flag.Var(&tracks, "track", "Media track announced in the handshake; repeatable")
	flag.Var(&params, "param", "Extra Name=Value custom parameter for the handshake; repeatable")
}

// customParameters folds the -from and -param flags into the handshake's
// custom parameter map.
func customParameters() (map[string]string, error) {
	custom := map[string]string{"From": *fromNumber}
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed -param %q, want Name=Value", p)
		}
		custom[name] = value
	}
	return custom, nil
}

// catchSigint requests a clean close of the stream on the first interrupt.
// The probe then finishes its teardown and reports the verdict as usual.
func catchSigint() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	select {
	case <-c:
		logging.Logger.Info("streamprobe: interrupted, closing the stream")
		cancel()
	case <-ctx.Done():
	}
	signal.Stop(c)
}

// saveVerdict archives the verdict under -datadir when one is configured.
func saveVerdict(v *probe.Verdict) {
	if *datadir == "" {
		return
	}
	fp, err := results.NewFile(v.UUID, *datadir, "streamprobe", *compress)
	if err != nil {
		return // error already printed
	}
	defer warnonerror.Close(fp, "Could not close the verdict file")
	if err := fp.WriteRecord(v); err != nil {
		logging.Logger.WithError(err).Warn("Could not write the verdict record")
	}
}

// report prints the verdict summary.
func report(v *probe.Verdict) {
	entry := logging.Logger.WithFields(log.Fields{
		"uuid":        v.UUID,
		"closeCode":   v.CloseCode,
		"closeReason": v.CloseReason,
		"messages":    v.MessageCount,
		"duration":    v.EndTime.Sub(v.StartTime).Round(time.Millisecond).String(),
	})
	if v.Success {
		entry.Info("streamprobe: endpoint accepted the stream")
	} else {
		entry.Error("streamprobe: endpoint did not accept the stream")
	}
}

func main() {
	defer cancel()
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")
	logging.UseCLIHandler(*quiet)

	if *endpoint == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "The -endpoint flag is required")
		os.Exit(1)
	}
	URL, err := url.Parse(*endpoint)
	rtx.Must(err, "Could not parse -endpoint")
	if URL.Scheme != "ws" && URL.Scheme != "wss" {
		rtx.Must(fmt.Errorf("unsupported scheme %q", URL.Scheme),
			"The -endpoint flag must be a ws:// or wss:// URL")
	}
	if len(tracks) == 0 {
		tracks = append(tracks, spec.DefaultTrack)
	}
	custom, err := customParameters()
	rtx.Must(err, "Could not assemble custom parameters")

	prb := &probe.Probe{
		URL:       *URL,
		Window:    *window,
		Handshake: model.NewStart(*streamSID, *accountSID, *callSID, tracks, custom),
	}
	prb.Dialer.HandshakeTimeout = *dialTimeout
	if *skipTLSVerify {
		config := tls.Config{InsecureSkipVerify: true}
		prb.Dialer.TLSClientConfig = &config
	}

	go catchSigint()
	verdict := prb.Run(ctx)
	saveVerdict(&verdict)
	report(&verdict)
	if !verdict.Success {
		os.Exit(1)
	}
}
