// Package logging holds the shared logger used across streamprobe in a
// Docker friendly way.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
)

// Logger logs messages on the standard error in a structured JSON format,
// to simplify processing. Emitting logs on the standard error is consistent
// with the standard practices when dockerising a service. The probe binary
// switches the handler to a terminal-friendly one through UseCLIHandler,
// since probe runs are read by a human at a shell.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.DebugLevel,
}

// UseCLIHandler switches Logger to a colored single-line handler suitable
// for interactive runs. The quiet argument raises the level to Info so a
// routine probe run prints transitions and the summary without the
// per-frame debug noise.
func UseCLIHandler(quiet bool) {
	Logger.Handler = cli.New(os.Stderr)
	if quiet {
		Logger.Level = log.InfoLevel
	}
}

// MakeAccessLogHandler wraps |handler| with another handler that logs
// access to each resource on the standard output. Access logs keep the
// common format that has been around for a long time rather than JSON,
// because every log scraper already understands it.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
