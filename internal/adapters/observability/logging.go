package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process-wide zerolog Logger with the service name in
// the base context. APP_ENV=dev (or development) uses a human-friendly
// console writer; anything else emits JSON.
func NewLogger(env, service string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", service).Logger()
}
