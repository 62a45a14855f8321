package front

import (
	"time"

	"github.com/rs/zerolog"
)

func ptr(l zerolog.Level) *zerolog.Level { return &l }

var (
	LogLevelDebug = ptr(zerolog.DebugLevel)
	LogLevelInfo  = ptr(zerolog.InfoLevel)
	LogLevelWarn  = ptr(zerolog.WarnLevel)
	LogLevelError = ptr(zerolog.ErrorLevel)
)

// Plugin is a func that can mutate the given *front.App runtime. It is useful to integrate popular JS/CSS UI libraries or tools.
type Plugin func(v *App)

// Options defines configuration options for the front application
type Options struct {
	// The development mode flag. If true, logs are written with a human friendly console writer.
	DevMode bool

	// The http server address. e.g. ':3000'
	ServerAddress string

	// LogLevel sets the minimum log level. nil keeps the default (Info).
	LogLevel *zerolog.Level

	// Logger overrides the default logger entirely. When set, LogLevel and
	// DevMode have no effect on logging.
	Logger *zerolog.Logger

	// The title of the HTML document.
	DocumentTitle string

	// Plugins to extend the capabilities of the application.
	Plugins []Plugin

	// DatastarContent is the Datastar.js script content. If set, it is served
	// from DatastarPath. If nil, the page references the official CDN build.
	DatastarContent []byte

	// DatastarPath is the URL path where DatastarContent is served.
	// Defaults to "/_datastar.js" if empty.
	DatastarPath string

	// ContextTTL is how long a page context may live without an SSE
	// connection before the reaper disposes it. Zero means 30s, negative
	// disables the reaper.
	ContextTTL time.Duration

	// NavigationRateLimit limits client-side navigations per page context.
	NavigationRateLimit RateLimitConfig
}
