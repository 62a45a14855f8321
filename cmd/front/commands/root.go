package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	addr       string
	apiURL     string
	storeKind  string
	dbPath     string
	natsDir    string
	logLevel   string
	devMode    bool
	title      string
	contextTTL time.Duration
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

func Execute() error {
	root := &cobra.Command{
		Use:          "front",
		Short:        "Counter front-end served live over SSE",
		SilenceUsage: true,
		RunE:         runServe,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&addr, "addr", ":3000", "http listen address")
	flags.StringVar(&apiURL, "api", "", "counter backend base URL (default: this server)")
	flags.StringVar(&storeKind, "store", "memory", "counter backend served by this process: none, memory, sqlite or nats")
	flags.StringVar(&dbPath, "db", "counter.db", "sqlite database file for --store=sqlite")
	flags.StringVar(&natsDir, "nats-dir", "./data/nats", "embedded NATS data directory for --store=nats")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.BoolVar(&devMode, "dev", false, "human friendly console logs")
	flags.StringVar(&title, "title", "Counter", "HTML document title")
	flags.DurationVar(&contextTTL, "context-ttl", 30*time.Second, "dispose pages that never connect after this long (negative disables)")

	root.AddCommand(serveCmd(), versionCmd())
	return root.Execute()
}

func parseLevel() (*zerolog.Level, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return &level, nil
}
