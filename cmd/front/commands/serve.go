package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanhamamura/front"
	"github.com/ryanhamamura/front/backend"
	"github.com/ryanhamamura/front/internal/frontend"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the front-end (and the counter backend unless --store=none)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	level, err := parseLevel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	app := frontend.New(frontend.Config{
		Options: front.Options{
			DevMode:       devMode,
			ServerAddress: addr,
			LogLevel:      level,
			DocumentTitle: title,
			ContextTTL:    contextTTL,
		},
		APIBaseURL: apiURL,
		Store:      store,
	})
	app.Start()
	return nil
}

func openStore(ctx context.Context) (backend.Store, error) {
	switch storeKind {
	case "none":
		return nil, nil
	case "memory":
		return backend.NewMemoryStore(), nil
	case "sqlite":
		return backend.OpenSQLite(ctx, dbPath)
	case "nats":
		return backend.OpenKV(ctx, natsDir)
	default:
		return nil, fmt.Errorf("unknown --store %q (want none, memory, sqlite or nats)", storeKind)
	}
}
