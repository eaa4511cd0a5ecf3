// Command pokedex browses the PokeAPI catalog from the terminal or serves
// the same browsing state over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pokeapi-browser/pkg/browse"
	"github.com/Sternrassler/pokeapi-browser/pkg/client"
	"github.com/Sternrassler/pokeapi-browser/pkg/config"
	"github.com/Sternrassler/pokeapi-browser/pkg/history"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/urlsync"
)

var (
	configPath string
	logLevel   string
	prettyLogs bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pokedex",
	Short: "Browse the PokeAPI catalog",
	Long: `pokedex loads Pokemon from PokeAPI and lets you filter, sort and page
through them with URL-style queries such as

  pokedex browse "types=fire&sortField=speed&sortDirection=desc"

Visited queries are kept in a local history you can walk with back/forward.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("pretty") {
			loaded.Log.Pretty = prettyLogs
		}
		cfg = loaded
		logging.Setup(cfg.LoggingConfig())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable log output")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(backCmd)
	rootCmd.AddCommand(forwardCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the resources shared by every command.
type app struct {
	redis   *redis.Client
	client  *client.Client
	session *browse.Session
	history *history.Store
	logger  zerolog.Logger
}

// newApp wires the catalog client and a browse session from cfg. location
// may be nil.
func newApp(cfg config.Config, location urlsync.Location) (*app, error) {
	rdb, err := cfg.RedisClient()
	if err != nil {
		return nil, err
	}

	c, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	session, err := browse.New(c, browse.Config{
		Limit:        cfg.Browse.Limit,
		ListPageSize: cfg.Batch.ListPageSize,
		ItemsPerPage: cfg.Browse.ItemsPerPage,
		Batch:        cfg.PaginationConfig(),
	}, location)
	if err != nil {
		c.Close()
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}

	return &app{
		redis:   rdb,
		client:  c,
		session: session,
		logger:  logging.NewLogger(logging.ComponentCLI),
	}, nil
}

// newAppWithHistory opens the history database and uses it as the session
// location.
func newAppWithHistory(cfg config.Config) (*app, error) {
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	hist.SetMaxEntries(cfg.History.MaxEntries)

	a, err := newApp(cfg, hist)
	if err != nil {
		hist.Close()
		return nil, err
	}
	a.history = hist
	return a, nil
}

// Close releases every resource held by the app.
func (a *app) Close() {
	a.session.Close()
	if err := a.client.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close client")
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close history")
		}
	}
}
