package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/database"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/repository"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "pairdrop",
		Short:         "Pair devices with a six digit code and share text and files between them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogging(loaded)
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd), cfg)
		},
	}

	cmd.AddCommand(
		newServeCommand(&cfg),
		newMigrateCommand(&cfg),
		newSeedCommand(&cfg),
		newWatchCommand(),
	)
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// store bundles whichever backend STORE_DRIVER selects.
type store struct {
	sessions repository.SessionRepository
	items    repository.ItemRepository
	pinger   interface{ Ping(context.Context) error }
	db       *database.DB
}

func (s *store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool) (*store, error) {
	if !cfg.UsesPostgres() {
		mem := repository.NewMemoryStore(cfg.SessionTTL())
		log.Warn().Msg("using in-memory store: sessions are lost on restart")
		return &store{sessions: mem.Sessions(), items: mem.Items(), pinger: mem}, nil
	}

	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &store{
		sessions: repository.NewSessionRepository(db, cfg.SessionTTL()),
		items:    repository.NewItemRepository(db.DB),
		pinger:   db,
		db:       db,
	}, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		log.Warn().Err(err).Msg("database pool metrics unavailable")
	}

	log.Info().Msg("database connected")
	return db, nil
}
