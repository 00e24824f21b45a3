package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/service"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/syncclient"
)

// devSeedCode is the fixed session created by the seed command.
const devSeedCode = "123456"

func newMigrateCommand(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	run := func(name, short string, fn func(ctx context.Context, cfg *config.Config) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return fn(commandContext(cmd), *cfg)
			},
		}
	}

	cmd.AddCommand(
		run("up", "Apply all pending migrations", func(ctx context.Context, cfg *config.Config) error {
			db, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate(ctx)
		}),
		run("down", "Roll back the most recent migration", func(ctx context.Context, cfg *config.Config) error {
			db, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrateDown(ctx)
		}),
		run("status", "Show applied migrations", func(ctx context.Context, cfg *config.Config) error {
			db, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrationStatus(ctx)
		}),
	)
	return cmd
}

func newSeedCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the development session " + devSeedCode + " if it is not live",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if !c.UsesPostgres() {
				return fmt.Errorf("seed needs STORE_DRIVER=%s", config.StoreDriverPostgres)
			}

			ctx := commandContext(cmd)
			st, err := openStore(ctx, c, true)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := service.NewSessionService(st.sessions, st.items, service.NewRandomCodeGenerator(), c.CodeMaxAttempts)
			session, created, err := svc.EnsureSession(ctx, devSeedCode)
			if err != nil {
				return err
			}

			log.Info().
				Int64("sessionId", session.ID).
				Str("code", session.Code).
				Bool("created", created).
				Time("expiresAt", session.ExpiresAt).
				Msg("seed session ready")
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	var (
		serverURL string
		code      string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a session's items from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := syncclient.New(serverURL, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			opts := syncclient.DefaultWatcherOptions()
			opts.OnItems = func(items []model.SharedItem) { printItems(out, items) }
			opts.OnPresence = func(count int) {
				fmt.Fprintf(out, "-- %d device(s) connected\n", count)
			}

			err = syncclient.NewWatcher(client, code, opts).Run(ctx)
			if errors.Is(err, syncclient.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found or expired", code)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", envOr("PAIRDROP_SERVER", "http://localhost:8080"), "Base URL of the pairdrop server")
	cmd.Flags().StringVar(&code, "code", "", "Six digit session code")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func printItems(out io.Writer, items []model.SharedItem) {
	fmt.Fprintf(out, "-- %d item(s)\n", len(items))
	for _, item := range items {
		stamp := item.CreatedAt.Local().Format(time.DateTime)
		switch p := item.Payload().(type) {
		case model.TextPayload:
			fmt.Fprintf(out, "%s  text  %s\n", stamp, p.Content)
		case model.FilePayload:
			line := fmt.Sprintf("%s  file  %s", stamp, p.FileName)
			if p.FileSize != nil {
				line += fmt.Sprintf(" (%d bytes)", *p.FileSize)
			}
			if p.FileURL != nil {
				line += " " + *p.FileURL
			}
			fmt.Fprintln(out, line)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
