package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ledgerpay/internal/app"
	"ledgerpay/internal/database"
	"ledgerpay/internal/router"
	"ledgerpay/internal/telemetry"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			if migrate {
				if err := database.AutoMigrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			a := app.New(ctx, cfg, db)
			engine, stopLimiter := router.Setup(a)
			defer stopLimiter()

			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      engine,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("server listening", "component", "http", "port", cfg.Server.Port, "version", Version)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}
			case <-ctx.Done():
			}
			slog.Info("shutting down", "component", "http")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			var errs []error
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown: %w", err))
			}
			// In-flight requests are done; drain their side effects.
			if err := a.Close(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("drain side effects: %w", err))
			}
			if err := shutdownTracing(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
			}
			slog.Info("server stopped", "component", "http")
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed the operator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := database.SeedAdmin(db, cfg.Admin); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			slog.Info("migrations applied", "component", "database")
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <webhook-event-id>",
		Short: "Re-run a journaled provider callback through normalize and reconcile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid webhook event id %q", args[0])
			}
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a := app.New(ctx, cfg, db)
			res, replayErr := a.Webhooks.Replay(ctx, uint(id))

			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				slog.Warn("side effects not drained", "component", "dispatch", "error", err)
			}
			if res == nil {
				return replayErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook event %d: %s\n", id, res.Outcome)
			if res.Receipt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "payment %d, user %d, %s cents %d\n",
					res.Receipt.PaymentID, res.Receipt.UserID, res.Receipt.Kind, res.Receipt.AmountCents)
			}
			return replayErr
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print an access token for a user (bot integrations, support)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			a := app.New(cmd.Context(), cfg, db)
			defer a.Close(context.Background())
			token, err := a.Auth.IssueToken(uint(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
