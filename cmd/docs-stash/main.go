package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pavel-fokin/docs-stash/internal/database"
	"github.com/pavel-fokin/docs-stash/internal/database/migrations"
	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/seed"
	"github.com/pavel-fokin/docs-stash/internal/server"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (*server.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := server.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

var rootCmd = &cobra.Command{
	Use:          "docs-stash",
	Short:        "Document storage service",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := server.NewServices(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer svc.Close()

	srv := server.New(cfg, svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", cfg.Addr, "version", server.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.MigrateUp(db, cfg.DBDriver); err != nil {
			return err
		}
		status, err := migrations.CheckStatus(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		logger.Info("Migrations applied", "status", status.String())
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := migrations.CheckStatus(db, cfg.DBDriver)
		if err != nil {
			return err
		}
		fmt.Println(status.String())
		if !status.UpToDate() {
			return errors.New("schema is not up to date")
		}
		return nil
	},
}

// seed command
var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert default document types, categories and clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := seed.Load(seedFile)
		if err != nil {
			return err
		}

		db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.MigrateUp(db, cfg.DBDriver); err != nil {
			return err
		}

		repo := database.NewRepository(db, cfg.DBDriver, logger)
		references := documents.NewReferences(repo, documents.RealClock{}, logger)

		result, err := seed.NewSeeder(references, logger).Seed(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Printf("Created: %d\nSkipped: %d\n", result.Created, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)

	seedCmd.Flags().StringVar(&seedFile, "file", "", "TOML seed file (defaults to the built-in data)")
	rootCmd.AddCommand(seedCmd)
}
