package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/newswire/internal/api"
	"github.com/bilgisen/newswire/internal/config"
	"github.com/bilgisen/newswire/internal/ingest"
	"github.com/bilgisen/newswire/internal/logger"
	"github.com/bilgisen/newswire/internal/middleware"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "newswire",
	Short:         "newswire - news ingestion and deduplication backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		return logger.Init(logger.Config{
			Level:  cfg.LogLevel,
			Output: cfg.LogOutput(),
			Pretty: cfg.Env == "development",
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the optional ingestion scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.Get()
		log.Info().Msg("Starting application...")

		c, err := buildComponents(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		app := fiber.New(fiber.Config{
			ReadTimeout:  cfg.HTTPTimeout,
			WriteTimeout: cfg.HTTPTimeout,
			IdleTimeout:  120 * time.Second,
			ErrorHandler: middleware.ErrorHandler,
		})

		handlers := api.NewHandlers(c.store, c.orchestrator, api.FeedInfo{
			Title:       cfg.FeedTitle,
			Link:        cfg.FeedLink,
			Description: cfg.FeedDescription,
		}, *log)
		api.SetupRoutes(app, handlers, cfg.AdminAPIKey)

		if cfg.AdminAPIKey == "" {
			log.Warn().Msg("ADMIN_API_KEY not set, admin routes are disabled")
		}

		if cfg.IngestInterval > 0 {
			go func() {
				_ = ingest.NewScheduler(c.orchestrator, cfg.IngestInterval, *log).Run(ctx)
			}()
		}

		serverErr := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Port).Msg("Starting server")
			serverErr <- app.Listen(":" + cfg.Port)
		}()

		select {
		case err := <-serverErr:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}

		log.Info().Msg("Server exited properly")
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over every category and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := buildComponents(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		result, runErr := c.orchestrator.Run(ctx)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		var cooldownErr *ingest.CooldownError
		if errors.As(runErr, &cooldownErr) {
			return fmt.Errorf("ingestion rejected: %w", runErr)
		}
		return runErr
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.InMemory() {
			return errors.New("migrate needs a PostgreSQL DATABASE_URL")
		}

		ctx := cmd.Context()
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Get().Info().Msg("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
