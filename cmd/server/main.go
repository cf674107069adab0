/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash-flow forecasting server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, then config (defaults < file < CASHFLOW_* env < flags)
  2. Initialize the store (SQLite, or in-memory with database.driver=memory)
  3. Create the Gemini extractor if an API key is configured
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --config  Optional YAML/TOML/JSON config file
  --port    HTTP server port (default: 8080)
  --db      SQLite database path (default: cashflow.db)
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db=./data/cashflow.db

  # Run with in-memory database and extraction enabled
  GEMINI_API_KEY=... ./server --db=:memory:

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/cashflow-engine/api"
	"github.com/warp/cashflow-engine/config"
	"github.com/warp/cashflow-engine/extraction"
	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/store/memory"
	"github.com/warp/cashflow-engine/store/sqlite"
	"github.com/warp/cashflow-engine/terms"
)

var (
	cfgPath string
	port    int
	dbPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Start the cash-flow forecasting API server",
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to a config file")
	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port")
	rootCmd.Flags().StringVar(&dbPath, "db", "cashflow.db", "SQLite database path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = dbPath
	}

	logger := cfg.Log.Logger(os.Stdout)
	ctx := logger.WithContext(cmd.Context())

	store, closeStore, err := newStore(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	extractor, err := newExtractor(ctx, cfg.Extraction, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, extractor, cfg.Forecast.Options())
	handler.ExtractTimeout = cfg.Extraction.Timeout

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Database.Driver).
			Str("forecast_mode", cfg.Forecast.Mode).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newStore(cfg config.DatabaseConfig) (project.Store, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		return memory.New(), func() error { return nil }, nil
	}
	store, err := sqlite.New(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, store.Close, nil
}

// newExtractor returns nil when no API key is configured; extraction requests
// then report a call failure and manual terms still work.
func newExtractor(ctx context.Context, cfg config.ExtractionConfig, logger zerolog.Logger) (terms.Extractor, error) {
	if !cfg.Enabled() {
		logger.Warn().Msg("no extraction API key; term extraction disabled")
		return nil, nil
	}
	g, err := extraction.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	logger.Info().Str("model", g.Model()).Msg("term extraction enabled")
	return g, nil
}
