package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwkim/ragmate/internal/app"
	"github.com/jwkim/ragmate/internal/cli"
	"github.com/jwkim/ragmate/internal/config"
	"github.com/jwkim/ragmate/internal/httpapi"
	"github.com/jwkim/ragmate/internal/logger"
)

var (
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragmate",
		Short: "RAGMate - Career Q&A assistant over your own documents",
		Long: `RAGMate answers questions about your career documents with
retrieval-augmented generation and per-session conversation memory.

It can:
  • Answer questions grounded in your resume, projects and workstyle docs
  • Route summary requests to the right document category
  • Remember the conversation and compact old turns into a rolling summary
  • Serve the same pipeline over HTTP`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.Build(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			return cli.Run(a.Engine, cfg)
		},
	}

	var clean bool
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the documents directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.Build(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Pipeline.Run(cmd.Context(), clean)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d files into %d chunks (%d skipped)\n", stats.Files, stats.Chunks, stats.Skipped)
			return nil
		},
	}
	ingestCmd.Flags().BoolVar(&clean, "clean", false, "clear the index before ingesting")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.Build(cfg, app.Options{WithMetrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cfg, a)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Println(cfg.String())

			path, _ := config.ConfigPath()
			fmt.Printf("\nConfig file path: %s\n", path)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RAGMate v%s\n", version)
		},
	}

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.Config{LogDir: config.LogDir(), Level: logger.INFO}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func serve(cfg *config.Config, a *app.App) error {
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: httpapi.NewServer(a.Engine).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening on %s", cfg.Server.Addr)
		fmt.Printf("Listening on %s\n", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
