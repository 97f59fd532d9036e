package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/api"
	"github.com/cuemby/hutch/pkg/auth"
	"github.com/cuemby/hutch/pkg/billing"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/database"
	"github.com/cuemby/hutch/pkg/engine"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/workspace"
)

const (
	startupTimeout = 10 * time.Second
	shutdownGrace  = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane",
	Long: `Start the control plane: connect to PostgreSQL and the container
engine, then serve the HTTP API until SIGINT or SIGTERM.

Migrations are not applied on startup; run hutch-migrate first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		listen, _ := cmd.Flags().GetString("listen")
		return serve(configPath, listen)
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the YAML config file")
	serveCmd.Flags().String("listen", "", "Listen address, overriding the config")
	rootCmd.AddCommand(serveCmd)
}

func serve(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen != "" {
		cfg.API.Addr = listen
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("serve")

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
		URL:                cfg.Database.URL,
		MaxConns:           cfg.Database.MaxConns,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connected")

	eng, err := engine.NewDocker(cfg.Workspace)
	if err != nil {
		return fmt.Errorf("failed to create engine client: %w", err)
	}
	if err := eng.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach container engine: %w", err)
	}
	if err := eng.EnsureNetwork(ctx); err != nil {
		return fmt.Errorf("failed to ensure workspace network: %w", err)
	}
	logger.Info().Str("network", cfg.Workspace.Network).Msg("engine ready")

	store := storage.NewPostgres(db)
	manager := workspace.NewManager(store, eng, cfg.Workspace)
	billingSvc := billing.NewService(store, billing.NewRESTProvider(cfg.Payment), manager, cfg.Payment)
	billingSvc.Start()
	defer billingSvc.Close()

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	server := api.NewServer(cfg, store, auth.New(store, cfg.Auth), manager, billingSvc, eng)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	<-errCh

	logger.Info().Msg("shutdown complete")
	return nil
}
