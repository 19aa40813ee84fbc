// Package main provides the entry point for the geotrans coordinate
// transformation tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/geotrans/internal/app"
	"github.com/jobrunner/geotrans/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the state shared by all commands.
type cli struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "geotrans",
		Short: "geotrans - coordinate reference system transformations",
		Long: `geotrans transforms coordinates between coordinate reference systems.

It models geographic, geocentric, projected, compound and vertical CRS and
builds transformation chains between them: datum shifts, ECEF conversion,
map projections, axis reordering and unit conversion.

Features:
  - One-shot transformations from arguments or stdin
  - Batch files from local folders, AWS S3, Azure Blob or HTTP
  - Hot folder processing
  - CSV and SQLite result sinks
  - Domain of validity estimation
  - Prometheus metrics and health checks`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runServe(cmd, false)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, text, console)")
	root.PersistentFlags().String("target", "", "default target CRS")

	root.Flags().String("host", "127.0.0.1", "ops server host")
	root.Flags().Int("port", 9090, "ops server port")
	root.Flags().String("storage-type", "local", "storage type (local, s3, azure, http)")
	root.Flags().String("storage-path", "./data/batches", "local storage path")
	root.Flags().String("sink", "csv", "result sink (csv, sqlite)")

	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("engine.target", root.PersistentFlags().Lookup("target"))
	_ = viper.BindPFlag("server.host", root.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", root.Flags().Lookup("port"))
	_ = viper.BindPFlag("storage.type", root.Flags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", root.Flags().Lookup("storage-path"))
	_ = viper.BindPFlag("output.sink", root.Flags().Lookup("sink"))

	root.AddCommand(
		c.newTransformCmd(),
		c.newBatchCmd(),
		c.newWatchCmd(),
		c.newDomainCmd(),
		c.newListCmd(),
		c.newInfoCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "geotrans %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
		},
	}
}

func (c *cli) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Transform batch files dropped into the local storage folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runServe(cmd, true)
		},
	}
}

// loadConfig loads the configuration, viper keeps flag bindings.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// runServe runs the long-lived service: ops server, batch scheduler and,
// if enabled, the hot folder watcher.
func (c *cli) runServe(cmd *cobra.Command, watch bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if watch {
		cfg.Watch.Enabled = true
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

	logger.Info("starting geotrans",
		"version", version,
		"target", cfg.Engine.Target,
		"storage_type", cfg.Storage.Type,
		"sink", cfg.Output.Sink,
		"watch", cfg.Watch.Enabled,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	runErr := application.Start(ctx)
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	} else {
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("geotrans stopped")
	return runErr
}
