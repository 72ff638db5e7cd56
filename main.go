package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thushan/ngsiproxy/internal/app"
	"github.com/thushan/ngsiproxy/internal/config"
	"github.com/thushan/ngsiproxy/internal/logger"
	"github.com/thushan/ngsiproxy/internal/version"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          version.Name,
	Short:        version.Description,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server (default)",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		version.PrintVersionInfo(true, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./config.yaml or $"+config.EnvConfigFile+")")
	rootCmd.AddCommand(serveCmd, versionCmd, queryCmd, verifyCmd)
}

func main() {
	// a missing .env is normal, anything else is worth knowing about
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildLoggerConfig reads the NGSIPROXY_LOG_* style variables
func buildLoggerConfig() (*logger.Config, error) {
	var cfg logger.Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("invalid logger environment: %w", err)
	}
	return &cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	version.PrintVersionInfo(false, cmd.OutOrStdout())

	lcfg, err := buildLoggerConfig()
	if err != nil {
		return err
	}
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		return fmt.Errorf("failed to initialise logger: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	manager, err := config.Load(configFile)
	if err != nil {
		styledLogger.Error("Failed to load configuration", "error", err)
		return err
	}
	if file := manager.Config().Filename; file != "" {
		styledLogger.Info("Loaded configuration", "file", file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, manager, styledLogger)
	if err != nil {
		styledLogger.Error("Failed to create application", "error", err)
		return err
	}

	if err := application.Run(ctx); err != nil {
		styledLogger.Error("Server stopped with error", "error", err)
		return err
	}

	styledLogger.Info("ngsiproxy has shutdown")
	return nil
}
