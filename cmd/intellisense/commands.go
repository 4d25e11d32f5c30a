// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Intellisense/pkg/logging"
	"github.com/AleutianAI/Intellisense/services/intellisense"
	"github.com/AleutianAI/Intellisense/services/intellisense/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// serveFlags holds the serve command's flag values.
type serveFlags struct {
	configPath string
	host       string
	port       int
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "intellisense",
		Short: "Graph query and chat API for Intellisense",
		Long: `Intellisense serves an in-memory knowledge graph, a chat agent,
and a document analysis endpoint over HTTP.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, watchPath(flags.configPath))
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "",
		"Path to a YAML config file (default ./"+config.DefaultPath+" if present)")
	cmd.Flags().StringVar(&flags.host, "host", "", "Bind address (overrides config and INTELLISENSE_HOST)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Bind port (overrides config and INTELLISENSE_PORT)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "intellisense %s (%s %s/%s)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadServeConfig merges file, environment, and explicitly set flags, then
// validates the result.
func loadServeConfig(cmd *cobra.Command, flags serveFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host = flags.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = flags.port
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// watchPath returns the config file to hot-reload, or "" when there is none.
func watchPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.DefaultPath
	}
	return ""
}

// runServe builds the logger and service and blocks until SIGINT or SIGTERM.
// When configPath is set, edits to logging.level take effect without a
// restart; other settings are read once.
func runServe(ctx context.Context, cfg config.Config, configPath string) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	logger := logging.New(logging.Config{
		Level:   level,
		Service: intellisense.ServiceName,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
	})
	defer func() { _ = logger.Close() }()
	slog.SetDefault(logger.Slog())

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := intellisense.New(cfg, intellisense.Options{
		Logger:  logger.Slog(),
		Version: Version,
	})
	if err != nil {
		logger.Error("Failed to initialize service", "error", err)
		return err
	}

	if configPath != "" {
		go watchLogLevel(ctx, configPath, logger)
	}

	if err := svc.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		return err
	}
	return nil
}

// watchLogLevel applies logging.level from each valid reload of configPath.
func watchLogLevel(ctx context.Context, configPath string, logger *logging.Logger) {
	err := config.Watch(ctx, configPath, func(cfg config.Config) {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return
		}
		logger.SetLevel(level)
		logger.Info("Log level updated", "level", cfg.Logging.Level)
	}, logger.Slog())
	if err != nil {
		logger.Warn("Config hot-reload disabled", "path", configPath, "error", err)
	}
}
