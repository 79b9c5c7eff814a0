// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raglane-dev/raglane/internal/config"

	// Register the storage and vector index backends.
	_ "github.com/raglane-dev/raglane/internal/index/flat"
	_ "github.com/raglane-dev/raglane/internal/index/sqlite"
	_ "github.com/raglane-dev/raglane/internal/store/sqlite"
)

// NewRootCmd creates the root raglane command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "raglane",
		Short:         "Raglane document ingestion and retrieval service",
		Long:          "Raglane ingests documents into a vector index and serves similarity search over them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newCompactCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the config file (flag, then the default location with
// bootstrap on first run), loads it, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	if path == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			} else if bootstrapped := config.BootstrapConfig(); bootstrapped != "" {
				path = bootstrapped
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	config.WarnInsecurePermissions(path)

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Storage.DataPath = dataDir
	}

	setupLogging(cfg.Logging.Level)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
