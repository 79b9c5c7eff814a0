// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raglane-dev/raglane/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := server.New(server.Config{
		ListenAddr:  a.cfg.Server.Listen,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	srv.RegisterServices(&server.Services{
		Pipeline:  a.pipeline,
		Documents: a.docs,
		Settings:  a.settings,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting raglane server",
		"listen", a.cfg.Server.Listen,
		"storage_backend", a.cfg.Storage.Backend,
		"data_path", a.cfg.Storage.DataPath,
	)

	return srv.Start(ctx)
}
