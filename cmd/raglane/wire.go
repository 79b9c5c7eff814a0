// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raglane-dev/raglane/internal/chunker"
	"github.com/raglane-dev/raglane/internal/config"
	"github.com/raglane-dev/raglane/internal/ingest"
	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// app bundles everything a command needs after wiring.
type app struct {
	cfg      *config.Config
	docs     store.DocumentStore
	settings store.SettingsStore
	pipeline *ingest.Pipeline
	closers  []io.Closer
}

// buildApp loads config and wires the stores and pipeline. Callers must
// invoke close when done.
func buildApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
		return nil, raglerr.Wrapf(err, raglerr.CodeCLISetupFailure,
			"creating data directory %s", cfg.Storage.DataPath)
	}

	docs, settings, err := store.NewStores(cfg.Storage.Backend, cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}

	ck, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		_ = docs.Close()
		return nil, err
	}

	pipeline, err := ingest.New(ingest.Options{
		Documents: docs,
		Settings:  settings,
		Chunker:   ck,
		DataPath:  cfg.Storage.DataPath,
	})
	if err != nil {
		_ = docs.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		docs:     docs,
		settings: settings,
		pipeline: pipeline,
		closers:  []io.Closer{settings, docs},
	}, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}
