// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest documents into the vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return raglerr.Wrapf(err, raglerr.CodeCLIInputInvalid, "reading %s", path)
		}

		res, err := a.pipeline.Run(cmd.Context(), data, filepath.Base(path))
		if err != nil {
			return err
		}

		if res.AlreadyIndexed {
			fmt.Fprintf(out, "%s: already indexed as %s (%d chunks)\n",
				path, res.DocumentID, res.ChunkCount)
			continue
		}
		fmt.Fprintf(out, "%s: indexed as %s (%d chunks, %s/%s)\n",
			path, res.DocumentID, res.ChunkCount, res.EmbeddingProvider, res.EmbeddingModel)
	}

	return nil
}
