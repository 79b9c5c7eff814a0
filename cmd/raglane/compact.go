// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rebuild the vector index without orphaned rows",
		RunE:  runCompact,
	}
}

func runCompact(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.pipeline.Compact(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Compaction removed %d orphaned vectors.\n", removed)
	return nil
}
