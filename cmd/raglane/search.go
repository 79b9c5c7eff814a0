// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search indexed chunks by similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("top-k", "k", 5, "number of results to return")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	topK, _ := cmd.Flags().GetInt("top-k")
	query := strings.Join(args, " ")

	results, err := a.pipeline.Search(cmd.Context(), query, topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	for i, r := range results {
		name, _ := r.Metadata["document_name"].(string)
		text, _ := r.Metadata["text"].(string)
		fmt.Fprintf(out, "%d. %s (distance %.4f)\n", i+1, name, r.Score)
		fmt.Fprintf(out, "   %s\n", text)
	}
	return nil
}
