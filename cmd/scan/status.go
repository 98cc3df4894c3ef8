package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the session state and torch",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := scanClient.Status(context.Background())
		if err != nil {
			return fmt.Errorf("fetching status: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStatus(st)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show pipeline counters",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := scanClient.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}
		if jsonOutput {
			return printJSON(snap)
		}
		printStats(snap)
		return nil
	},
}
