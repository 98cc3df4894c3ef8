package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/client"
)

var startCmd = &cobra.Command{
	Use:     "start",
	Short:   "Start a scanning session",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := scanClient.Start(context.Background())
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStatus(st)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:     "stop",
	Short:   "Stop the scanning session",
	GroupID: "session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := scanClient.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStatus(st)
		return nil
	},
}

var torchCmd = &cobra.Command{
	Use:       "torch <on|off|toggle>",
	Short:     "Set the torch intent",
	Long:      "Record whether the torch should be lit. The torch follows while a session is active and the camera has a flash; otherwise the choice is kept for the next session.",
	GroupID:   "session",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		var (
			ts  *client.TorchState
			err error
		)
		switch args[0] {
		case "on":
			ts, err = scanClient.SetTorch(ctx, true)
		case "off":
			ts, err = scanClient.SetTorch(ctx, false)
		case "toggle":
			ts, err = scanClient.ToggleTorch(ctx)
		default:
			return fmt.Errorf("unknown torch setting %q (must be on, off or toggle)", args[0])
		}
		if err != nil {
			return fmt.Errorf("setting torch: %w", err)
		}
		if jsonOutput {
			return printJSON(ts)
		}
		printTorch(ts)
		return nil
	},
}

var focusCmd = &cobra.Command{
	Use:     "focus <x> <y>",
	Short:   "Focus at a point in preview coordinates",
	GroupID: "session",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid x %q: %w", args[0], err)
		}
		y, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid y %q: %w", args[1], err)
		}
		if err := scanClient.FocusAt(context.Background(), x, y); err != nil {
			return fmt.Errorf("requesting focus: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Focus requested at (%g, %g)\n", x, y)
		}
		return nil
	},
}
