package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/client"
	"github.com/alfredjeanlab/scanline/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check daemon and scanner health over gRPC",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		hc, err := client.NewHealthClient(grpcAddr, authToken)
		if err != nil {
			return err
		}
		defer hc.Close()

		daemonStatus, err := hc.Check(ctx, "")
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		scannerStatus, err := hc.Check(ctx, server.ScannerService)
		if err != nil {
			return fmt.Errorf("checking scanner health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(map[string]string{"daemon": daemonStatus, "scanner": scannerStatus}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Daemon:  %s\n", daemonStatus)
			fmt.Printf("Scanner: %s\n", scannerStatus)
		}

		if daemonStatus != "SERVING" {
			return fmt.Errorf("unhealthy: %s", daemonStatus)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Duration("timeout", 5*time.Second, "how long to wait for the daemon")
}
