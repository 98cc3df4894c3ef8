package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/client"
	"github.com/alfredjeanlab/scanline/internal/ui"
)

var (
	httpURL    string
	grpcAddr   string
	authToken  string
	jsonOutput bool

	scanClient *client.HTTPClient
	palette    ui.Palette
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:           "scan <command>",
	Short:         "Barcode and QR scanner daemon and control CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		palette = ui.NewPalette(ui.ShouldUseColor())
		scanClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if scanClient != nil {
			scanClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOr("SCANLINE_HTTP_URL", "http://localhost:8080"), "daemon HTTP URL")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "server", envOr("SCANLINE_SERVER", "localhost:9090"), "daemon gRPC address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("SCANLINE_AUTH_TOKEN"), "bearer token for the daemon")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Session
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(torchCmd)
	rootCmd.AddCommand(focusCmd)

	// Views
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
