package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/config"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage device profiles",
	GroupID: "system",
	// Profiles are local files; no daemon client is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var profileShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the resolved device profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("SCANLINE_PROFILE")
		if len(args) == 1 {
			path = args[0]
		}
		p, err := config.LoadProfile(path)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(p)
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(p)
	},
}

var profileInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default device profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}

		p := config.DefaultProfile()
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			p.Name = name
		}
		if dir, _ := cmd.Flags().GetString("frames-dir"); dir != "" {
			p.FramesDir = dir
		}
		if err := config.SaveProfile(path, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote profile %q to %s\n", p.Name, path)
		return nil
	},
}

func init() {
	profileInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	profileInitCmd.Flags().String("name", "", "profile name")
	profileInitCmd.Flags().String("frames-dir", "", "directory of frames for the virtual camera")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileInitCmd)
}
