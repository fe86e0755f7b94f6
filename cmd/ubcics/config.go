package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minjunminji/ubcxlsxtoics/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manages the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Writes a default config file",
	Args:  cobra.MaximumNArgs(1),
	// Skip the root hook: there is nothing to load yet.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := config.Init(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}
