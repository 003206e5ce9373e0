package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symtrace/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a symtrace.toml with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return fmt.Errorf("failed to get force flag: %w", err)
		}
		path, err := config.WriteDefault(dir, force)
		if err != nil {
			return err
		}
		if !quietFlag(cmd) {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing symtrace.toml")
}
