package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"symtrace/internal/config"
)

// settings is the loaded configuration for the running command.
var settings = struct {
	cfg  config.Config
	path string
}{cfg: config.Default()}

func loadSettings(cmd *cobra.Command) error {
	explicit, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if explicit != "" {
		cfg, err := config.Load(explicit)
		if err != nil {
			return err
		}
		settings.cfg, settings.path = cfg, explicit
		return nil
	}
	cfg, path, err := config.Discover(".")
	if err != nil {
		return err
	}
	settings.cfg, settings.path = cfg, path
	return nil
}

// The helpers below return the flag value when it was given on the command
// line and the configured value otherwise.

func stringSetting(cmd *cobra.Command, flag, configured string) (string, error) {
	if !cmd.Flags().Changed(flag) {
		return configured, nil
	}
	v, err := cmd.Flags().GetString(flag)
	if err != nil {
		return "", fmt.Errorf("failed to get %s flag: %w", flag, err)
	}
	return v, nil
}

func intSetting(cmd *cobra.Command, flag string, configured int) (int, error) {
	if !cmd.Flags().Changed(flag) {
		return configured, nil
	}
	v, err := cmd.Flags().GetInt(flag)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s flag: %w", flag, err)
	}
	return v, nil
}

func boolSetting(cmd *cobra.Command, flag string, configured bool) (bool, error) {
	if !cmd.Flags().Changed(flag) {
		return configured, nil
	}
	v, err := cmd.Flags().GetBool(flag)
	if err != nil {
		return false, fmt.Errorf("failed to get %s flag: %w", flag, err)
	}
	return v, nil
}
