package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wasmloader/internal/logging"
)

// setupLogging installs the process-wide console logger on stderr.
func setupLogging(cmd *cobra.Command) error {
	levelStr, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	logging.Set(logging.New(cmd.ErrOrStderr(), level))
	return nil
}
