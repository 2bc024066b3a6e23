package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wasmloader/internal/buildpipeline"
	"wasmloader/internal/diagfmt"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Run cargo clean in the enclosing Rust project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().String("boundary", "", "stop the Cargo.toml search at this directory")
}

func runClean(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	boundary, err := cmd.Flags().GetString("boundary")
	if err != nil {
		return err
	}
	useColor, err := colorEnabled(cmd)
	if err != nil {
		return err
	}
	root, ds, err := buildpipeline.New(buildpipeline.Options{}).Clean(cmd.Context(), path, boundary)
	if len(ds) > 0 {
		if perr := diagfmt.Pretty(cmd.ErrOrStderr(), ds, diagfmt.PrettyOpts{Color: useColor, BaseDir: root}); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if len(ds) > 0 {
		return fmt.Errorf("cargo clean failed in %s", root)
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", root)
	}
	return nil
}
