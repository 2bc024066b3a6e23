package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wasmloader/internal/buildpipeline"
	"wasmloader/internal/logging"
	"wasmloader/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve builds over HTTP",
	Long: `Serve exposes POST /v1/build and GET /v1/version. Request paths are
resolved against --root and may not leave it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().String("root", ".", "directory that request paths are confined to")
	serveCmd.Flags().Duration("build-timeout", 10*time.Minute, "maximum duration of one build (0 = unlimited)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("build-timeout")
	if err != nil {
		return err
	}
	levelStr, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	log := logging.NewJSON(cmd.ErrOrStderr(), level)
	logging.Set(log)

	srv := server.New(buildpipeline.New(buildpipeline.Options{}),
		server.WithRoot(root),
		server.WithTimeout(timeout),
		server.WithLogger(log),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
	return srv.ListenAndServe(cmd.Context(), addr)
}
