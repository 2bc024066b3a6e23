package main

import (
	"github.com/spf13/cobra"

	"wasmloader/internal/prof"
)

func startProfiling(cmd *cobra.Command) (*prof.Session, error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpuprofile"); err != nil {
		return nil, err
	}
	if opts.Mem, err = flags.GetString("memprofile"); err != nil {
		return nil, err
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, err
	}
	if !opts.Enabled() {
		return nil, nil
	}
	return prof.Start(opts)
}
