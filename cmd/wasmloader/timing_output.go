package main

import (
	"fmt"
	"io"

	"wasmloader/internal/buildpipeline"
)

func printStageTimings(out io.Writer, label string, timings buildpipeline.Timings) error {
	if out == nil {
		return nil
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s: %s %.1f ms\n", label, stage, toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "%s: total %.1f ms\n", label, toMillis(timings.Total()))
	return err
}
