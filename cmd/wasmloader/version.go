package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"wasmloader/internal/toolchain"
	"wasmloader/internal/version"
)

type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
	showTools   bool
}

// versionReport is the JSON shape of `wasmloader version`.
type versionReport struct {
	version.Info
	Tools []toolchain.ToolVersion `json:"tools,omitempty"`
}

var (
	versionFormat      string
	versionShowHash    bool
	versionShowMessage bool
	versionShowDate    bool
	versionShowFull    bool
	versionShowTools   bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShowHash, "hash", false, "include git commit hash")
	versionCmd.Flags().BoolVar(&versionShowMessage, "message", false, "include git commit message")
	versionCmd.Flags().BoolVar(&versionShowDate, "date", false, "include build timestamp")
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().BoolVar(&versionShowTools, "tools", false, "also report the versions of cargo, wasm-gc, wasm-bindgen and wasm2es6js")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show wasmloader build metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := versionOptions{
			format:      strings.ToLower(versionFormat),
			showHash:    versionShowHash || versionShowFull,
			showMessage: versionShowMessage || versionShowFull,
			showDate:    versionShowDate || versionShowFull,
			showTools:   versionShowTools,
		}
		switch opts.format {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}

		report := versionReport{Info: version.Current()}
		if opts.showTools {
			report.Tools = toolchain.Probe(cmd.Context(), nil, toolchain.Tools{})
		}
		if opts.format == "json" {
			return renderVersionJSON(cmd.OutOrStdout(), report, opts)
		}
		useColor, err := colorEnabled(cmd)
		if err != nil {
			return err
		}
		renderVersionPretty(cmd.OutOrStdout(), report, opts, useColor)
		return nil
	},
}

func renderVersionPretty(out io.Writer, report versionReport, opts versionOptions, useColor bool) {
	info := report.Info
	v := info.Version
	if useColor {
		v = version.Colored(v)
	}
	fmt.Fprintf(out, "%s %s\n", info.Tool, v)
	if opts.showHash {
		fmt.Fprintf(out, "commit:  %s\n", valueOrUnknown(info.GitCommit))
	}
	if opts.showMessage {
		fmt.Fprintf(out, "message: %s\n", valueOrUnknown(info.GitMessage))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:   %s\n", valueOrUnknown(info.BuildDate))
	}
	for _, tv := range report.Tools {
		switch {
		case tv.Missing:
			fmt.Fprintf(out, "%-13s not found (%s)\n", tv.Tool+":", tv.Command)
		case tv.Error != "":
			fmt.Fprintf(out, "%-13s unknown (%s)\n", tv.Tool+":", tv.Error)
		default:
			fmt.Fprintf(out, "%-13s %s\n", tv.Tool+":", tv.Version)
		}
	}
}

func renderVersionJSON(out io.Writer, report versionReport, opts versionOptions) error {
	info := report.Info
	payload := versionReport{
		Info:  version.Info{Tool: info.Tool, Version: info.Version},
		Tools: report.Tools,
	}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if opts.showMessage {
		payload.GitMessage = valueOrUnknown(info.GitMessage)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
