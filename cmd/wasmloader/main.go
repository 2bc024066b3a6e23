// Package main implements the wasmloader CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wasmloader/internal/logging"
	"wasmloader/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "wasmloader",
	Short: "Compile Rust crates to WebAssembly assets",
	Long: `wasmloader builds a Rust crate for wasm32-unknown-unknown, runs the optional
wasm-gc, wasm-bindgen and wasm2es6js passes, and emits hashed assets together
with an ES module that instantiates them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, cleanup)
		session, err := startProfiling(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() {
			if err := session.Stop(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
			}
		})
		return nil
	},
}

// cleanups run after the command finishes, whether or not it failed.
var cleanups []func()

// main registers subcommands and persistent flags, then executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Current().Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat every interval while tracing (0 disables)")
	rootCmd.PersistentFlags().String("cpuprofile", "", "write a CPU profile of wasmloader itself")
	rootCmd.PersistentFlags().String("memprofile", "", "write a heap profile on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	_ = logging.L().Sync()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func colorEnabled(cmd *cobra.Command) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return isTerminal(os.Stdout), nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
