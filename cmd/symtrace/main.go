package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"symtrace/internal/prof"
	"symtrace/internal/version"
)

// errFailed signals exit status 1 after the command already reported why.
var errFailed = errors.New("failed")

var rootCmd = &cobra.Command{
	Use:               "symtrace",
	Short:             "Symbolic-execution trace toolkit",
	Long:              `symtrace writes, inspects and validates symbolic-execution trace logs`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: prepareCommand,
}

// main registers the subcommands and global flags and runs the root command.
// Interrupts cancel the command context; any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to symtrace.toml (default: search upwards from the working directory)")
	flags.String("telemetry", "", "telemetry output file (\"-\" for stderr)")
	flags.String("telemetry-level", "off", "telemetry level (off|error|info|detail|debug)")
	flags.String("telemetry-mode", "stream", "telemetry storage (stream|ring|both)")
	flags.String("telemetry-format", "auto", "telemetry encoding (auto|text|ndjson)")
	flags.Int("telemetry-ring-size", 4096, "events kept by the ring buffer")
	flags.Duration("telemetry-heartbeat", 0, "emit a heartbeat at this interval (0 disables)")
	flags.String("cpuprofile", "", "write a CPU profile to this file")
	flags.String("memprofile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	runCleanup()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}

// prepareCommand loads the configuration and sets up telemetry before any
// subcommand runs.
func prepareCommand(cmd *cobra.Command, args []string) error {
	if err := applyColorFlag(cmd); err != nil {
		return err
	}
	if err := loadSettings(cmd); err != nil {
		return err
	}
	cleanup, err := setupTelemetry(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, cleanup)
	return startProfiling(cmd)
}

func startProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpuprofile"); err != nil {
		return fmt.Errorf("failed to get cpuprofile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("memprofile"); err != nil {
		return fmt.Errorf("failed to get memprofile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil
	}
	session, err := prof.Start(opts)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "profiling: %v\n", err)
		}
	})
	return nil
}

var cleanups []func()

func runCleanup() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func applyColorFlag(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(value) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
		color.NoColor = color.NoColor || !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

func quietFlag(cmd *cobra.Command) bool {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && quiet
}

func timingsFlag(cmd *cobra.Command) bool {
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	return err == nil && timings
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the column count of f, or 0 when unknown.
func terminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
