package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"symtrace/internal/schema"
	"symtrace/internal/synth"
	"symtrace/internal/telemetry"
	"symtrace/internal/tracelog"
	"symtrace/internal/validate"
	"symtrace/internal/wire"
)

var synthCmd = &cobra.Command{
	Use:   "synth [flags] <out|->",
	Short: "Write a random but structurally valid trace log",
	Long: `Drive the trace writer with a seeded pseudo-random engine stand-in. The same
seed and step count always produce the same trace with the seq allocator`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().Uint64("seed", 0, "random seed")
	synthCmd.Flags().Int("steps", 64, "random events before the closing sequence")
	synthCmd.Flags().String("allocator", "seq", "path id allocator (seq|uuid)")
	synthCmd.Flags().String("root", "", "root path id (default \"root\")")
	synthCmd.Flags().String("form", "stream", "output form (stream|container)")
	synthCmd.Flags().Bool("check", false, "validate the written trace")
}

type stdoutWriter struct{ io.Writer }

func runSynth(cmd *cobra.Command, args []string) error {
	sc := settings.cfg.Synth
	seed := sc.Seed
	if cmd.Flags().Changed("seed") {
		v, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return fmt.Errorf("failed to get seed flag: %w", err)
		}
		seed = v
	}
	steps, err := intSetting(cmd, "steps", sc.Steps)
	if err != nil {
		return err
	}
	allocName, err := stringSetting(cmd, "allocator", sc.Allocator)
	if err != nil {
		return err
	}
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return fmt.Errorf("failed to get root flag: %w", err)
	}
	formStr, err := cmd.Flags().GetString("form")
	if err != nil {
		return fmt.Errorf("failed to get form flag: %w", err)
	}
	form, err := wire.ParseForm(formStr)
	if err != nil {
		return err
	}
	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return fmt.Errorf("failed to get check flag: %w", err)
	}
	alloc, err := tracelog.ParseAllocator(allocName)
	if err != nil {
		return err
	}

	if check && args[0] == "-" {
		return fmt.Errorf("--check needs an output file")
	}

	opts := synth.Options{
		Seed:      seed,
		Steps:     steps,
		Allocator: alloc,
		Root:      schema.PathID(root),
		Tracer:    telemetry.FromContext(cmd.Context()),
	}
	var (
		sink tracelog.Sink
		mem  *tracelog.MemorySink
	)
	if form == wire.FormContainer {
		mem = &tracelog.MemorySink{}
		sink = mem
	} else if sink, err = openOutput(cmd, args[0]); err != nil {
		return err
	}
	res, err := synth.Generate(cmd.Context(), sink, opts)
	if err != nil {
		return err
	}
	if mem != nil {
		if err := writeContainer(cmd, args[0], mem.Bytes()); err != nil {
			return err
		}
	}

	if !quietFlag(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "seed %d: %d event(s), %d closing\n", res.Seed, res.Events, res.Closing)
	}
	if check {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read back %s: %w", args[0], err)
		}
		rep, err := validate.Validate(data, validate.Options{File: args[0]})
		if err != nil {
			return err
		}
		if !rep.Passed() || len(rep.OpenPaths) > 0 {
			return fmt.Errorf("generated trace does not validate: %d violation(s), %d open path(s)", len(rep.Violations), len(rep.OpenPaths))
		}
	}
	return nil
}

// openOutput returns a sink for path; "-" is standard output, which the sink
// does not close.
func openOutput(cmd *cobra.Command, path string) (tracelog.Sink, error) {
	if path == "-" {
		return tracelog.NewStreamSink(stdoutWriter{cmd.OutOrStdout()}), nil
	}
	sink, err := tracelog.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return sink, nil
}

// writeContainer re-encodes a generated stream-form log as a container.
func writeContainer(cmd *cobra.Command, path string, stream []byte) error {
	tr, err := wire.DecodeStream(stream)
	if err != nil {
		return fmt.Errorf("re-read generated trace: %w", err)
	}
	data, err := wire.EncodeTrace(tr)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
