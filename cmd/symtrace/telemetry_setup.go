package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"symtrace/internal/telemetry"
)

// activeTracer is the tracer set up for the running command.
var activeTracer telemetry.Tracer = telemetry.Nop

// setupTelemetry merges the telemetry flags over the [telemetry] section and
// attaches the resulting tracer to the command context. It returns a cleanup
// function that stops the heartbeat and flushes the tracer.
func setupTelemetry(cmd *cobra.Command) (func(), error) {
	tc := settings.cfg.Telemetry
	var err error

	if tc.Output, err = stringSetting(cmd, "telemetry", tc.Output); err != nil {
		return nil, err
	}
	if tc.Level, err = stringSetting(cmd, "telemetry-level", tc.Level); err != nil {
		return nil, err
	}
	if tc.Mode, err = stringSetting(cmd, "telemetry-mode", tc.Mode); err != nil {
		return nil, err
	}
	if tc.Format, err = stringSetting(cmd, "telemetry-format", tc.Format); err != nil {
		return nil, err
	}
	if tc.RingSize, err = intSetting(cmd, "telemetry-ring-size", tc.RingSize); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("telemetry-heartbeat") {
		hb, err := cmd.Flags().GetDuration("telemetry-heartbeat")
		if err != nil {
			return nil, fmt.Errorf("failed to get telemetry-heartbeat flag: %w", err)
		}
		tc.Heartbeat = hb.String()
	}

	// An output file without a level asks for command-level events.
	if tc.Output != "" && (tc.Level == "" || tc.Level == "off") && !cmd.Flags().Changed("telemetry-level") {
		tc.Level = "info"
	}

	cfg, err := tc.Tracer()
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry settings: %w", err)
	}
	if cfg.Level == telemetry.LevelOff {
		cmd.SetContext(telemetry.WithTracer(cmd.Context(), telemetry.Nop))
		return func() {}, nil
	}

	tracer, err := telemetry.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	span := telemetry.Begin(tracer, telemetry.ScopeCommand, cmd.CommandPath(), 0).
		With("config", settings.path)
	ctx := telemetry.WithSpan(telemetry.WithTracer(cmd.Context(), tracer), span)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	heartbeat := telemetry.StartHeartbeat(tracer, cfg.Heartbeat)

	cleanup := func() {
		heartbeat.Stop()
		span.End("")
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "telemetry: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "telemetry: close error: %v\n", err)
		}
		activeTracer = telemetry.Nop
	}
	return cleanup, nil
}

// dumpRingOnPanic writes the ring buffer, if one is configured, to stderr
// before letting a panic continue.
func dumpRingOnPanic() {
	r := recover()
	if r == nil {
		return
	}
	var ring *telemetry.RingTracer
	switch t := activeTracer.(type) {
	case *telemetry.RingTracer:
		ring = t
	case *telemetry.MultiTracer:
		ring = t.Ring()
	}
	if ring != nil {
		fmt.Fprintln(os.Stderr, "telemetry: last events before panic:")
		_ = ring.Dump(os.Stderr, telemetry.FormatText)
	}
	panic(r)
}
