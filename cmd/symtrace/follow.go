package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"symtrace/internal/follow"
	"symtrace/internal/reportfmt"
	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/validate"
)

var followCmd = &cobra.Command{
	Use:   "follow [flags] <file>",
	Short: "Validate a stream-form trace log while it is being written",
	Long: `Validate the events already in the file, then keep validating events as the
producer appends them. Interrupt to stop; paths still live at that point are
listed as open, not as violations`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	followCmd.Flags().Bool("fail-fast", false, "stop at the first violation")
	followCmd.Flags().Int("max-violations", 0, "maximum violations collected (0=unlimited)")
	followCmd.Flags().String("root", "", "root path id, overriding the one recorded in the trace")
	followCmd.Flags().Duration("poll", 0, "re-read interval in addition to change notifications (0=default, <0 disables)")
}

func runFollow(cmd *cobra.Command, args []string) error {
	defer dumpRingOnPanic()

	vc := settings.cfg.Validate
	failFast, err := boolSetting(cmd, "fail-fast", vc.FailFast)
	if err != nil {
		return err
	}
	maxViolations, err := intSetting(cmd, "max-violations", vc.MaxViolations)
	if err != nil {
		return err
	}
	root, err := stringSetting(cmd, "root", vc.Root)
	if err != nil {
		return err
	}
	poll, err := cmd.Flags().GetDuration("poll")
	if err != nil {
		return fmt.Errorf("failed to get poll flag: %w", err)
	}

	out := cmd.OutOrStdout()
	quiet := quietFlag(cmd)
	warn := color.New(color.FgRed)
	opts := follow.Options{
		Validate: validate.Options{
			FailFast:      failFast,
			MaxViolations: maxViolations,
			Root:          schema.PathID(root),
			Tracer:        telemetry.FromContext(cmd.Context()),
		},
		Poll: poll,
		OnUpdate: func(u follow.Update) {
			for _, v := range u.Violations {
				fmt.Fprintf(out, "%s %v\n", warn.Sprint("violation:"), v)
			}
			if !quiet {
				fmt.Fprintf(out, "+%d event(s), %d total\n", u.Events, u.Total)
			}
		},
	}

	rep, err := follow.Follow(cmd.Context(), args[0], opts)
	if rep == nil {
		return err
	}
	if errors.Is(err, follow.ErrRemoved) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s was removed; stopped following\n", args[0])
		err = nil
	}
	if perr := reportfmt.Pretty(out, []*validate.Report{rep}, reportfmt.PrettyOpts{
		Color:         !color.NoColor,
		ShowOpenPaths: true,
		ShowStats:     timingsFlag(cmd),
	}); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	if !rep.Passed() {
		return errFailed
	}
	return nil
}
