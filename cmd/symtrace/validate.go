package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"symtrace/internal/diag"
	"symtrace/internal/driver"
	"symtrace/internal/observ"
	"symtrace/internal/reportcache"
	"symtrace/internal/reportfmt"
	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flags] <file|directory|->...",
	Short: "Check trace logs for structural consistency",
	Long: `Replay every event of each trace through the path state tracker and report
references to unknown or dead paths, unbalanced solver frames and branch
switches, and paths left open at the end of the trace`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("fail-fast", false, "stop each trace at its first violation")
	validateCmd.Flags().Int("max-violations", 0, "maximum violations collected per trace (0=unlimited)")
	validateCmd.Flags().String("format", "pretty", "output format (pretty|json|yaml|short)")
	validateCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	validateCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	validateCmd.Flags().Bool("cache", true, "reuse cached reports for unchanged traces")
	validateCmd.Flags().String("cache-dir", "", "report cache directory (default: user cache dir)")
	validateCmd.Flags().Bool("clear-cache", false, "drop every cached report before validating")
	validateCmd.Flags().String("root", "", "root path id, overriding the one recorded in the trace")
	validateCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	validateCmd.Flags().Bool("stats", false, "include replay statistics in output")
	validateCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

type validateSettings struct {
	failFast      bool
	maxViolations int
	format        string
	jobs          int
	ui            progressMode
	cache         bool
	cacheDir      string
	clearCache    bool
	root          string
	withNotes     bool
	stats         bool
	fullPath      bool
}

// progressMode selects the live progress view of a multi-file run.
type progressMode uint8

const (
	progressAuto progressMode = iota
	progressOn
	progressOff
)

func parseProgressMode(value string) (progressMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return progressAuto, nil
	case "on":
		return progressOn, nil
	case "off":
		return progressOff, nil
	}
	return progressAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// showProgress reports whether the run renders the progress view instead of
// validating silently. Only pretty output over several files has one; auto
// follows whether stdout is a terminal.
func (s validateSettings) showProgress(quiet bool, files int, tty bool) bool {
	if s.format != "pretty" || quiet || files < 2 {
		return false
	}
	switch s.ui {
	case progressOn:
		return true
	case progressOff:
		return false
	}
	return tty
}

func readValidateSettings(cmd *cobra.Command) (validateSettings, error) {
	vc := settings.cfg.Validate
	var (
		s   validateSettings
		err error
	)
	if s.failFast, err = boolSetting(cmd, "fail-fast", vc.FailFast); err != nil {
		return s, err
	}
	if s.maxViolations, err = intSetting(cmd, "max-violations", vc.MaxViolations); err != nil {
		return s, err
	}
	if s.format, err = stringSetting(cmd, "format", vc.Format); err != nil {
		return s, err
	}
	if s.jobs, err = intSetting(cmd, "jobs", vc.Jobs); err != nil {
		return s, err
	}
	uiValue, err := stringSetting(cmd, "ui", vc.UI)
	if err != nil {
		return s, err
	}
	if s.ui, err = parseProgressMode(uiValue); err != nil {
		return s, err
	}
	if s.cache, err = boolSetting(cmd, "cache", vc.Cache); err != nil {
		return s, err
	}
	if s.cacheDir, err = stringSetting(cmd, "cache-dir", vc.CacheDir); err != nil {
		return s, err
	}
	if s.clearCache, err = cmd.Flags().GetBool("clear-cache"); err != nil {
		return s, fmt.Errorf("failed to get clear-cache flag: %w", err)
	}
	if s.root, err = stringSetting(cmd, "root", vc.Root); err != nil {
		return s, err
	}
	if s.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return s, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	if s.stats, err = cmd.Flags().GetBool("stats"); err != nil {
		return s, fmt.Errorf("failed to get stats flag: %w", err)
	}
	if s.fullPath, err = cmd.Flags().GetBool("fullpath"); err != nil {
		return s, fmt.Errorf("failed to get fullpath flag: %w", err)
	}

	s.format = strings.ToLower(s.format)
	switch s.format {
	case "pretty", "json", "yaml", "short":
	default:
		return s, fmt.Errorf("unknown format: %s", s.format)
	}
	if s.maxViolations < 0 {
		return s, fmt.Errorf("--max-violations must not be negative")
	}
	return s, nil
}

// runValidate executes the "validate" command. It exits with status 1 when any
// trace has violations, fails to decode, or cannot be read.
func runValidate(cmd *cobra.Command, args []string) error {
	defer dumpRingOnPanic()

	s, err := readValidateSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	tracer := telemetry.FromContext(ctx)
	timer := observ.NewTimer()

	opts := validate.Options{
		FailFast:      s.failFast,
		MaxViolations: s.maxViolations,
		Root:          schema.PathID(s.root),
		Tracer:        tracer,
	}

	var results []driver.Result
	if len(args) == 1 && args[0] == "-" {
		res, err := validateStdin(cmd.InOrStdin(), opts, timer)
		if err != nil {
			return err
		}
		results = []driver.Result{res}
	} else {
		var files []string
		err := timer.Track("discover", func() error {
			var err error
			files, err = driver.ListTraceFiles(args, settings.cfg.Validate.Extensions)
			return err
		})
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no trace files found")
		}

		req := &driver.Request{
			Files:   files,
			Jobs:    s.jobs,
			Options: opts,
			Timings: timingsFlag(cmd),
		}
		if s.cache {
			req.Cache = openCache(cmd, s.cacheDir, s.clearCache, tracer)
		}

		idx := timer.Begin("validate")
		if s.showProgress(quietFlag(cmd), len(files), isTerminal(os.Stdout)) {
			results, err = runValidateWithUI(ctx, "validating", req)
		} else {
			results, err = driver.ValidateFiles(ctx, req)
		}
		timer.End(idx, fmt.Sprintf("%d files", len(files)))
		if err != nil {
			return err
		}
	}

	reports := make([]*validate.Report, 0, len(results))
	var loadErrs []diag.Diagnostic
	failed := false
	errOut := cmd.ErrOrStderr()
	for _, res := range results {
		if res.Failed() {
			failed = true
		}
		if res.Err != nil {
			loc := diag.NoLocation
			loc.File = res.Path
			loadErrs = append(loadErrs, diag.NewError(diag.IOLoadFileError, loc, res.Err.Error()))
			if s.format != "short" {
				fmt.Fprintf(errOut, "%s %s: %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), res.Path, res.Err)
			}
			continue
		}
		reports = append(reports, res.Report)
	}

	idx := timer.Begin("render")
	if s.format == "short" {
		err = renderShort(cmd.OutOrStdout(), reports, loadErrs, s.withNotes)
	} else {
		err = renderReports(cmd.OutOrStdout(), reports, s, quietFlag(cmd))
	}
	timer.End(idx, s.format)
	if err != nil {
		return err
	}
	if timingsFlag(cmd) {
		printTimings(errOut, results, timer)
	}
	if failed {
		return errFailed
	}
	return nil
}

func validateStdin(in io.Reader, opts validate.Options, timer *observ.Timer) (driver.Result, error) {
	var data []byte
	err := timer.Track("read", func() error {
		var err error
		data, err = io.ReadAll(in)
		return err
	})
	if err != nil {
		return driver.Result{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	opts.File = "-"
	res := driver.Result{Path: "-"}
	_ = timer.Track("validate", func() error {
		res.Report, res.DecodeErr = validate.Validate(data, opts)
		return res.DecodeErr
	})
	return res, nil
}

// openCache opens the report cache. A cache that cannot be opened only costs
// speed, so the failure is reported and validation proceeds without it.
func openCache(cmd *cobra.Command, dir string, drop bool, tracer telemetry.Tracer) *reportcache.Cache {
	warn := func(err error) {
		telemetry.Point(tracer, telemetry.ScopeCommand, "cache.open", err.Error(), nil)
		if !quietFlag(cmd) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s report cache disabled: %v\n", color.New(color.FgYellow, color.Bold).Sprint("warning:"), err)
		}
	}
	c, err := reportcache.Open(dir)
	if err != nil {
		warn(err)
		return nil
	}
	if drop {
		if err := c.DropAll(); err != nil {
			warn(err)
			return nil
		}
		telemetry.Point(tracer, telemetry.ScopeCommand, "cache.clear", c.Dir(), nil)
	}
	return c
}

// renderShort prints one line per diagnostic across all files.
func renderShort(out io.Writer, reports []*validate.Report, loadErrs []diag.Diagnostic, withNotes bool) error {
	all := diag.NewBag(0)
	for _, d := range loadErrs {
		all.Add(d)
	}
	for _, r := range reports {
		all.Merge(r.Diagnostics())
	}
	all.Dedup()
	all.Sort()
	text := diag.FormatShort(all.Items(), withNotes)
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(out, text)
	return err
}

func renderReports(out io.Writer, reports []*validate.Report, s validateSettings, quiet bool) error {
	pathMode := reportfmt.PathModeAuto
	if s.fullPath {
		pathMode = reportfmt.PathModeAbsolute
	}
	switch s.format {
	case "json":
		return reportfmt.JSON(out, reports, reportfmt.StructuredOpts{
			PathMode:     pathMode,
			IncludeNotes: s.withNotes,
			IncludeStats: s.stats,
		})
	case "yaml":
		return reportfmt.YAML(out, reports, reportfmt.StructuredOpts{
			PathMode:     pathMode,
			IncludeNotes: s.withNotes,
			IncludeStats: s.stats,
		})
	default:
		width := 0
		if f, ok := out.(*os.File); ok && isTerminal(f) {
			width = terminalWidth(f)
		}
		return reportfmt.Pretty(out, reports, reportfmt.PrettyOpts{
			Color:         !color.NoColor,
			PathMode:      pathMode,
			Width:         width,
			ShowNotes:     s.withNotes,
			ShowOpenPaths: true,
			ShowStats:     s.stats,
			Quiet:         quiet,
		})
	}
}
