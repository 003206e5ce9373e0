package reportfmt

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"symtrace/internal/diag"
	"symtrace/internal/validate"
)

type palette struct {
	pass, fail, warn, note, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		note: color.New(color.FgCyan),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.warn, p.note, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.fail
	case diag.SevWarning:
		return p.warn
	default:
		return p.note
	}
}

// Pretty writes a human-readable rendering of reports followed by a summary
// line. Each report is printed as a status header and its diagnostics.
func Pretty(w io.Writer, reports []*validate.Report, opts PrettyOpts) error {
	pw := &prettyWriter{w: w, opts: opts, pal: newPalette(opts.Color)}
	failed, violations := 0, 0
	for _, r := range reports {
		if r == nil {
			continue
		}
		if !r.Passed() {
			failed++
		}
		violations += len(r.Violations)
		if opts.Quiet && r.Passed() {
			continue
		}
		pw.report(r)
	}
	summary := fmt.Sprintf("%d file(s), %d failed, %d violation(s)", len(reports), failed, violations)
	if failed > 0 {
		pw.line(pw.pal.fail.Sprint("summary: ") + summary)
	} else {
		pw.line(pw.pal.pass.Sprint("summary: ") + summary)
	}
	return pw.err
}

type prettyWriter struct {
	w    io.Writer
	opts PrettyOpts
	pal  palette
	err  error
}

func (pw *prettyWriter) line(s string) {
	if pw.err != nil {
		return
	}
	if pw.opts.Width > 0 && runewidth.StringWidth(s) > pw.opts.Width && !pw.opts.Color {
		s = runewidth.Truncate(s, pw.opts.Width, "...")
	}
	_, pw.err = fmt.Fprintln(pw.w, s)
}

func (pw *prettyWriter) report(r *validate.Report) {
	pal := pw.pal
	mark := pal.pass.Sprint("✓")
	if !r.Passed() {
		mark = pal.fail.Sprint("✗")
	}
	header := fmt.Sprintf("%s %s  %s  %d event(s)  root=%s",
		mark, pal.bold.Sprint(formatPath(r.File, pw.opts.PathMode, pw.opts.BaseDir)),
		r.Form, r.Events, r.Root)
	if r.Producer != "" {
		header += pal.dim.Sprintf("  producer=%s", r.Producer)
	}
	pw.line(header)

	bag := r.Diagnostics()
	items := bag.Items()
	rows := make([][3]string, 0, len(items))
	for _, d := range items {
		if d.Code == diag.ShpOpenPath && !pw.opts.ShowOpenPaths {
			continue
		}
		rows = append(rows, [3]string{eventColumn(d.Primary), d.Severity.String(), d.Code.ID()})
	}
	widths := columnWidths(rows)

	i := 0
	for _, d := range items {
		if d.Code == diag.ShpOpenPath && !pw.opts.ShowOpenPaths {
			continue
		}
		row := rows[i]
		i++
		msg := d.Message
		if !d.Primary.Path.IsZero() && d.Code != diag.ShpOpenPath {
			msg += pal.dim.Sprintf(" (path %s)", d.Primary.Path)
		}
		pw.line(fmt.Sprintf("    %s  %s  %s  %s",
			runewidth.FillRight(row[0], widths[0]),
			pal.severity(d.Severity).Sprint(runewidth.FillRight(row[1], widths[1])),
			runewidth.FillRight(row[2], widths[2]),
			msg))
		if !pw.opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			pw.line(fmt.Sprintf("    %s  %s  %s",
				runewidth.FillRight(eventColumn(n.Loc), widths[0]),
				pal.note.Sprint(runewidth.FillRight("note", widths[1])),
				n.Msg))
		}
	}

	if pw.opts.ShowStats {
		pw.stats(r)
	}
}

func (pw *prettyWriter) stats(r *validate.Report) {
	s := r.Stats
	kinds := make([]string, 0, len(s.Events))
	for k := range s.Events {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, k+"="+strconv.Itoa(s.Events[k]))
	}
	pw.line(pw.pal.dim.Sprintf("    stats: paths=%d frames(max)=%d frames(end)=%d calls(max)=%d symbolic=%d rejected=%d",
		s.PathsCreated, s.MaxFrameDepth, s.FinalFrameDepth, s.MaxCallDepth, s.SymbolicVariables, s.Rejected))
	if len(parts) > 0 {
		pw.line(pw.pal.dim.Sprint("    kinds: " + strings.Join(parts, " ")))
	}
}

func eventColumn(loc diag.Location) string {
	if loc.Event < 0 {
		if loc.Offset >= 0 {
			return "@" + strconv.Itoa(loc.Offset)
		}
		return "-"
	}
	return "#" + strconv.Itoa(loc.Event)
}

func columnWidths(rows [][3]string) [3]int {
	var w [3]int
	for _, row := range rows {
		for i, cell := range row {
			w[i] = max(w[i], runewidth.StringWidth(cell))
		}
	}
	return w
}
