package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Loc      Location
	Message  string
}

// FormatShort renders diagnostics one per line as
// "severity CODE file#event message", sorted deterministically. Notes are
// rendered as "note" lines when includeNotes is set. It returns "" for no input.
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		rendered = append(rendered, shortDiagnostic{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Loc:      normalize(d.Primary),
			Message:  sanitizeMessage(d.Message),
		})
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			rendered = append(rendered, shortDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Loc:      normalize(n.Loc),
				Message:  sanitizeMessage(n.Msg),
			})
		}
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Loc.File != dj.Loc.File {
			return di.Loc.File < dj.Loc.File
		}
		if di.Loc.Event != dj.Loc.Event {
			return di.Loc.Event < dj.Loc.Event
		}
		return di.Code < dj.Code
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s %s", d.Severity, d.Code, d.Loc, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func normalize(loc Location) Location {
	p := filepath.ToSlash(loc.File)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	loc.File = p
	return loc
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
