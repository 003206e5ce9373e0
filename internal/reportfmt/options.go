package reportfmt

import (
	"path/filepath"
	"strings"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto uses the path as given.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures human-readable output.
type PrettyOpts struct {
	Color         bool
	PathMode      PathMode
	BaseDir       string // for PathModeRelative; cwd if empty
	Width         int    // maximum line width, 0 - unlimited
	ShowNotes     bool
	ShowOpenPaths bool
	ShowStats     bool
	Quiet         bool // only failing files
}

// StructuredOpts configures JSON and YAML output.
type StructuredOpts struct {
	PathMode     PathMode
	BaseDir      string
	Max          int // per-file cap on violations in the output, not in the report
	IncludeNotes bool
	IncludeStats bool
}

func formatPath(path string, mode PathMode, base string) string {
	if path == "" || path == "-" {
		return "<stdin>"
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	case PathModeRelative:
		if base == "" {
			base = "."
		}
		absBase, err1 := filepath.Abs(base)
		absPath, err2 := filepath.Abs(path)
		if err1 == nil && err2 == nil {
			if rel, err := filepath.Rel(absBase, absPath); err == nil && !strings.HasPrefix(rel, "..") {
				return rel
			}
		}
	case PathModeBasename:
		return filepath.Base(path)
	}
	return path
}
