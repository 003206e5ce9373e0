package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Version information for the symtrace CLI.
// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders Version with each numeric component in its own color.
// Anything after the patch number (pre-release, build metadata) is left plain.
func Colored() string {
	parts := strings.SplitN(Version, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	patch, rest := parts[2], ""
	if i := strings.IndexAny(patch, "-+"); i >= 0 {
		patch, rest = patch[:i], patch[i:]
	}
	return majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(patch) + rest
}

// Info returns the text printed by `symtrace version`. protocol is the trace
// protocol version the binary writes.
func Info(protocol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symtrace %s\n", Colored())
	fmt.Fprintf(&b, "protocol %s\n", protocol)
	if GitCommit != "" {
		fmt.Fprintf(&b, "commit   %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "built    %s\n", BuildDate)
	}
	return b.String()
}
