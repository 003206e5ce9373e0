package main

import (
	"fmt"
	"io"

	"symtrace/internal/driver"
	"symtrace/internal/observ"
)

// printTimings writes the per-file phase timings of a batch followed by the
// command's own phases.
func printTimings(out io.Writer, results []driver.Result, command *observ.Timer) {
	if out == nil {
		return
	}
	all := observ.NewTimer()
	for _, res := range results {
		if res.Timing == nil {
			continue
		}
		all.Merge(res.Path+" ", *res.Timing)
	}
	if command != nil {
		all.Merge("", command.Report())
	}
	fmt.Fprint(out, all.Summary())
}
