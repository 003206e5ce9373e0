package diag

// Severity orders diagnostics; only errors fail a trace.
type Severity uint8

const (
	// SevInfo notes how a run went, e.g. a fail-fast stop.
	SevInfo Severity = iota
	// SevWarning marks a trace that is well formed but unfinished, such as
	// open paths or solver frames.
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "info",
	SevWarning: "warning",
	SevError:   "error",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// Fails reports whether a diagnostic of this severity fails validation.
func (s Severity) Fails() bool { return s >= SevError }
