// Package diag defines the diagnostic model shared by the decoder, the
// validator and the CLI.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity: tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code: compact numeric identifier (see codes.go) with a stable string form.
//   - Message: human oriented text; keep it short and actionable.
//   - Primary: the Location in the trace: file, event index, byte offset and
//     the path involved.
//   - Notes: optional secondary locations/messages for additional context.
//
// Notes should be used sparingly: each note must add new context (e.g. “path
// created here”) rather than repeating the diagnostic message.
//
// # Emitting diagnostics
//
// Producers use a diag.Reporter to decouple emission from storage. A
// ReportBuilder (NewReportBuilder or the ReportError/ReportWarning/ReportInfo
// helpers) accumulates notes before Emit. BagReporter aggregates diagnostics
// into a Bag, which supports limits, sorting and deduplication.
//
// Package diag does not format or print anything except the single-line short
// form in short.go; rendering lives in internal/reportfmt.
package diag
