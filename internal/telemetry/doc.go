// Package telemetry records what the symtrace tooling itself is doing.
//
// It is the operational log of the CLI and libraries (which file is being
// validated, how long decoding took, which append was rejected), not the
// symbolic-execution trace that the rest of the module handles.
//
// # Usage
//
//	symtrace validate --telemetry=- --telemetry-level=detail run.symt
//
// # Tracers
//
//   - Nop: zero-overhead default when telemetry is off
//   - StreamTracer: writes each event immediately (file or stderr)
//   - RingTracer: keeps the last N events for dumping after a failure
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Events have a Scope (command, file, event); the Level decides which scopes are
// emitted: info shows commands, detail adds per-file work, debug adds per-event
// records such as every writer append.
//
// # Context propagation
//
//	ctx = telemetry.WithTracer(ctx, t)
//	span := telemetry.Begin(telemetry.FromContext(ctx), telemetry.ScopeFile, "validate", 0)
//	defer span.End("")
package telemetry
