// Package schema defines the value types of the symbolic-execution trace protocol.
//
// # Data model
//
// An OperationTrace is an ordered, append-only list of Event values. Every Event is a
// wrapper around exactly one Payload variant:
//
//   - PathSplit, PathMerge, BranchSwitch, BranchAbort: shape the path tree
//   - Assume, Check: refine a path by one predicate, deriving a new PathID
//   - SolverPushFrame, SolverPopFrame: nest solver contexts
//   - Assertion, CallFunction, ReturnFromFunction, NewSymbolicVariable: informational
//
// The variant set is closed: Payload has an unexported method, so only this package
// can add kinds. Consumers switch on the concrete type (or on Payload.Kind()).
//
// # Identity
//
// PathID and ExpressionID are opaque text tokens. The package never interprets
// them beyond equality; the empty value means "absent".
//
// Assumptions is an immutable, ordered, duplicate-free set of ExpressionID. All
// operations on it return a new value.
package schema
