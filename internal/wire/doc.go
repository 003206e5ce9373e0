// Package wire implements the binary encoding of trace events.
//
// The layout is protobuf-compatible (field numbers below) and is written with
// google.golang.org/protobuf/encoding/protowire, so existing protobuf tooling can
// read the artifacts without this package.
//
//	TraceEvent     path_id=1 location=2 | variant 3..63
//	OperationTrace events=1 (repeated) root_path_id=2 root_assumptions=3
//	StreamHeader   protocol_version=1 root_path_id=2 root_assumptions=3 producer=4
//
// Variant tags: path_split=3 path_merge=4 branch_switch=5 branch_abort=6 assume=7
// check=8 return_from_function=9 call_function=10 new_symbolic_var=11 assertion=13
// solver_push_frame=14 solver_pop_frame=15. Tag 12 belonged to memory events, which
// are not part of the protocol; it decodes as an unknown variant.
//
// # Compatibility
//
// Unknown fields inside a variant message, and unknown wrapper fields numbered 64 or
// above, are skipped. An unknown wrapper field in 3..63 is an unrecognized variant and
// fails the decode: there is no safe default for an event that alters path state.
//
// # Forms
//
// A trace is stored either as a single OperationTrace message ("container" form) or as
// the magic bytes "SYMT" followed by a framed StreamHeader and framed TraceEvent
// messages ("stream" form, suitable for incremental appends). Each frame is a uvarint
// length followed by the message bytes.
package wire
