package pathstate

import (
	"fmt"

	"symtrace/internal/schema"
)

// ViolationKind classifies a broken trace invariant.
type ViolationKind uint8

const (
	// ReferenceToUnknownPath: an event names a PathID that was never created.
	ReferenceToUnknownPath ViolationKind = iota + 1
	// ReferenceToDeadPath: an event names a merged, aborted or superseded path.
	ReferenceToDeadPath
	// UnbalancedSolverFrame: SolverPopFrame with no open frame.
	UnbalancedSolverFrame
	// UnbalancedBranchSwitch: a switch away from a path without focus, or to a path
	// that was never suspended.
	UnbalancedBranchSwitch
	// DuplicatePathID: an event creates a PathID that already exists.
	DuplicatePathID
)

func (k ViolationKind) String() string {
	switch k {
	case ReferenceToUnknownPath:
		return "unknown_path"
	case ReferenceToDeadPath:
		return "dead_path"
	case UnbalancedSolverFrame:
		return "unbalanced_solver_frame"
	case UnbalancedBranchSwitch:
		return "unbalanced_branch_switch"
	case DuplicatePathID:
		return "duplicate_path_id"
	default:
		return "unknown"
	}
}

// Violation is an invariant failure at one event. It implements error.
type Violation struct {
	Kind     ViolationKind
	Path     schema.PathID
	Position int
	Event    schema.Kind
	Detail   string
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("event %d (%s): %s: path %s", v.Position, v.Event, v.Kind, v.Path)
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}
