package schema

import "fmt"

// Kind identifies the active variant of an Event.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindAssertion
	KindPathSplit
	KindPathMerge
	KindBranchSwitch
	KindBranchAbort
	KindReturnFromFunction
	KindCallFunction
	KindSolverPushFrame
	KindSolverPopFrame
	KindAssume
	KindCheck
	KindNewSymbolicVariable

	kindCount
)

// Kinds lists every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindAssertion; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the snake_case name used in reports and JSON output.
func (k Kind) String() string {
	switch k {
	case KindAssertion:
		return "assertion"
	case KindPathSplit:
		return "path_split"
	case KindPathMerge:
		return "path_merge"
	case KindBranchSwitch:
		return "branch_switch"
	case KindBranchAbort:
		return "branch_abort"
	case KindReturnFromFunction:
		return "return_from_function"
	case KindCallFunction:
		return "call_function"
	case KindSolverPushFrame:
		return "solver_push_frame"
	case KindSolverPopFrame:
		return "solver_pop_frame"
	case KindAssume:
		return "assume"
	case KindCheck:
		return "check"
	case KindNewSymbolicVariable:
		return "new_symbolic_variable"
	default:
		return "invalid"
	}
}

// ParseKind converts a name produced by Kind.String back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown event kind %q", s)
}
