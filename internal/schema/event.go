package schema

// Payload is the variant carried by an Event. The set of implementations is closed.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Assertion records a proof obligation on the current path.
type Assertion struct {
	Predicate ExpressionID
	Message   string
}

// PathSplit forks the current path; execution continues on ContinuingPathID.
type PathSplit struct {
	SplitCondition   ExpressionID
	ContinuingPathID PathID
}

// PathMerge folds MergingPathID back into PathIDAfter.
// MergeCondition is nil for an unconditional merge.
type PathMerge struct {
	MergingPathID    PathID
	MergeCondition   *ExpressionID
	PathAssumptions  Assumptions
	OtherAssumptions Assumptions
	PathIDAfter      PathID
}

// BranchSwitch suspends one path and resumes another.
type BranchSwitch struct {
	IDSuspended          PathID
	IDResumed            PathID
	BranchCondition      ExpressionID
	BranchLocation       *ProgramLoc
	SuspendedAssumptions Assumptions
}

// BranchAbort terminates the current path.
type BranchAbort struct {
	AbortResult        AbortedResult
	AbortedAssumptions Assumptions
}

// ReturnFromFunction marks a function return on the current path.
type ReturnFromFunction struct {
	FuncName string
}

// CallFunction marks a function call on the current path.
type CallFunction struct {
	FuncName   string
	IsTailCall bool
}

// SolverPushFrame opens a new solver scope.
type SolverPushFrame struct{}

// SolverPopFrame closes the innermost solver scope; the path continues as PathIDAfter.
type SolverPopFrame struct {
	PathIDAfter PathID
}

// Assume refines the current path by Predicate, naming the refined path NewPathID.
type Assume struct {
	Predicate ExpressionID
	NewPathID PathID
}

// Check asks the solver about Predicate, naming the refined path NewPathID.
type Check struct {
	Predicate ExpressionID
	NewPathID PathID
}

// NewSymbolicVariable introduces a fresh symbolic value.
type NewSymbolicVariable struct {
	Name       string
	Expression TypedExpression
}

func (*Assertion) Kind() Kind           { return KindAssertion }
func (*PathSplit) Kind() Kind           { return KindPathSplit }
func (*PathMerge) Kind() Kind           { return KindPathMerge }
func (*BranchSwitch) Kind() Kind        { return KindBranchSwitch }
func (*BranchAbort) Kind() Kind         { return KindBranchAbort }
func (*ReturnFromFunction) Kind() Kind  { return KindReturnFromFunction }
func (*CallFunction) Kind() Kind        { return KindCallFunction }
func (*SolverPushFrame) Kind() Kind     { return KindSolverPushFrame }
func (*SolverPopFrame) Kind() Kind      { return KindSolverPopFrame }
func (*Assume) Kind() Kind              { return KindAssume }
func (*Check) Kind() Kind               { return KindCheck }
func (*NewSymbolicVariable) Kind() Kind { return KindNewSymbolicVariable }

func (*Assertion) isPayload()           {}
func (*PathSplit) isPayload()           {}
func (*PathMerge) isPayload()           {}
func (*BranchSwitch) isPayload()        {}
func (*BranchAbort) isPayload()         {}
func (*ReturnFromFunction) isPayload()  {}
func (*CallFunction) isPayload()        {}
func (*SolverPushFrame) isPayload()     {}
func (*SolverPopFrame) isPayload()      {}
func (*Assume) isPayload()              {}
func (*Check) isPayload()               {}
func (*NewSymbolicVariable) isPayload() {}

// Event is one entry of an OperationTrace.
// An empty PathID means the event applies to the current focus path.
type Event struct {
	PathID   PathID
	Location *ProgramLoc
	Payload  Payload
}

// Kind returns the kind of the payload, or KindInvalid when none is set.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return KindInvalid
	}
	return e.Payload.Kind()
}

// OperationTrace is the top-level trace artifact.
type OperationTrace struct {
	RootPathID      PathID
	RootAssumptions Assumptions
	Events          []Event
}

// Root returns the root path id, falling back to RootPathID.
func (t *OperationTrace) Root() PathID {
	if t == nil || t.RootPathID.IsZero() {
		return RootPathID
	}
	return t.RootPathID
}

// ReferencedPaths returns the path ids an event mentions in its payload, excluding
// the wrapper PathID. Ids that the event creates are included.
func ReferencedPaths(p Payload) []PathID {
	var out []PathID
	add := func(id PathID) {
		if !id.IsZero() {
			out = append(out, id)
		}
	}
	switch v := p.(type) {
	case *PathSplit:
		add(v.ContinuingPathID)
	case *PathMerge:
		add(v.MergingPathID)
		add(v.PathIDAfter)
	case *BranchSwitch:
		add(v.IDSuspended)
		add(v.IDResumed)
	case *SolverPopFrame:
		add(v.PathIDAfter)
	case *Assume:
		add(v.NewPathID)
	case *Check:
		add(v.NewPathID)
	}
	return out
}
