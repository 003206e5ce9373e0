package pathstate

import "symtrace/internal/schema"

// Status is the lifecycle state of a path.
type Status uint8

const (
	Live Status = iota
	Merged
	Aborted
	// Superseded marks a path whose id was reassigned by SolverPopFrame.
	Superseded
)

func (s Status) String() string {
	switch s {
	case Live:
		return "live"
	case Merged:
		return "merged"
	case Aborted:
		return "aborted"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Record is the arena entry for one path.
type Record struct {
	ID          schema.PathID
	Status      Status
	Assumptions schema.Assumptions
	Parent      schema.PathID // zero for the root
	Born        int           // position of the creating event, -1 for the root
	Ended       int           // position of the terminating event, -1 while live
	Suspended   bool
}

// IsLive reports whether the path can still be referenced.
func (r *Record) IsLive() bool { return r.Status == Live }

// frame is one open solver scope.
type frame struct {
	path        schema.PathID
	assumptions schema.Assumptions
	position    int
}
