package validate

import (
	"fmt"

	"symtrace/internal/diag"
	"symtrace/internal/pathstate"
	"symtrace/internal/schema"
	"symtrace/internal/wire"
)

// OpenPath is a path still live when the trace ended. Open paths are reported
// for inspection; they are not violations.
type OpenPath struct {
	ID          schema.PathID
	Parent      schema.PathID
	Born        int
	Suspended   bool
	Assumptions []schema.ExpressionID
}

// Stats extends the tracker counters with the end-of-trace frame depth.
type Stats struct {
	pathstate.Stats
	FinalFrameDepth int
}

// Report is the outcome of validating one trace.
type Report struct {
	File       string
	Form       wire.Form
	Root       schema.PathID
	Producer   string // stream header only
	Events     int    // events decoded and replayed
	Violations []*pathstate.Violation
	// Truncated is set when violations were dropped because of MaxViolations.
	Truncated bool
	// Stopped is set when FailFast ended the replay early.
	Stopped   bool
	OpenPaths []OpenPath
	Stats     Stats
	// Decode is the decode failure that ended the replay, if any.
	Decode *wire.DecodeError
}

// Passed reports whether the trace decoded completely with no violations.
func (r *Report) Passed() bool {
	return r != nil && r.Decode == nil && len(r.Violations) == 0 && !r.Truncated
}

func openPathsOf(tr *pathstate.Tracker) []OpenPath {
	recs := tr.OpenPaths()
	if len(recs) == 0 {
		return nil
	}
	out := make([]OpenPath, 0, len(recs))
	for _, rec := range recs {
		out = append(out, OpenPath{
			ID:          rec.ID,
			Parent:      rec.Parent,
			Born:        rec.Born,
			Suspended:   rec.Suspended,
			Assumptions: rec.Assumptions.Items(),
		})
	}
	return out
}

// Diagnostics converts the report into diagnostics: violations and decode
// failures are errors, open paths and open solver frames are warnings.
func (r *Report) Diagnostics() *diag.Bag {
	bag := diag.NewBag(0)
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})

	for _, v := range r.Violations {
		diag.ReportError(rep, violationCode(v.Kind), diag.AtEvent(r.File, v.Position, v.Path),
			fmt.Sprintf("%s: %s", v.Event, v.Detail)).Emit()
	}
	if r.Truncated {
		diag.ReportError(rep, diag.ShpViolationLimit, r.wholeTrace(),
			fmt.Sprintf("more violations not reported after the first %d", len(r.Violations))).Emit()
	}
	if r.Stopped {
		diag.ReportInfo(rep, diag.ShpStopped, r.wholeTrace(),
			fmt.Sprintf("replay stopped after %d events", r.Events)).Emit()
	}
	if r.Decode != nil {
		code := diag.DecMalformed
		if r.Decode.Truncated {
			code = diag.DecTruncated
		}
		loc := diag.Location{File: r.File, Event: r.Events, Offset: r.Decode.Offset}
		diag.ReportError(rep, code, loc, r.Decode.Reason).Emit()
	}
	for _, p := range r.OpenPaths {
		b := diag.ReportWarning(rep, diag.ShpOpenPath, diag.Location{File: r.File, Event: -1, Offset: -1, Path: p.ID},
			fmt.Sprintf("path %s is still live at the end of the trace", p.ID))
		if p.Born >= 0 {
			b.WithNote(diag.AtEvent(r.File, p.Born, p.ID), fmt.Sprintf("created here from %s", p.Parent))
		}
		b.Emit()
	}
	if r.Stats.FinalFrameDepth > 0 {
		diag.ReportWarning(rep, diag.ShpOpenFrames, r.wholeTrace(),
			fmt.Sprintf("%d solver frame(s) still open", r.Stats.FinalFrameDepth)).Emit()
	}
	bag.Sort()
	return bag
}

func (r *Report) wholeTrace() diag.Location {
	loc := diag.NoLocation
	loc.File = r.File
	return loc
}

func violationCode(k pathstate.ViolationKind) diag.Code {
	switch k {
	case pathstate.ReferenceToUnknownPath:
		return diag.TrcUnknownPath
	case pathstate.ReferenceToDeadPath:
		return diag.TrcDeadPath
	case pathstate.UnbalancedSolverFrame:
		return diag.TrcUnbalancedSolverFrame
	case pathstate.UnbalancedBranchSwitch:
		return diag.TrcUnbalancedSwitch
	case pathstate.DuplicatePathID:
		return diag.TrcDuplicatePathID
	default:
		return diag.UnknownCode
	}
}
