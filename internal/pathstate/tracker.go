package pathstate

import (
	"fmt"

	"symtrace/internal/schema"
)

// Stats summarizes what a tracker has seen.
type Stats struct {
	Events            map[string]int // committed events per kind name
	Rejected          int
	PathsCreated      int // excluding the root
	MaxFrameDepth     int
	MaxCallDepth      int
	SymbolicVariables int
}

// Tracker replays trace events and maintains the path tree.
//
// Paths live in an arena (records, indexed by id); parent links are ids, so merge
// and abort only flip the status of one entry. A Tracker is not safe for
// concurrent use: every replay owns its own instance.
type Tracker struct {
	index   map[schema.PathID]int
	records []Record
	frames  []frame
	focus   schema.PathID
	root    schema.PathID
	pos     int
	depth   int
	stats   Stats
}

// New returns a tracker whose only live path is root, holding rootAssumptions.
func New(root schema.PathID, rootAssumptions schema.Assumptions) *Tracker {
	if root.IsZero() {
		root = schema.RootPathID
	}
	t := &Tracker{
		index: make(map[schema.PathID]int),
		root:  root,
		focus: root,
		stats: Stats{Events: make(map[string]int)},
	}
	t.add(Record{ID: root, Assumptions: rootAssumptions, Born: -1, Ended: -1})
	return t
}

// Apply validates ev against the current state and commits it. A rejected event
// leaves the state untouched and returns a *Violation; the position advances
// either way.
func (t *Tracker) Apply(ev schema.Event) error {
	pos := t.pos
	t.pos++
	commit, err := t.prepare(ev, pos)
	if err != nil {
		t.stats.Rejected++
		return err
	}
	commit()
	t.stats.Events[ev.Kind().String()]++
	return nil
}

// Check reports whether ev would be accepted at the current position without
// changing any state.
func (t *Tracker) Check(ev schema.Event) error {
	_, err := t.prepare(ev, t.pos)
	return err
}

// prepare validates ev and returns the function that applies it.
func (t *Tracker) prepare(ev schema.Event, pos int) (func(), error) {
	vf := violationAt(pos, ev.Kind())

	switch p := ev.Payload.(type) {
	case *schema.Assertion, *schema.NewSymbolicVariable, *schema.CallFunction, *schema.ReturnFromFunction:
		ctx, v := t.context(ev, vf)
		if v != nil {
			return nil, v
		}
		return func() {
			t.moveFocus(ctx)
			switch p := p.(type) {
			case *schema.NewSymbolicVariable:
				t.stats.SymbolicVariables++
			case *schema.CallFunction:
				if !p.IsTailCall {
					t.depth++
				}
				t.stats.MaxCallDepth = max(t.stats.MaxCallDepth, t.depth)
			case *schema.ReturnFromFunction:
				if t.depth > 0 {
					t.depth--
				}
			}
		}, nil

	case *schema.PathSplit:
		ctx, v := t.context(ev, vf)
		if v != nil {
			return nil, v
		}
		if v := t.fresh(p.ContinuingPathID, "continuing_path_id", vf); v != nil {
			return nil, v
		}
		return func() {
			t.derive(p.ContinuingPathID, ctx, t.get(ctx).Assumptions.With(p.SplitCondition), pos)
			t.moveFocus(p.ContinuingPathID)
		}, nil

	case *schema.Assume:
		return t.refine(ev, p.Predicate, p.NewPathID, pos, vf)

	case *schema.Check:
		return t.refine(ev, p.Predicate, p.NewPathID, pos, vf)

	case *schema.PathMerge:
		return t.merge(ev, p, pos, vf)

	case *schema.BranchSwitch:
		return t.branchSwitch(ev, p, vf)

	case *schema.BranchAbort:
		ctx, v := t.context(ev, vf)
		if v != nil {
			return nil, v
		}
		return func() {
			rec := t.get(ctx)
			rec.Status = Aborted
			rec.Ended = pos
			rec.Suspended = false
			if !p.AbortedAssumptions.IsEmpty() {
				rec.Assumptions = p.AbortedAssumptions
			}
			if ctx != t.focus {
				return
			}
			t.focus = t.liveAncestor(ctx)
			if !t.focus.IsZero() {
				t.get(t.focus).Suspended = false
			}
		}, nil

	case *schema.SolverPushFrame:
		ctx, v := t.context(ev, vf)
		if v != nil {
			return nil, v
		}
		return func() {
			t.moveFocus(ctx)
			t.frames = append(t.frames, frame{path: ctx, assumptions: t.get(ctx).Assumptions, position: pos})
			t.stats.MaxFrameDepth = max(t.stats.MaxFrameDepth, len(t.frames))
		}, nil

	case *schema.SolverPopFrame:
		return t.popFrame(ev, p, pos, vf)
	}
	return nil, fmt.Errorf("event %d: unsupported payload %T", pos, ev.Payload)
}

// refine handles Assume and Check: a new path derived from the context by one predicate.
func (t *Tracker) refine(ev schema.Event, pred schema.ExpressionID, newID schema.PathID, pos int, vf violationFunc) (func(), error) {
	ctx, v := t.context(ev, vf)
	if v != nil {
		return nil, v
	}
	if v := t.fresh(newID, "new_path_id", vf); v != nil {
		return nil, v
	}
	return func() {
		t.derive(newID, ctx, t.get(ctx).Assumptions.With(pred), pos)
		t.moveFocus(newID)
	}, nil
}

func (t *Tracker) merge(ev schema.Event, p *schema.PathMerge, pos int, vf violationFunc) (func(), error) {
	ctx, v := t.context(ev, vf)
	if v != nil {
		return nil, v
	}
	if v := t.live(p.MergingPathID, "merging_path_id", vf); v != nil {
		return nil, v
	}
	merging := t.get(p.MergingPathID)

	continuing := p.PathIDAfter
	if continuing.IsZero() {
		continuing = ctx
		if continuing == p.MergingPathID {
			continuing = merging.Parent
		}
	}
	if continuing.IsZero() {
		return nil, vf(ReferenceToUnknownPath, p.MergingPathID, "merge has no continuing path")
	}
	if v := t.live(continuing, "path_id_after", vf); v != nil {
		return nil, v
	}

	target := t.get(continuing)
	merged := mergedAssumptions(target.Assumptions, merging.Assumptions, p)

	return func() {
		// merging into itself folds the supplied sets in and keeps the path live
		if continuing != p.MergingPathID {
			m := t.get(p.MergingPathID)
			m.Status = Merged
			m.Ended = pos
			m.Suspended = false
		}
		t.get(continuing).Assumptions = merged
		t.moveFocus(continuing)
	}, nil
}

// mergedAssumptions computes the continuing path's set after a merge.
//
// Unconditional merges union the tracked sets of both paths with whatever the
// event supplies. A conditional merge only makes the branch facts hold under the
// condition, so when the engine supplies per-branch sets those override the
// tracked ones.
func mergedAssumptions(target, merging schema.Assumptions, p *schema.PathMerge) schema.Assumptions {
	if p.MergeCondition != nil && (!p.PathAssumptions.IsEmpty() || !p.OtherAssumptions.IsEmpty()) {
		return p.PathAssumptions.Union(p.OtherAssumptions)
	}
	return target.Union(merging, p.PathAssumptions, p.OtherAssumptions)
}

func (t *Tracker) branchSwitch(ev schema.Event, p *schema.BranchSwitch, vf violationFunc) (func(), error) {
	if v := t.live(p.IDSuspended, "id_suspended", vf); v != nil {
		return nil, v
	}
	if v := t.live(p.IDResumed, "id_resumed", vf); v != nil {
		return nil, v
	}
	active := t.focus
	if !ev.PathID.IsZero() {
		if v := t.live(ev.PathID, "path_id", vf); v != nil {
			return nil, v
		}
		active = ev.PathID
	}
	if p.IDSuspended != active {
		return nil, vf(UnbalancedBranchSwitch, p.IDSuspended,
			fmt.Sprintf("suspended path does not hold focus (focus is %s)", active))
	}
	if p.IDResumed == p.IDSuspended {
		return nil, vf(UnbalancedBranchSwitch, p.IDResumed, "path resumes itself")
	}
	resumed := t.get(p.IDResumed)
	if !resumed.Suspended && p.IDResumed != t.root {
		return nil, vf(UnbalancedBranchSwitch, p.IDResumed, "resumed path was never suspended")
	}
	return func() {
		s := t.get(p.IDSuspended)
		s.Suspended = true
		if !p.SuspendedAssumptions.IsEmpty() {
			s.Assumptions = p.SuspendedAssumptions
		}
		t.focus = p.IDResumed
		t.get(p.IDResumed).Suspended = false
	}, nil
}

func (t *Tracker) popFrame(ev schema.Event, p *schema.SolverPopFrame, pos int, vf violationFunc) (func(), error) {
	if len(t.frames) == 0 {
		return nil, vf(UnbalancedSolverFrame, ev.PathID, "pop with no open solver frame")
	}
	ctx, v := t.context(ev, vf)
	if v != nil {
		return nil, v
	}
	after := p.PathIDAfter
	if after.IsZero() {
		after = ctx
	}
	_, known := t.index[after]
	if known {
		if v := t.live(after, "path_id_after", vf); v != nil {
			return nil, v
		}
	}
	top := t.frames[len(t.frames)-1]

	return func() {
		t.frames = t.frames[:len(t.frames)-1]
		if known {
			t.get(after).Assumptions = top.assumptions
			t.moveFocus(after)
			return
		}
		t.derive(after, ctx, top.assumptions, pos)
		old := t.get(ctx)
		old.Status = Superseded
		old.Ended = pos
		old.Suspended = false
		t.focus = after
	}, nil
}

// context resolves the path an event applies to: its explicit PathID, or the focus.
func (t *Tracker) context(ev schema.Event, vf violationFunc) (schema.PathID, *Violation) {
	id := ev.PathID
	if id.IsZero() {
		id = t.focus
		if id.IsZero() {
			return "", vf(ReferenceToUnknownPath, "", "event names no path and no path holds focus")
		}
	}
	return id, t.live(id, "path_id", vf)
}

// live checks that id names an existing, live path.
func (t *Tracker) live(id schema.PathID, role string, vf violationFunc) *Violation {
	i, ok := t.index[id]
	if !ok {
		return vf(ReferenceToUnknownPath, id, role+" was never created")
	}
	if rec := &t.records[i]; !rec.IsLive() {
		return vf(ReferenceToDeadPath, id, fmt.Sprintf("%s is %s since event %d", role, rec.Status, rec.Ended))
	}
	return nil
}

// fresh checks that id can be created.
func (t *Tracker) fresh(id schema.PathID, role string, vf violationFunc) *Violation {
	if id.IsZero() {
		return vf(ReferenceToUnknownPath, id, role+" is empty")
	}
	if i, ok := t.index[id]; ok {
		born := t.records[i].Born
		return vf(DuplicatePathID, id, fmt.Sprintf("%s already created at event %d", role, born))
	}
	return nil
}

func (t *Tracker) add(rec Record) {
	t.index[rec.ID] = len(t.records)
	t.records = append(t.records, rec)
}

func (t *Tracker) derive(id, parent schema.PathID, a schema.Assumptions, pos int) {
	t.add(Record{ID: id, Assumptions: a, Parent: parent, Born: pos, Ended: -1})
	t.stats.PathsCreated++
}

// get returns the arena entry for a known id. Callers validate ids first.
func (t *Tracker) get(id schema.PathID) *Record {
	return &t.records[t.index[id]]
}

// moveFocus gives id the focus, suspending the path that held it.
func (t *Tracker) moveFocus(id schema.PathID) {
	if t.focus == id {
		return
	}
	if i, ok := t.index[t.focus]; ok && t.records[i].IsLive() {
		t.records[i].Suspended = true
	}
	t.focus = id
	t.get(id).Suspended = false
}

// liveAncestor walks parent links from id to the nearest live path.
func (t *Tracker) liveAncestor(id schema.PathID) schema.PathID {
	for cur := t.get(id).Parent; !cur.IsZero(); {
		rec := t.get(cur)
		if rec.IsLive() {
			return cur
		}
		cur = rec.Parent
	}
	return ""
}

type violationFunc func(kind ViolationKind, id schema.PathID, detail string) *Violation

func violationAt(pos int, kind schema.Kind) violationFunc {
	return func(vk ViolationKind, id schema.PathID, detail string) *Violation {
		return &Violation{Kind: vk, Path: id, Position: pos, Event: kind, Detail: detail}
	}
}
