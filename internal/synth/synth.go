// Package synth produces structurally valid traces from a seeded pseudo-random
// stand-in for a symbolic execution engine. Every event goes through a
// tracelog.Writer, so a generated log exercises the same allocation and
// validation as a real producer.
package synth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/tracelog"
)

const (
	defaultSteps = 64
	maxLive      = 12
	maxFrames    = 8
	maxCalls     = 16
)

var funcNames = []string{"main", "parse", "check_bounds", "lookup", "update", "hash", "copy_buf"}

// Options controls a generation run.
type Options struct {
	Seed uint64
	// Steps is the number of random events before the closing sequence.
	Steps     int
	Allocator tracelog.Allocator
	Root      schema.PathID
	Producer  string
	Tracer    telemetry.Tracer
}

// Result summarizes a generated trace.
type Result struct {
	Seed   uint64
	Root   schema.PathID
	Events int
	// Closing is the number of events spent resolving open paths, frames and calls.
	Closing int
}

type action uint8

const (
	actAssert action = iota
	actNewVar
	actCall
	actReturn
	actSplit
	actAssume
	actCheck
	actMerge
	actAbort
	actSwitch
	actPush
	actPop
	actReassign
)

type weighted struct {
	act    action
	weight int
}

type generator struct {
	ctx      context.Context
	rng      *rand.Rand
	w        *tracelog.Writer
	root     schema.PathID
	reassign *tracelog.SeqAllocator
	exprs    int
	calls    []string
	line     uint32
}

// Generate writes a complete trace to sink. The same seed and steps yield the
// same event sequence when the allocator is deterministic. The sink is closed
// when Generate returns.
func Generate(ctx context.Context, sink tracelog.Sink, opts Options) (Result, error) {
	steps := opts.Steps
	if steps <= 0 {
		steps = defaultSteps
	}
	root := opts.Root
	if root.IsZero() {
		root = schema.RootPathID
	}
	producer := opts.Producer
	if producer == "" {
		producer = "symtrace-synth"
	}
	w, err := tracelog.NewWriter(sink, tracelog.Options{
		Root:      root,
		Allocator: opts.Allocator,
		Producer:  producer,
		Tracer:    opts.Tracer,
	})
	if err != nil {
		return Result{}, err
	}

	span := telemetry.Begin(opts.Tracer, telemetry.ScopeFile, "synth", telemetry.SpanFrom(ctx))
	span.With("seed", strconv.FormatUint(opts.Seed, 10))

	g := &generator{
		ctx:      ctx,
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		w:        w,
		root:     root,
		reassign: tracelog.NewSeqAllocator("r"),
	}
	res := Result{Seed: opts.Seed, Root: root}
	for range steps {
		if err := g.step(); err != nil {
			_ = w.Close()
			span.End(err.Error())
			return res, err
		}
	}
	before := w.Events()
	if err := g.close(); err != nil {
		_ = w.Close()
		span.End(err.Error())
		return res, err
	}
	res.Events = w.Events()
	res.Closing = res.Events - before
	span.With("events", strconv.Itoa(res.Events))
	span.End("")
	return res, w.Close()
}

func (g *generator) append(ev schema.Event) (schema.Event, error) {
	g.line += 1 + g.rng.Uint32N(4)
	g.w.SetLocation(&schema.ProgramLoc{Function: g.function(), File: "synth.c", Line: g.line, Col: 1 + g.rng.Uint32N(40)})
	out, err := g.w.Append(g.ctx, ev, "")
	if err != nil {
		return out, fmt.Errorf("synth: %s: %w", ev.Kind(), err)
	}
	return out, nil
}

func (g *generator) function() string {
	if len(g.calls) == 0 {
		return "main"
	}
	return g.calls[len(g.calls)-1]
}

func (g *generator) expr() schema.ExpressionID {
	g.exprs++
	return schema.ExpressionID("e" + strconv.Itoa(g.exprs))
}

func (g *generator) step() error {
	choices := g.choices()
	total := 0
	for _, c := range choices {
		total += c.weight
	}
	n := g.rng.IntN(total)
	for _, c := range choices {
		if n < c.weight {
			return g.do(c.act)
		}
		n -= c.weight
	}
	return nil
}

// choices lists the actions that are legal in the current state.
func (g *generator) choices() []weighted {
	focus := g.w.Focus()
	live := g.w.Live()
	out := []weighted{{actAssert, 3}, {actNewVar, 2}}
	if len(g.calls) < maxCalls {
		out = append(out, weighted{actCall, 2})
	}
	if len(g.calls) > 0 {
		out = append(out, weighted{actReturn, 2})
	}
	if len(live) < maxLive {
		out = append(out, weighted{actSplit, 3}, weighted{actAssume, 1}, weighted{actCheck, 1})
	}
	if focus != g.root {
		out = append(out, weighted{actMerge, 3}, weighted{actAbort, 1})
	}
	if g.switchTarget(focus, live) != "" {
		out = append(out, weighted{actSwitch, 2})
	}
	if g.w.FrameDepth() < maxFrames {
		out = append(out, weighted{actPush, 2})
	}
	if g.w.FrameDepth() > 0 {
		out = append(out, weighted{actPop, 2})
		if focus != g.root {
			out = append(out, weighted{actReassign, 1})
		}
	}
	return out
}

func (g *generator) do(act action) error {
	var err error
	switch act {
	case actAssert:
		_, err = g.append(schema.Event{Payload: &schema.Assertion{Predicate: g.expr(), Message: "synthetic obligation"}})
	case actNewVar:
		e := g.expr()
		_, err = g.append(schema.Event{Payload: &schema.NewSymbolicVariable{
			Name:       "v" + string(e),
			Expression: schema.TypedExpression{ID: e, Type: "bv32"},
		}})
	case actCall:
		name := funcNames[g.rng.IntN(len(funcNames))]
		tail := len(g.calls) > 0 && g.rng.IntN(5) == 0
		if _, err = g.append(schema.Event{Payload: &schema.CallFunction{FuncName: name, IsTailCall: tail}}); err == nil {
			if tail {
				g.calls[len(g.calls)-1] = name
			} else {
				g.calls = append(g.calls, name)
			}
		}
	case actReturn:
		err = g.ret()
	case actSplit:
		_, err = g.append(schema.Event{Payload: &schema.PathSplit{SplitCondition: g.expr()}})
	case actAssume:
		_, err = g.append(schema.Event{Payload: &schema.Assume{Predicate: g.expr()}})
	case actCheck:
		_, err = g.append(schema.Event{Payload: &schema.Check{Predicate: g.expr()}})
	case actMerge:
		err = g.merge(g.w.Focus(), g.rng.IntN(3) == 0)
	case actAbort:
		err = g.abort(g.w.Focus())
	case actSwitch:
		focus := g.w.Focus()
		target := g.switchTarget(focus, g.w.Live())
		_, err = g.append(schema.Event{Payload: &schema.BranchSwitch{
			IDSuspended:     focus,
			IDResumed:       target,
			BranchCondition: g.expr(),
		}})
	case actPush:
		_, err = g.append(schema.Event{Payload: &schema.SolverPushFrame{}})
	case actPop:
		_, err = g.append(schema.Event{Payload: &schema.SolverPopFrame{}})
	case actReassign:
		_, err = g.append(schema.Event{Payload: &schema.SolverPopFrame{PathIDAfter: g.freshReassign()}})
	}
	return err
}

func (g *generator) ret() error {
	name := g.calls[len(g.calls)-1]
	if _, err := g.append(schema.Event{Payload: &schema.ReturnFromFunction{FuncName: name}}); err != nil {
		return err
	}
	g.calls = g.calls[:len(g.calls)-1]
	return nil
}

// freshReassign returns an id no path has used.
func (g *generator) freshReassign() schema.PathID {
	for {
		id := g.reassign.Next()
		if _, taken := g.w.Lookup(id); !taken {
			return id
		}
	}
}

// switchTarget picks a suspended live path other than focus, or the root.
func (g *generator) switchTarget(focus schema.PathID, live []schema.PathID) schema.PathID {
	var cands []schema.PathID
	for _, id := range live {
		if id == focus {
			continue
		}
		if rec, ok := g.w.Lookup(id); ok && (rec.Suspended || id == g.root) {
			cands = append(cands, id)
		}
	}
	if len(cands) == 0 || focus.IsZero() {
		return ""
	}
	return cands[g.rng.IntN(len(cands))]
}

// liveAncestor is the nearest live ancestor of id, or zero.
func (g *generator) liveAncestor(id schema.PathID) schema.PathID {
	rec, ok := g.w.Lookup(id)
	for ok && !rec.Parent.IsZero() {
		rec, ok = g.w.Lookup(rec.Parent)
		if ok && rec.IsLive() {
			return rec.ID
		}
	}
	return ""
}

func (g *generator) merge(id schema.PathID, conditional bool) error {
	target := g.liveAncestor(id)
	if target.IsZero() {
		return g.abort(id)
	}
	m := &schema.PathMerge{MergingPathID: id, PathIDAfter: target}
	if conditional {
		cond := g.expr()
		m.MergeCondition = &cond
		m.PathAssumptions = schema.NewAssumptions(cond)
		m.OtherAssumptions = schema.NewAssumptions(g.expr())
	}
	_, err := g.append(schema.Event{PathID: id, Payload: m})
	return err
}

func (g *generator) abort(id schema.PathID) error {
	_, err := g.append(schema.Event{PathID: id, Payload: &schema.BranchAbort{
		AbortResult: schema.AbortedResult{Code: int64(1 + g.rng.IntN(3)), Message: "infeasible"},
	}})
	return err
}

// close unwinds calls and frames and resolves every path but the root, so the
// trace ends balanced with no open paths.
func (g *generator) close() error {
	for len(g.calls) > 0 {
		if err := g.ret(); err != nil {
			return err
		}
	}
	for g.w.FrameDepth() > 0 {
		if _, err := g.append(schema.Event{Payload: &schema.SolverPopFrame{}}); err != nil {
			return err
		}
	}
	live := g.w.Live()
	for i := len(live) - 1; i >= 0; i-- {
		id := live[i]
		if id == g.root {
			continue
		}
		if rec, ok := g.w.Lookup(id); !ok || !rec.IsLive() {
			continue
		}
		if err := g.merge(id, false); err != nil {
			return err
		}
	}
	return nil
}
