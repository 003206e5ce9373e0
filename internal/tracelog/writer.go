package tracelog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"symtrace/internal/pathstate"
	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/wire"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("trace log is closed")

// maxAllocAttempts bounds the search for an unused id.
const maxAllocAttempts = 1 << 16

// Options configures a Writer.
type Options struct {
	Root            schema.PathID // schema.RootPathID if empty
	RootAssumptions schema.Assumptions
	Allocator       Allocator // sequential "p1, p2, ..." if nil
	Producer        string    // recorded in the stream header
	Tracer          telemetry.Tracer
}

// Writer is an append-only trace log. All methods are goroutine-safe; appends
// are totally ordered by one lock.
type Writer struct {
	mu      sync.Mutex
	sink    Sink
	tracker *pathstate.Tracker
	alloc   Allocator
	tracer  telemetry.Tracer
	loc     *schema.ProgramLoc
	buf     []byte
	events  int
	closed  bool
}

// NewWriter writes the stream header to sink and returns a Writer positioned at
// event 0.
func NewWriter(sink Sink, opts Options) (*Writer, error) {
	root := opts.Root
	if root.IsZero() {
		root = schema.RootPathID
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = NewSeqAllocator("p")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Nop
	}
	w := &Writer{
		sink:    sink,
		tracker: pathstate.New(root, opts.RootAssumptions),
		alloc:   alloc,
		tracer:  tracer,
	}
	header := wire.AppendStreamHeader(nil, wire.Header{
		RootPathID:      root,
		RootAssumptions: opts.RootAssumptions,
		Producer:        opts.Producer,
	})
	if err := sink.WriteFrame(header); err != nil {
		return nil, fmt.Errorf("write stream header: %w", err)
	}
	telemetry.Point(tracer, telemetry.ScopeFile, "log.open", string(root), map[string]string{
		"producer": opts.Producer,
	})
	return w, nil
}

// SetLocation sets the location stamped on subsequent events that carry none.
// A nil loc stops stamping.
func (w *Writer) SetLocation(loc *schema.ProgramLoc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if loc == nil {
		w.loc = nil
		return
	}
	cp := *loc
	w.loc = &cp
}

// Append completes partial, checks it against the path state and writes it.
//
// current names the path the event applies to; empty means the log's focus
// path. Empty new-path ids of PathSplit, Assume and Check are allocated; an
// empty SolverPopFrame.PathIDAfter continues the context path. The returned
// event is exactly what was written. On error (a *pathstate.Violation, an
// encoding or a sink failure) nothing is written and the path state is
// unchanged.
func (w *Writer) Append(ctx context.Context, partial schema.Event, current schema.PathID) (schema.Event, error) {
	if err := ctx.Err(); err != nil {
		return schema.Event{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return schema.Event{}, ErrClosed
	}

	ev, err := w.complete(partial, current)
	if err != nil {
		return schema.Event{}, err
	}
	if err := w.tracker.Check(ev); err != nil {
		w.note("append.reject", ev, err.Error())
		return schema.Event{}, err
	}

	w.buf, err = wire.AppendFrame(w.buf[:0], ev)
	if err != nil {
		return schema.Event{}, fmt.Errorf("encode event %d: %w", w.events, err)
	}
	if err := w.sink.WriteFrame(w.buf); err != nil {
		return schema.Event{}, fmt.Errorf("write event %d: %w", w.events, err)
	}
	if err := w.tracker.Apply(ev); err != nil {
		// Check accepted the same event against the same state.
		panic(fmt.Sprintf("tracelog: committed event rejected: %v", err))
	}
	w.events++
	w.note("append", ev, "")
	return ev, nil
}

// complete fills in everything the writer owns: the path, location and any
// path ids the producer left empty. The payload is copied first.
func (w *Writer) complete(partial schema.Event, current schema.PathID) (schema.Event, error) {
	ev := partial
	if ev.PathID.IsZero() {
		ev.PathID = current
	}
	if ev.Location == nil && w.loc != nil {
		loc := *w.loc
		ev.Location = &loc
	}

	var err error
	switch p := partial.Payload.(type) {
	case *schema.PathSplit:
		cp := *p
		if cp.ContinuingPathID.IsZero() {
			cp.ContinuingPathID, err = w.fresh()
		}
		ev.Payload = &cp
	case *schema.Assume:
		cp := *p
		if cp.NewPathID.IsZero() {
			cp.NewPathID, err = w.fresh()
		}
		ev.Payload = &cp
	case *schema.Check:
		cp := *p
		if cp.NewPathID.IsZero() {
			cp.NewPathID, err = w.fresh()
		}
		ev.Payload = &cp
	case *schema.SolverPopFrame:
		cp := *p
		if cp.PathIDAfter.IsZero() {
			cp.PathIDAfter = ev.PathID
			if cp.PathIDAfter.IsZero() {
				cp.PathIDAfter = w.tracker.Focus()
			}
		}
		ev.Payload = &cp
	case nil:
		return schema.Event{}, fmt.Errorf("event %d: missing payload", w.events)
	}
	return ev, err
}

// fresh asks the allocator for ids until one is unused.
func (w *Writer) fresh() (schema.PathID, error) {
	for range maxAllocAttempts {
		id := w.alloc.Next()
		if id.IsZero() {
			continue
		}
		if _, taken := w.tracker.Lookup(id); !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("path id allocator produced no unused id in %d attempts", maxAllocAttempts)
}

func (w *Writer) note(name string, ev schema.Event, detail string) {
	if !w.tracer.Enabled() || !w.tracer.Level().ShouldEmit(telemetry.ScopeEvent) {
		return
	}
	telemetry.Point(w.tracer, telemetry.ScopeEvent, name, detail, map[string]string{
		"kind":  ev.Kind().String(),
		"path":  string(ev.PathID),
		"index": strconv.Itoa(w.events),
	})
}

// Events returns the number of events written.
func (w *Writer) Events() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// Focus returns the path untagged events currently apply to.
func (w *Writer) Focus() schema.PathID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Focus()
}

// Live returns the ids of the live paths.
func (w *Writer) Live() []schema.PathID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Live()
}

// FrameDepth returns the number of open solver frames.
func (w *Writer) FrameDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.FrameDepth()
}

// Lookup returns the writer's view of path id.
func (w *Writer) Lookup(id schema.PathID) (pathstate.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Lookup(id)
}

// Close closes the sink. Further appends fail with ErrClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	telemetry.Point(w.tracer, telemetry.ScopeFile, "log.close", "", map[string]string{
		"events": strconv.Itoa(w.events),
		"open":   strconv.Itoa(len(w.tracker.OpenPaths())),
	})
	return w.sink.Close()
}
