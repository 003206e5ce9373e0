package tracelog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"symtrace/internal/pathstate"
	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/testkit"
	"symtrace/internal/validate"
	"symtrace/internal/wire"
)

func newMemWriter(t *testing.T, opts Options) (*Writer, *MemorySink) {
	t.Helper()
	sink := &MemorySink{}
	w, err := NewWriter(sink, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w, sink
}

func TestAppendAllocatesAndStamps(t *testing.T) {
	w, sink := newMemWriter(t, Options{Producer: "test"})
	ctx := context.Background()
	loc := &schema.ProgramLoc{File: "a.c", Line: 3}
	w.SetLocation(loc)

	split := &schema.PathSplit{SplitCondition: "c"}
	got, err := w.Append(ctx, schema.Event{Payload: split}, "root")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	child := got.Payload.(*schema.PathSplit).ContinuingPathID
	if child != "p1" || got.PathID != "root" {
		t.Fatalf("split = %+v", got)
	}
	if !split.ContinuingPathID.IsZero() {
		t.Error("caller's payload was modified")
	}
	if got.Location == nil || *got.Location != *loc {
		t.Errorf("location = %v", got.Location)
	}

	if _, err := w.Append(ctx, schema.Event{Payload: &schema.SolverPushFrame{}}, ""); err != nil {
		t.Fatalf("push: %v", err)
	}
	pop, err := w.Append(ctx, schema.Event{Payload: &schema.SolverPopFrame{}}, "")
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if after := pop.Payload.(*schema.SolverPopFrame).PathIDAfter; after != child {
		t.Errorf("pop path_id_after = %s, want %s", after, child)
	}
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.PathMerge{MergingPathID: child}}, ""); err != nil {
		t.Fatalf("merge: %v", err)
	}

	tr, err := wire.DecodeStream(sink.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tr.Events) != 4 || tr.RootPathID != "root" {
		t.Fatalf("decoded %d events, root %s", len(tr.Events), tr.RootPathID)
	}
	rep, err := validate.Validate(sink.Bytes(), validate.Options{})
	if err != nil || !rep.Passed() || len(rep.OpenPaths) != 0 {
		t.Fatalf("validate: err=%v report=%+v", err, rep)
	}
}

func TestAllocatorSkipsTakenIDs(t *testing.T) {
	w, _ := newMemWriter(t, Options{})
	ctx := context.Background()
	// The producer names p1 itself; the allocator must not hand it out again.
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.Assume{Predicate: "a", NewPathID: "p1"}}, "root"); err != nil {
		t.Fatal(err)
	}
	got, err := w.Append(ctx, schema.Event{Payload: &schema.Check{Predicate: "b"}}, "root")
	if err != nil {
		t.Fatal(err)
	}
	if id := got.Payload.(*schema.Check).NewPathID; id != "p2" {
		t.Errorf("allocated %s, want p2", id)
	}
}

func TestRejectedAppendLeavesLogUnchanged(t *testing.T) {
	w, sink := newMemWriter(t, Options{})
	ctx := context.Background()
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.CallFunction{FuncName: "f"}}, ""); err != nil {
		t.Fatal(err)
	}
	before := sink.Bytes()

	tests := []schema.Event{
		{PathID: "nope", Payload: &schema.Assertion{Predicate: "x"}},
		{Payload: &schema.SolverPopFrame{}},
		{Payload: &schema.PathMerge{MergingPathID: "root"}},
	}
	for _, ev := range tests {
		_, err := w.Append(ctx, ev, "")
		var v *pathstate.Violation
		if !errors.As(err, &v) {
			t.Fatalf("%s: err = %v, want violation", ev.Kind(), err)
		}
	}
	if !bytes.Equal(before, sink.Bytes()) {
		t.Fatal("rejected appends changed the log")
	}
	if w.Events() != 1 {
		t.Errorf("events = %d, want 1", w.Events())
	}
	// the rejected events did not consume positions in the written log
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.ReturnFromFunction{FuncName: "f"}}, ""); err != nil {
		t.Fatal(err)
	}
	rep, err := validate.Validate(sink.Bytes(), validate.Options{})
	if err != nil || !rep.Passed() || rep.Events != 2 {
		t.Fatalf("validate: err=%v report=%+v", err, rep)
	}
}

type failingSink struct {
	MemorySink
	fail bool
}

func (s *failingSink) WriteFrame(b []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemorySink.WriteFrame(b)
}

func TestSinkFailureDoesNotCommit(t *testing.T) {
	sink := &failingSink{}
	w, err := NewWriter(sink, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	sink.fail = true
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.PathSplit{ContinuingPathID: "p1"}}, ""); err == nil {
		t.Fatal("expected sink error")
	}
	if _, ok := w.Lookup("p1"); ok {
		t.Fatal("failed append reached the path state")
	}
	sink.fail = false
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.PathSplit{ContinuingPathID: "p1"}}, ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestConcurrentAppendsValidate(t *testing.T) {
	var buf bytes.Buffer
	tracer := telemetry.NewStreamTracer(&buf, telemetry.LevelDebug, telemetry.FormatText)
	w, sink := newMemWriter(t, Options{Allocator: UUIDAllocator{}, Tracer: tracer})
	ctx := context.Background()

	const workers, rounds = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				ev, err := w.Append(ctx, schema.Event{Payload: &schema.PathSplit{SplitCondition: "c"}}, "root")
				if err != nil {
					errs <- err
					return
				}
				child := ev.Payload.(*schema.PathSplit).ContinuingPathID
				if _, err := w.Append(ctx, schema.Event{Payload: &schema.Assertion{Predicate: "x"}}, child); err != nil {
					errs <- err
					return
				}
				merge := &schema.PathMerge{MergingPathID: child, PathIDAfter: "root"}
				if _, err := w.Append(ctx, schema.Event{Payload: merge}, child); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	sum, err := testkit.CheckStreamInvariants(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if int(sum.Frames) != workers*rounds*3 {
		t.Fatalf("frames = %d", sum.Frames)
	}
	rep, err := validate.Validate(sink.Bytes(), validate.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Passed() || len(rep.OpenPaths) != 0 || rep.Events != workers*rounds*3 {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(buf.String(), "append") {
		t.Error("no telemetry emitted")
	}
}

func TestCloseAndCancel(t *testing.T) {
	w, _ := newMemWriter(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Append(ctx, schema.Event{Payload: &schema.CallFunction{}}, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(context.Background(), schema.Event{Payload: &schema.CallFunction{}}, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.symt")
	sink, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWriter(sink, Options{Root: "r0", RootAssumptions: schema.NewAssumptions("pre")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(context.Background(), schema.Event{Payload: &schema.Assume{Predicate: "a"}}, ""); err != nil {
		t.Fatal(err)
	}
	size := sink.Size()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != size {
		t.Errorf("file has %d bytes, sink reported %d", len(data), size)
	}
	tr, err := wire.DecodeStream(data)
	if err != nil {
		t.Fatal(err)
	}
	if tr.RootPathID != "r0" || !tr.RootAssumptions.Equal(schema.NewAssumptions("pre")) || len(tr.Events) != 1 {
		t.Fatalf("decoded %+v", tr)
	}
}

func TestOpenFileStartsANewLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.symt")
	for round := range 2 {
		sink, err := OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		w, err := NewWriter(sink, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Append(context.Background(), schema.Event{Payload: &schema.Assertion{Predicate: "x"}}, ""); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := validate.Validate(data, validate.Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rep.Events != 1 || !rep.Passed() {
		t.Fatalf("report = %+v", rep)
	}
}

// halfWriteFile writes only half of every frame after the first limit bytes.
type halfWriteFile struct {
	*os.File
	limit int
}

func (f *halfWriteFile) Write(b []byte) (int, error) {
	if f.limit >= len(b) {
		f.limit -= len(b)
		return f.File.Write(b)
	}
	n, _ := f.File.Write(b[:len(b)/2])
	return n, errors.New("disk full")
}

func TestFileSinkCutsPartialFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.symt")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	header := wire.AppendStreamHeader(nil, wire.Header{RootPathID: schema.RootPathID})
	sink := &FileSink{f: &halfWriteFile{File: f, limit: len(header)}}
	w, err := NewWriter(sink, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Append(context.Background(), schema.Event{Payload: &schema.Assertion{Predicate: "x"}}, ""); err == nil {
		t.Fatal("expected write failure")
	}
	if sink.Size() != int64(len(header)) {
		t.Errorf("size = %d, want %d", sink.Size(), len(header))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, header) {
		t.Fatalf("file holds %d bytes, want the %d header bytes", len(data), len(header))
	}
	rep, err := validate.Validate(data, validate.Options{})
	if err != nil || rep.Events != 0 {
		t.Fatalf("report = %+v, err = %v", rep, err)
	}
}

func TestParseAllocator(t *testing.T) {
	for _, name := range []string{"", "seq", "uuid"} {
		if _, err := ParseAllocator(name); err != nil {
			t.Errorf("ParseAllocator(%q): %v", name, err)
		}
	}
	if _, err := ParseAllocator("random"); err == nil {
		t.Error("expected error for unknown allocator")
	}
}
