package driver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"symtrace/internal/reportcache"
	"symtrace/internal/schema"
	"symtrace/internal/validate"
	"symtrace/internal/wire"
)

func writeTrace(t *testing.T, dir, name string, events ...schema.Event) string {
	t.Helper()
	data, err := wire.EncodeStream(&schema.OperationTrace{RootPathID: "root", Events: events}, "driver-test")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixture(t *testing.T) (dir, good, bad string) {
	dir = t.TempDir()
	good = writeTrace(t, dir, "good.symt",
		schema.Event{PathID: "root", Payload: &schema.PathSplit{SplitCondition: "c", ContinuingPathID: "p1"}},
		schema.Event{Payload: &schema.PathMerge{MergingPathID: "p1"}},
	)
	bad = writeTrace(t, dir, "bad.symt",
		schema.Event{Payload: &schema.SolverPopFrame{PathIDAfter: "root"}},
	)
	return dir, good, bad
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) final() map[string]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Event)
	for _, ev := range r.events {
		if ev.Status.Finished() {
			out[ev.File] = ev
		}
	}
	return out
}

func TestValidateFiles(t *testing.T) {
	dir, good, bad := fixture(t)
	missing := filepath.Join(dir, "missing.symt")
	rec := &recorder{}

	results, err := ValidateFiles(context.Background(), &Request{
		Files:    []string{good, bad, missing},
		Jobs:     2,
		Progress: rec,
		Timings:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Failed() || results[0].Report.File != good {
		t.Errorf("good: %+v", results[0])
	}
	if !results[1].Failed() || len(results[1].Report.Violations) != 1 {
		t.Errorf("bad: %+v", results[1])
	}
	if results[2].Err == nil || !results[2].Failed() {
		t.Errorf("missing: %+v", results[2])
	}
	if results[0].Timing == nil || len(results[0].Timing.Phases) == 0 {
		t.Error("no timings collected")
	}

	final := rec.final()
	want := map[string]Status{good: StatusPassed, bad: StatusFailed, missing: StatusError}
	for file, status := range want {
		if final[file].Status != status {
			t.Errorf("%s: final status %s, want %s", filepath.Base(file), final[file].Status, status)
		}
	}
}

func TestValidateFilesUsesCache(t *testing.T) {
	_, good, bad := fixture(t)
	cache, err := reportcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	req := &Request{Files: []string{good, bad}, Cache: cache, Options: validate.Options{MaxViolations: 10}}

	first, err := ValidateFiles(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ValidateFiles(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for i := range second {
		if first[i].Cached || !second[i].Cached {
			t.Errorf("%s: cached first=%v second=%v", second[i].Path, first[i].Cached, second[i].Cached)
		}
		if first[i].Failed() != second[i].Failed() {
			t.Errorf("%s: cached verdict differs", second[i].Path)
		}
	}
}

func TestValidateFilesCancelled(t *testing.T) {
	_, good, bad := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ValidateFiles(ctx, &Request{Files: []string{good, bad}}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestListTraceFiles(t *testing.T) {
	dir, good, bad := fixture(t)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	hidden := filepath.Join(dir, ".cache")
	if err := os.Mkdir(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTrace(t, hidden, "skip.symt")

	files, err := ListTraceFiles([]string{dir, good}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != bad || files[1] != good {
		t.Fatalf("files = %v", files)
	}
	if _, err := ListTraceFiles([]string{filepath.Join(dir, "nope")}, nil); err == nil {
		t.Error("expected error for missing path")
	}
}
