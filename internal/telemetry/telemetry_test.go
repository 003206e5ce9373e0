package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"off", LevelOff, true},
		{"INFO", LevelInfo, true},
		{"detail", LevelDetail, true},
		{" debug ", LevelDebug, true},
		{"loud", LevelOff, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)

	Point(tr, ScopeCommand, "cmd", "", nil)
	Point(tr, ScopeFile, "file", "", nil)
	Point(tr, ScopeEvent, "append", "", nil)

	out := buf.String()
	if !strings.Contains(out, "cmd") || !strings.Contains(out, "file") {
		t.Errorf("missing events: %q", out)
	}
	if strings.Contains(out, "append") {
		t.Errorf("event scope leaked at detail level: %q", out)
	}
}

func TestSpanNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)

	span := Begin(tr, ScopeFile, "validate", 0).With("file", "a.symt")
	span.End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"kind":"begin"`) || !strings.Contains(lines[1], `"file":"a.symt"`) {
		t.Errorf("unexpected output: %q", lines)
	}
}

func TestRingWraps(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeEvent, name, "", nil)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatal("expected Nop tracer")
	}
	r := NewRingTracer(4, LevelInfo)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatal("tracer not propagated")
	}
}

func TestHeartbeatStop(t *testing.T) {
	r := NewRingTracer(16, LevelInfo)
	h := StartHeartbeat(r, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	h.Stop()
	h.Stop()
	if len(r.Snapshot()) == 0 {
		t.Fatal("no heartbeats recorded")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatal("heartbeat started for disabled tracer")
	}
}

func TestSpanFromContext(t *testing.T) {
	r := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if SpanFrom(ctx) != 0 {
		t.Fatal("fresh context has a span")
	}

	cmd := Begin(r, ScopeCommand, "validate", 0)
	ctx = WithSpan(ctx, cmd)
	if FromContext(ctx) != Tracer(r) {
		t.Fatal("tracer lost by WithSpan")
	}
	child := Begin(FromContext(ctx), ScopeFile, "file", SpanFrom(ctx))
	child.End("")
	cmd.End("")

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("got %d events, want 4", len(snap))
	}
	if snap[1].ParentID != cmd.ID() || snap[1].SpanID != child.ID() {
		t.Errorf("child begin = %+v, want parent %d", snap[1], cmd.ID())
	}
	if SpanFrom(WithTracer(ctx, r)) != 0 {
		t.Error("WithTracer kept the parent span")
	}
}
