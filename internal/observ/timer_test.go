package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("read")
	tm.End(idx, "3 files")
	if err := tm.Track("validate", func() error { return errors.New("boom") }); err == nil {
		t.Fatal("Track swallowed the error")
	}
	tm.End(42, "ignored")

	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("phases = %+v", rep.Phases)
	}
	if rep.Phases[0].Note != "3 files" || rep.Phases[1].Note != "failed" {
		t.Errorf("notes = %q, %q", rep.Phases[0].Note, rep.Phases[1].Note)
	}
	if rep.TotalMS < rep.Phases[0].DurationMS {
		t.Errorf("total %.3f < phase %.3f", rep.TotalMS, rep.Phases[0].DurationMS)
	}

	sum := tm.Summary()
	for _, want := range []string{"timings:", "read", "validate", "// failed", "total"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary missing %q:\n%s", want, sum)
		}
	}
}

func TestTimerMerge(t *testing.T) {
	tm := NewTimer()
	tm.Merge("a.symt/", Report{Phases: []PhaseReport{{Name: "decode", DurationMS: 2}}})
	rep := tm.Report()
	if len(rep.Phases) != 1 || rep.Phases[0].Name != "a.symt/decode" || rep.Phases[0].DurationMS != 2 {
		t.Fatalf("merged = %+v", rep)
	}
}

func TestEmptyTimer(t *testing.T) {
	if rep := NewTimer().Report(); rep.TotalMS != 0 || rep.Phases != nil {
		t.Fatalf("empty report = %+v", rep)
	}
}
