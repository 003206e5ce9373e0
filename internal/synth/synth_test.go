package synth

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"symtrace/internal/testkit"
	"symtrace/internal/tracelog"
	"symtrace/internal/validate"
)

func generate(t *testing.T, opts Options) ([]byte, Result) {
	t.Helper()
	sink := &tracelog.MemorySink{}
	res, err := Generate(context.Background(), sink, opts)
	if err != nil {
		t.Fatalf("Generate(seed=%d): %v", opts.Seed, err)
	}
	return sink.Bytes(), res
}

func TestGeneratedTracesValidateClean(t *testing.T) {
	for seed := uint64(0); seed < 40; seed++ {
		data, res := generate(t, Options{Seed: seed, Steps: 200})
		if _, err := testkit.CheckStreamInvariants(data); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		rep, err := validate.Validate(data, validate.Options{})
		if err != nil {
			t.Fatalf("seed %d: decode: %v", seed, err)
		}
		if !rep.Passed() {
			t.Fatalf("seed %d: violations %v", seed, rep.Violations)
		}
		if len(rep.OpenPaths) != 0 || rep.Stats.FinalFrameDepth != 0 {
			t.Fatalf("seed %d: open paths %v, frames %d", seed, rep.OpenPaths, rep.Stats.FinalFrameDepth)
		}
		if rep.Events != res.Events || res.Events < 200 {
			t.Fatalf("seed %d: report has %d events, result %d", seed, rep.Events, res.Events)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, _ := generate(t, Options{Seed: 7, Steps: 150})
	b, _ := generate(t, Options{Seed: 7, Steps: 150})
	if !bytes.Equal(a, b) {
		t.Fatal("same seed produced different traces")
	}
	c, _ := generate(t, Options{Seed: 8, Steps: 150})
	if bytes.Equal(a, c) {
		t.Fatal("different seeds produced identical traces")
	}
}

func TestGenerateUUIDAllocator(t *testing.T) {
	data, res := generate(t, Options{Seed: 3, Steps: 100, Allocator: tracelog.UUIDAllocator{}, Root: "entry"})
	rep, err := validate.Validate(data, validate.Options{})
	if err != nil || !rep.Passed() {
		t.Fatalf("err=%v violations=%v", err, rep.Violations)
	}
	if rep.Root != "entry" || res.Root != "entry" {
		t.Fatalf("root = %s / %s", rep.Root, res.Root)
	}
}

func TestGenerateExercisesEveryKind(t *testing.T) {
	data, _ := generate(t, Options{Seed: 11, Steps: 2000})
	rep, err := validate.Validate(data, validate.Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, kind := range []string{
		"assertion", "new_symbolic_variable", "call_function", "return_from_function",
		"path_split", "assume", "check", "path_merge", "branch_abort", "branch_switch",
		"solver_push_frame", "solver_pop_frame",
	} {
		if rep.Stats.Events[kind] == 0 {
			t.Errorf("no %s events in %v", kind, rep.Stats.Events)
		}
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, &tracelog.MemorySink{}, Options{Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
