package schema

import "testing"

func TestAssumptions_DedupAndOrder(t *testing.T) {
	a := NewAssumptions("A", "B", "A", "", "C")
	got := a.Items()
	want := []ExpressionID{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Items() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Items()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAssumptions_WithDoesNotMutate(t *testing.T) {
	base := NewAssumptions("A")
	derived := base.With("B")

	if base.Len() != 1 {
		t.Fatalf("base mutated: %v", base)
	}
	if !derived.Equal(NewAssumptions("A", "B")) {
		t.Fatalf("derived = %v, want {A, B}", derived)
	}

	// Appending to one derived set must not leak into a sibling derived from the same base.
	left := derived.With("L")
	right := derived.With("R")
	if left.Contains("R") || right.Contains("L") {
		t.Fatalf("sibling sets share storage: left=%v right=%v", left, right)
	}
}

func TestAssumptions_Union(t *testing.T) {
	tests := []struct {
		name string
		a    Assumptions
		bs   []Assumptions
		want Assumptions
	}{
		{"empty", Assumptions{}, nil, Assumptions{}},
		{"disjoint", NewAssumptions("A"), []Assumptions{NewAssumptions("B")}, NewAssumptions("A", "B")},
		{"overlap", NewAssumptions("A", "B"), []Assumptions{NewAssumptions("B", "C")}, NewAssumptions("A", "B", "C")},
		{"many", NewAssumptions("A"), []Assumptions{{}, NewAssumptions("C"), NewAssumptions("A", "B")}, NewAssumptions("C", "B", "A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Union(tt.bs...)
			if !got.Equal(tt.want) {
				t.Errorf("Union() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssumptions_EqualIgnoresOrder(t *testing.T) {
	if !NewAssumptions("A", "B").Equal(NewAssumptions("B", "A")) {
		t.Fatal("expected order-insensitive equality")
	}
	if NewAssumptions("A").Equal(NewAssumptions("A", "B")) {
		t.Fatal("sets of different size compared equal")
	}
}

func TestKind_ParseRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if _, err := ParseKind("memory_event"); err == nil {
		t.Error("expected error for unsupported kind")
	}
}
