package diag

import "testing"

func TestFormatShort(t *testing.T) {
	diags := []Diagnostic{
		NewError(TrcDeadPath, AtEvent("./traces/a.symt", 4, "p2"), "path_id is merged\nsince event 3").
			WithNote(AtEvent("./traces/a.symt", 3, "p2"), "merged here"),
		New(SevWarning, ShpOpenPath, Location{File: "traces/a.symt", Event: 1, Offset: -1, Path: "p1"}, "p1 never resolved"),
	}

	expected := "warning SHP3001 traces/a.symt#1 p1 never resolved\n" +
		"note TRC1002 traces/a.symt#3 merged here\n" +
		"error TRC1002 traces/a.symt#4 path_id is merged since event 3"

	if got := FormatShort(diags, true); got != expected {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitAndSort(t *testing.T) {
	b := NewBag(2)
	if !b.Add(NewError(TrcDuplicatePathID, AtEvent("f", 5, "x"), "m")) {
		t.Fatal("first add rejected")
	}
	if !b.Add(New(SevWarning, ShpOpenFrames, NoLocation, "frames")) {
		t.Fatal("second add rejected")
	}
	if b.Add(NewError(TrcDeadPath, AtEvent("f", 1, "y"), "m")) {
		t.Fatal("add beyond limit accepted")
	}

	other := NewBag(0)
	other.Add(NewError(TrcUnknownPath, AtEvent("f", 0, "z"), "m"))
	b.Merge(other)
	b.Sort()

	want := []Code{ShpOpenFrames, TrcUnknownPath, TrcDuplicatePathID}
	if b.Len() != len(want) {
		t.Fatalf("len = %d, want %d", b.Len(), len(want))
	}
	for i, c := range want {
		if got := b.Items()[i].Code; got != c {
			t.Errorf("item %d: got %s, want %s", i, got.ID(), c.ID())
		}
	}
	if !b.HasErrors() {
		t.Error("HasErrors = false")
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		ReportError(r, TrcDuplicatePathID, AtEvent("f", 2, "p1"), "dup").Emit()
	}
	ReportWarning(r, ShpOpenPath, AtEvent("f", 2, "p1"), "open").Emit()
	if bag.Len() != 2 {
		t.Fatalf("bag has %d items, want 2", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := map[Code]string{
		TrcUnknownPath:  "TRC1001",
		DecTruncated:    "DEC2002",
		ShpOpenPath:     "SHP3001",
		IOLoadFileError: "IO4001",
		UnknownCode:     "E0000",
	}
	for c, want := range tests {
		if got := c.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", c, got, want)
		}
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		sev   Severity
		name  string
		fails bool
	}{
		{SevInfo, "info", false},
		{SevWarning, "warning", false},
		{SevError, "error", true},
		{Severity(9), "unknown", true},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.sev.Fails(); got != tt.fails {
			t.Errorf("%s.Fails() = %v, want %v", tt.name, got, tt.fails)
		}
	}
}
