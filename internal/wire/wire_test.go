package wire

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"symtrace/internal/schema"
)

func exprPtr(id schema.ExpressionID) *schema.ExpressionID { return &id }

func sampleEvents() []schema.Event {
	loc := &schema.ProgramLoc{Function: "main", File: "main.c", Line: 12, Col: 3}
	return []schema.Event{
		{PathID: "root", Payload: &schema.Assertion{Predicate: "e1", Message: "x > 0"}},
		{PathID: "root", Location: loc, Payload: &schema.PathSplit{SplitCondition: "c1", ContinuingPathID: "p1"}},
		{Payload: &schema.PathSplit{ContinuingPathID: "p9"}},
		{PathID: "p1", Payload: &schema.PathMerge{
			MergingPathID:    "p1",
			MergeCondition:   exprPtr("c1"),
			PathAssumptions:  schema.NewAssumptions("a", "b"),
			OtherAssumptions: schema.NewAssumptions("c"),
			PathIDAfter:      "root",
		}},
		{Payload: &schema.PathMerge{MergingPathID: "p2", MergeCondition: exprPtr("")}},
		{Payload: &schema.PathMerge{MergingPathID: "p3"}},
		{PathID: "p1", Payload: &schema.BranchSwitch{
			IDSuspended:          "p1",
			IDResumed:            "root",
			BranchCondition:      "c2",
			BranchLocation:       &schema.ProgramLoc{File: "f.c", Line: 4},
			SuspendedAssumptions: schema.NewAssumptions("s"),
		}},
		{Location: &schema.ProgramLoc{}, Payload: &schema.BranchSwitch{IDSuspended: "a", IDResumed: "b"}},
		{PathID: "p2", Payload: &schema.BranchAbort{
			AbortResult:        schema.AbortedResult{Code: -7, Message: "assertion failed"},
			AbortedAssumptions: schema.NewAssumptions("x"),
		}},
		{Payload: &schema.BranchAbort{}},
		{Payload: &schema.ReturnFromFunction{FuncName: "f"}},
		{Payload: &schema.ReturnFromFunction{}},
		{Payload: &schema.CallFunction{FuncName: "g", IsTailCall: true}},
		{Payload: &schema.CallFunction{FuncName: "h"}},
		{Payload: &schema.SolverPushFrame{}},
		{Payload: &schema.SolverPopFrame{PathIDAfter: "p4"}},
		{PathID: "root", Payload: &schema.Assume{Predicate: "B", NewPathID: "p1"}},
		{Payload: &schema.Check{Predicate: "C", NewPathID: "p5"}},
		{Payload: &schema.NewSymbolicVariable{Name: "x", Expression: schema.TypedExpression{ID: "sym0", Type: "bv32"}}},
		{Payload: &schema.NewSymbolicVariable{Expression: schema.TypedExpression{ID: "sym1"}}},
	}
}

func TestEventRoundTrip(t *testing.T) {
	for i, ev := range sampleEvents() {
		t.Run(ev.Kind().String(), func(t *testing.T) {
			frame, err := AppendFrame(nil, ev)
			if err != nil {
				t.Fatalf("event %d: encode: %v", i, err)
			}
			got, n, err := DecodeEvent(frame, 0)
			if err != nil {
				t.Fatalf("event %d: decode: %v", i, err)
			}
			if n != len(frame) {
				t.Errorf("event %d: consumed %d bytes, frame is %d", i, n, len(frame))
			}
			if !reflect.DeepEqual(got, ev) {
				t.Errorf("event %d: round trip mismatch\n got: %#v\nwant: %#v", i, got, ev)
			}
		})
	}
}

func TestEveryKindCovered(t *testing.T) {
	seen := make(map[schema.Kind]bool)
	for _, ev := range sampleEvents() {
		seen[ev.Kind()] = true
	}
	for _, k := range schema.Kinds() {
		if !seen[k] {
			t.Errorf("no round-trip sample for %s", k)
		}
	}
}

func TestDecodeEvent_Position(t *testing.T) {
	var buf []byte
	events := sampleEvents()[:3]
	for _, ev := range events {
		var err error
		buf, err = AppendFrame(buf, ev)
		if err != nil {
			t.Fatal(err)
		}
	}
	pos := 0
	for i := range events {
		got, n, err := DecodeEvent(buf, pos)
		if err != nil {
			t.Fatalf("event %d at %d: %v", i, pos, err)
		}
		if !reflect.DeepEqual(got, events[i]) {
			t.Errorf("event %d mismatch", i)
		}
		pos += n
	}
	if pos != len(buf) {
		t.Fatalf("consumed %d of %d bytes", pos, len(buf))
	}
}

// rawEvent frames a hand-built TraceEvent message.
func rawEvent(build func(b []byte) []byte) []byte {
	return protowire.AppendBytes(nil, build(nil))
}

func pathIDMsg(id string) []byte {
	return appendString(nil, 1, id)
}

func TestDecodeEvent_Errors(t *testing.T) {
	valid, err := AppendFrame(nil, schema.Event{Payload: &schema.Assume{Predicate: "B", NewPathID: "p1"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		data      []byte
		reason    string
		truncated bool
	}{
		{
			name:      "empty input",
			data:      nil,
			reason:    "truncated",
			truncated: true,
		},
		{
			name:      "truncated frame",
			data:      valid[:len(valid)-2],
			reason:    "truncated",
			truncated: true,
		},
		{
			name: "unknown variant tag",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, 40, protowire.BytesType)
				return protowire.AppendBytes(b, nil)
			}),
			reason: "unrecognized event kind tag 40",
		},
		{
			name: "memory event",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldMemoryEvent, protowire.BytesType)
				return protowire.AppendBytes(b, nil)
			}),
			reason: "memory_event",
		},
		{
			name: "no variant",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldEventPathID, protowire.BytesType)
				return protowire.AppendBytes(b, pathIDMsg("root"))
			}),
			reason: "missing event kind",
		},
		{
			name: "two variants",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldSolverPushFrame, protowire.BytesType)
				b = protowire.AppendBytes(b, nil)
				b = protowire.AppendTag(b, fieldSolverPushFrame, protowire.BytesType)
				return protowire.AppendBytes(b, nil)
			}),
			reason: "multiple event kinds",
		},
		{
			name: "split without continuing path",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldPathSplit, protowire.BytesType)
				return protowire.AppendBytes(b, nil)
			}),
			reason: "continuing_path_id",
		},
		{
			name: "pop without path_id_after",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldSolverPopFrame, protowire.BytesType)
				return protowire.AppendBytes(b, nil)
			}),
			reason: "path_id_after",
		},
		{
			name: "variant with wrong wire type",
			data: rawEvent(func(b []byte) []byte {
				b = protowire.AppendTag(b, fieldAssume, protowire.VarintType)
				return protowire.AppendVarint(b, 1)
			}),
			reason: "unexpected wire type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEvent(tt.data, 0)
			if err == nil {
				t.Fatal("expected decode error")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if !strings.Contains(de.Reason, tt.reason) {
				t.Errorf("reason = %q, want substring %q", de.Reason, tt.reason)
			}
			if de.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", de.Truncated, tt.truncated)
			}
		})
	}
}

func TestDecodeEvent_SkipsUnknownFields(t *testing.T) {
	data := rawEvent(func(b []byte) []byte {
		b = protowire.AppendTag(b, fieldEventPathID, protowire.BytesType)
		b = protowire.AppendBytes(b, pathIDMsg("root"))
		// future wrapper field
		b = protowire.AppendTag(b, 100, protowire.VarintType)
		b = protowire.AppendVarint(b, 42)
		// known variant carrying a future field
		var split []byte
		split = protowire.AppendTag(split, 9, protowire.Fixed64Type)
		split = protowire.AppendFixed64(split, 7)
		split = appendPathID(split, 2, "p1")
		split = protowire.AppendTag(split, 10, protowire.BytesType)
		split = protowire.AppendString(split, "ignored")
		b = protowire.AppendTag(b, fieldPathSplit, protowire.BytesType)
		return protowire.AppendBytes(b, split)
	})

	ev, _, err := DecodeEvent(data, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	split, ok := ev.Payload.(*schema.PathSplit)
	if !ok {
		t.Fatalf("payload = %T, want *schema.PathSplit", ev.Payload)
	}
	if split.ContinuingPathID != "p1" || ev.PathID != "root" {
		t.Errorf("decoded %+v / %q", split, ev.PathID)
	}
}

func TestDecodeError_OffsetIsAbsolute(t *testing.T) {
	good, err := AppendFrame(nil, schema.Event{Payload: &schema.SolverPushFrame{}})
	if err != nil {
		t.Fatal(err)
	}
	bad := rawEvent(func(b []byte) []byte {
		b = protowire.AppendTag(b, 33, protowire.BytesType)
		return protowire.AppendBytes(b, nil)
	})
	data := append(append([]byte{}, good...), bad...)

	_, _, err = DecodeEvent(data, len(good))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Offset < len(good) {
		t.Errorf("offset %d points into the preceding frame (len %d)", de.Offset, len(good))
	}
}

func TestEncodeEvent_RejectsMissingRequired(t *testing.T) {
	bad := []schema.Event{
		{},
		{Payload: &schema.Assume{Predicate: "B"}},
		{Payload: &schema.Check{NewPathID: "p1"}},
		{Payload: &schema.PathMerge{}},
		{Payload: &schema.BranchSwitch{IDSuspended: "a"}},
		{Payload: (*schema.PathSplit)(nil)},
	}
	for i, ev := range bad {
		if _, err := EncodeEvent(ev); err == nil {
			t.Errorf("case %d: expected encode error for %#v", i, ev)
		}
	}
}

func TestTraceForms(t *testing.T) {
	trace := &schema.OperationTrace{
		RootPathID:      "r",
		RootAssumptions: schema.NewAssumptions("A"),
		Events:          sampleEvents(),
	}

	for _, form := range []Form{FormContainer, FormStream} {
		t.Run(form.String(), func(t *testing.T) {
			data, err := Encode(trace, form, "test")
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got := Sniff(data); got != form {
				t.Fatalf("Sniff = %v, want %v", got, form)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, trace) {
				t.Errorf("trace mismatch\n got: %#v\nwant: %#v", got, trace)
			}
		})
	}
}

func TestStreamHeader_Version(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"1.0.0", true},
		{"1.4.2", true},
		{"2.0.0", false},
		{"0.9.0", false},
		{"banana", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			data := AppendStreamHeader(nil, Header{ProtocolVersion: tt.version, RootPathID: "r", Producer: "test"})
			h, n, err := ReadStreamHeader(data)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if n != len(data) || h.RootPathID != "r" || h.Producer != "test" {
					t.Errorf("header = %+v, n = %d", h, n)
				}
				return
			}
			if err == nil {
				t.Fatal("expected version error")
			}
		})
	}
}

func TestReadStreamHeader_TruncatedMagic(t *testing.T) {
	_, _, err := ReadStreamHeader(Magic[:2])
	if !IsTruncated(err) {
		t.Fatalf("expected truncated error, got %v", err)
	}
}
