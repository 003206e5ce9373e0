package testkit

import (
	"strings"
	"testing"

	"symtrace/internal/schema"
	"symtrace/internal/wire"
)

func encodeStream(t *testing.T, events ...schema.Event) []byte {
	t.Helper()
	data, err := wire.EncodeStream(&schema.OperationTrace{RootPathID: "r", Events: events}, "test")
	if err != nil {
		t.Fatalf("EncodeStream: %v", err)
	}
	return data
}

func TestCheckStreamInvariants(t *testing.T) {
	tests := []struct {
		name   string
		events []schema.Event
		want   string
	}{
		{
			name: "balanced",
			events: []schema.Event{
				{PathID: "r", Payload: &schema.PathSplit{SplitCondition: "c", ContinuingPathID: "p1"}},
				{Payload: &schema.SolverPushFrame{}},
				{Payload: &schema.SolverPopFrame{PathIDAfter: "p2"}},
				{PathID: "p2", Payload: &schema.PathMerge{MergingPathID: "p2", PathIDAfter: "r"}},
			},
		},
		{
			name: "forward reference",
			events: []schema.Event{
				{Payload: &schema.PathMerge{MergingPathID: "p9"}},
			},
			want: "p9 referenced before creation",
		},
		{
			name: "unknown wrapper path",
			events: []schema.Event{
				{PathID: "ghost", Payload: &schema.Assertion{Predicate: "x"}},
			},
			want: "path_id ghost used before creation",
		},
		{
			name: "duplicate creation",
			events: []schema.Event{
				{Payload: &schema.Assume{Predicate: "a", NewPathID: "p1"}},
				{Payload: &schema.Check{Predicate: "b", NewPathID: "p1"}},
			},
			want: "p1 created again (first at 0)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeStream(t, tt.events...)
			sum, err := CheckStreamInvariants(data)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if sum.Root != "r" || int(sum.Frames) != len(tt.events) || int(sum.Bytes) != len(data) {
					t.Fatalf("summary = %+v", sum)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCheckStreamInvariantsTrailingBytes(t *testing.T) {
	data := encodeStream(t, schema.Event{Payload: &schema.SolverPushFrame{}})
	data = append(data, 0x05, 0x01)
	if _, err := CheckStreamInvariants(data); err == nil || !strings.Contains(err.Error(), "frame 1") {
		t.Fatalf("err = %v", err)
	}
}
