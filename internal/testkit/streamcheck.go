// Package testkit holds checks shared by the tests of the packages that
// produce trace logs.
package testkit

import (
	"bytes"
	"fmt"

	"fortio.org/safecast"

	"symtrace/internal/schema"
	"symtrace/internal/wire"
)

// StreamSummary describes a log that passed CheckStreamInvariants.
type StreamSummary struct {
	Root   schema.PathID
	Frames uint32
	Bytes  uint32
}

// CheckStreamInvariants runs byte-level checks on a stream-form log, without
// the path state tracker:
// 1) the frames tile the log exactly, with no trailing bytes
// 2) every event re-encodes to the bytes it was decoded from
// 3) every created path id is new, and every other path id was created earlier
func CheckStreamInvariants(data []byte) (StreamSummary, error) {
	var sum StreamSummary
	h, pos, err := wire.ReadStreamHeader(data)
	if err != nil {
		return sum, fmt.Errorf("header: %w", err)
	}
	sum.Root = h.RootPathID
	if sum.Root.IsZero() {
		sum.Root = schema.RootPathID
	}
	known := map[schema.PathID]int{sum.Root: -1}

	for i := 0; pos < len(data); i++ {
		msg, n, err := wire.ReadFrame(data, pos)
		if err != nil {
			return sum, fmt.Errorf("frame %d at %d: %w", i, pos, err)
		}
		ev, err := wire.UnmarshalEvent(msg, pos+n-len(msg))
		if err != nil {
			return sum, fmt.Errorf("event %d: %w", i, err)
		}
		again, err := wire.EncodeEvent(ev)
		if err != nil {
			return sum, fmt.Errorf("event %d: re-encode: %w", i, err)
		}
		if !bytes.Equal(again, msg) {
			return sum, fmt.Errorf("event %d: re-encoded bytes differ (%d vs %d bytes)", i, len(again), len(msg))
		}
		if err := checkIDs(i, ev, known); err != nil {
			return sum, err
		}
		pos += n
		sum.Frames++
	}

	sum.Bytes, err = safecast.Conv[uint32](len(data))
	if err != nil {
		return sum, fmt.Errorf("log length overflow: %w", err)
	}
	return sum, nil
}

func checkIDs(i int, ev schema.Event, known map[schema.PathID]int) error {
	if !ev.PathID.IsZero() {
		if _, ok := known[ev.PathID]; !ok {
			return fmt.Errorf("event %d: path_id %s used before creation", i, ev.PathID)
		}
	}
	created := createdID(ev.Payload, known)
	for _, id := range schema.ReferencedPaths(ev.Payload) {
		if id == created {
			continue
		}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("event %d: %s referenced before creation", i, id)
		}
	}
	if created.IsZero() {
		return nil
	}
	if born, ok := known[created]; ok {
		return fmt.Errorf("event %d: %s created again (first at %d)", i, created, born)
	}
	known[created] = i
	return nil
}

// createdID returns the id ev introduces, if any. A pop creates a path only
// when its path_id_after is new.
func createdID(p schema.Payload, known map[schema.PathID]int) schema.PathID {
	switch v := p.(type) {
	case *schema.PathSplit:
		return v.ContinuingPathID
	case *schema.Assume:
		return v.NewPathID
	case *schema.Check:
		return v.NewPathID
	case *schema.SolverPopFrame:
		if _, ok := known[v.PathIDAfter]; !ok {
			return v.PathIDAfter
		}
	}
	return ""
}
