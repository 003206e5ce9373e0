package pathstate

import "symtrace/internal/schema"

// Position is the index the next applied event will receive.
func (t *Tracker) Position() int { return t.pos }

// Root returns the root path id.
func (t *Tracker) Root() schema.PathID { return t.root }

// Focus returns the path that untagged events apply to; zero if none.
func (t *Tracker) Focus() schema.PathID { return t.focus }

// FrameDepth returns the number of open solver frames.
func (t *Tracker) FrameDepth() int { return len(t.frames) }

// Lookup returns a copy of the record for id.
func (t *Tracker) Lookup(id schema.PathID) (Record, bool) {
	i, ok := t.index[id]
	if !ok {
		return Record{}, false
	}
	return t.records[i], true
}

// Records returns copies of all records in creation order.
func (t *Tracker) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Live returns the ids of all live paths in creation order.
func (t *Tracker) Live() []schema.PathID {
	var out []schema.PathID
	for i := range t.records {
		if t.records[i].IsLive() {
			out = append(out, t.records[i].ID)
		}
	}
	return out
}

// OpenPaths returns the live paths other than the root. At the end of a trace
// these are the paths the engine never resolved.
func (t *Tracker) OpenPaths() []Record {
	var out []Record
	for i := range t.records {
		rec := t.records[i]
		if rec.IsLive() && rec.ID != t.root {
			out = append(out, rec)
		}
	}
	return out
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	s := t.stats
	s.Events = make(map[string]int, len(t.stats.Events))
	for k, v := range t.stats.Events {
		s.Events[k] = v
	}
	return s
}
