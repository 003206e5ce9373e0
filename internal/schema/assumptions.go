package schema

import "strings"

// Assumptions is an ordered set of predicates known to hold along a path.
// The zero value is the empty set. Values are never modified after construction.
type Assumptions struct {
	items []ExpressionID
}

// NewAssumptions builds a set from ids, keeping the first occurrence of each
// and dropping empty ids.
func NewAssumptions(ids ...ExpressionID) Assumptions {
	var out Assumptions
	for _, id := range ids {
		if id.IsZero() || out.Contains(id) {
			continue
		}
		out.items = append(out.items, id)
	}
	return out
}

// Len returns the number of predicates in the set.
func (a Assumptions) Len() int { return len(a.items) }

// IsEmpty reports whether the set has no predicates.
func (a Assumptions) IsEmpty() bool { return len(a.items) == 0 }

// Items returns a copy of the predicates in insertion order.
func (a Assumptions) Items() []ExpressionID {
	if len(a.items) == 0 {
		return nil
	}
	out := make([]ExpressionID, len(a.items))
	copy(out, a.items)
	return out
}

// Contains reports whether id is in the set.
func (a Assumptions) Contains(id ExpressionID) bool {
	for _, it := range a.items {
		if it == id {
			return true
		}
	}
	return false
}

// With returns a new set that additionally contains id.
func (a Assumptions) With(id ExpressionID) Assumptions {
	if id.IsZero() || a.Contains(id) {
		return a
	}
	items := make([]ExpressionID, len(a.items), len(a.items)+1)
	copy(items, a.items)
	return Assumptions{items: append(items, id)}
}

// Union returns a new set with the predicates of a followed by those of others
// not already present.
func (a Assumptions) Union(others ...Assumptions) Assumptions {
	total := len(a.items)
	for _, o := range others {
		total += len(o.items)
	}
	if total == 0 {
		return Assumptions{}
	}
	merged := make([]ExpressionID, 0, total)
	merged = append(merged, a.items...)
	for _, o := range others {
		merged = append(merged, o.items...)
	}
	return NewAssumptions(merged...)
}

// Equal reports set equality, ignoring order.
func (a Assumptions) Equal(b Assumptions) bool {
	if len(a.items) != len(b.items) {
		return false
	}
	for _, it := range a.items {
		if !b.Contains(it) {
			return false
		}
	}
	return true
}

func (a Assumptions) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, it := range a.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(it))
	}
	sb.WriteByte('}')
	return sb.String()
}
