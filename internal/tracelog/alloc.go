package tracelog

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"symtrace/internal/schema"
)

// Allocator hands out candidate path ids. The writer skips candidates that are
// already in use, so an allocator only needs to avoid repeating itself.
type Allocator interface {
	Next() schema.PathID
}

// SeqAllocator yields prefix1, prefix2, ... It is not goroutine-safe; the
// writer calls it under its lock.
type SeqAllocator struct {
	Prefix string
	n      uint64
}

// NewSeqAllocator returns an allocator with the given prefix ("p" if empty).
func NewSeqAllocator(prefix string) *SeqAllocator {
	if prefix == "" {
		prefix = "p"
	}
	return &SeqAllocator{Prefix: prefix}
}

func (a *SeqAllocator) Next() schema.PathID {
	a.n++
	return schema.PathID(a.Prefix + strconv.FormatUint(a.n, 10))
}

// UUIDAllocator yields random (version 4) UUIDs.
type UUIDAllocator struct{}

func (UUIDAllocator) Next() schema.PathID {
	return schema.PathID(uuid.NewString())
}

// ParseAllocator maps a config/flag value to an Allocator.
func ParseAllocator(name string) (Allocator, error) {
	switch name {
	case "", "seq":
		return NewSeqAllocator("p"), nil
	case "uuid":
		return UUIDAllocator{}, nil
	default:
		return nil, fmt.Errorf("invalid path id allocator: %q (expected: seq|uuid)", name)
	}
}
