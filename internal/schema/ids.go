package schema

import "fmt"

// PathID names one execution path. The empty PathID means "not set".
type PathID string

// RootPathID is used for the root path when a trace does not name one.
const RootPathID PathID = "root"

// IsZero reports whether the id is unset.
func (id PathID) IsZero() bool { return id == "" }

func (id PathID) String() string {
	if id == "" {
		return "<none>"
	}
	return string(id)
}

// ExpressionID is an opaque key into an external expression store.
type ExpressionID string

// IsZero reports whether the id is unset.
func (id ExpressionID) IsZero() bool { return id == "" }

// TypedExpression is an expression reference together with its (opaque) type tag.
type TypedExpression struct {
	ID   ExpressionID
	Type string
}

// ProgramLoc is a source location attached to an event.
type ProgramLoc struct {
	Function string
	File     string
	Line     uint32
	Col      uint32
}

func (l *ProgramLoc) String() string {
	if l == nil {
		return "<unknown>"
	}
	switch {
	case l.File == "" && l.Function == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Col)
	case l.File == "":
		return fmt.Sprintf("%s %d:%d", l.Function, l.Line, l.Col)
	case l.Function == "":
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d:%d (%s)", l.File, l.Line, l.Col, l.Function)
}

// AbortedResult is the engine's outcome code for an aborted path.
// The protocol carries it through without interpreting it.
type AbortedResult struct {
	Code    int64
	Message string
}
