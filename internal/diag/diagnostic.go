package diag

import (
	"fmt"

	"symtrace/internal/schema"
)

// Location points into a trace. Event is -1 when the diagnostic concerns the
// trace as a whole (or the header), Offset is -1 when no byte offset is known.
type Location struct {
	File   string
	Event  int
	Offset int
	Path   schema.PathID
}

// NoLocation is the location of a whole-trace diagnostic.
var NoLocation = Location{Event: -1, Offset: -1}

// AtEvent returns the location of event index i in file.
func AtEvent(file string, i int, path schema.PathID) Location {
	return Location{File: file, Event: i, Offset: -1, Path: path}
}

func (l Location) String() string {
	s := l.File
	if s == "" {
		s = "<trace>"
	}
	if l.Event >= 0 {
		s += fmt.Sprintf("#%d", l.Event)
	}
	if l.Offset >= 0 {
		s += fmt.Sprintf("@%d", l.Offset)
	}
	return s
}

type Note struct {
	Loc Location
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Location
	Notes    []Note
}
