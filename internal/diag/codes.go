package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Path-state violations
	TrcUnknownPath           Code = 1001
	TrcDeadPath              Code = 1002
	TrcUnbalancedSolverFrame Code = 1003
	TrcUnbalancedSwitch      Code = 1004
	TrcDuplicatePathID       Code = 1005

	// Wire decoding
	DecMalformed   Code = 2001
	DecTruncated   Code = 2002
	DecVersion     Code = 2003
	DecUnsupported Code = 2004

	// Trace shape
	ShpOpenPath       Code = 3001
	ShpOpenFrames     Code = 3002
	ShpViolationLimit Code = 3003
	ShpStopped        Code = 3004

	// Files
	IOLoadFileError Code = 4001
)

var codeDescription = map[Code]string{
	UnknownCode:              "Unknown error",
	TrcUnknownPath:           "Reference to unknown path",
	TrcDeadPath:              "Reference to dead path",
	TrcUnbalancedSolverFrame: "Unbalanced solver frame",
	TrcUnbalancedSwitch:      "Unbalanced branch switch",
	TrcDuplicatePathID:       "Duplicate path id",
	DecMalformed:             "Malformed trace data",
	DecTruncated:             "Truncated trace data",
	DecVersion:               "Unsupported protocol version",
	DecUnsupported:           "Unsupported event variant",
	ShpOpenPath:              "Path left open",
	ShpOpenFrames:            "Solver frames left open",
	ShpViolationLimit:        "Violation limit reached",
	ShpStopped:               "Validation stopped at first violation",
	IOLoadFileError:          "I/O load file error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("TRC%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("DEC%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SHP%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
