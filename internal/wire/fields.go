package wire

import "google.golang.org/protobuf/encoding/protowire"

// TraceEvent wrapper fields.
const (
	fieldEventPathID   protowire.Number = 1
	fieldEventLocation protowire.Number = 2

	fieldPathSplit           protowire.Number = 3
	fieldPathMerge           protowire.Number = 4
	fieldBranchSwitch        protowire.Number = 5
	fieldBranchAbort         protowire.Number = 6
	fieldAssume              protowire.Number = 7
	fieldCheck               protowire.Number = 8
	fieldReturnFromFunction  protowire.Number = 9
	fieldCallFunction        protowire.Number = 10
	fieldNewSymbolicVariable protowire.Number = 11
	fieldMemoryEvent         protowire.Number = 12
	fieldAssertion           protowire.Number = 13
	fieldSolverPushFrame     protowire.Number = 14
	fieldSolverPopFrame      protowire.Number = 15

	// Wrapper fields below this number are variant tags.
	firstExtensionField protowire.Number = 64
)

// OperationTrace fields.
const (
	fieldTraceEvents          protowire.Number = 1
	fieldTraceRootPathID      protowire.Number = 2
	fieldTraceRootAssumptions protowire.Number = 3
)

// StreamHeader fields.
const (
	fieldHeaderVersion         protowire.Number = 1
	fieldHeaderRootPathID      protowire.Number = 2
	fieldHeaderRootAssumptions protowire.Number = 3
	fieldHeaderProducer        protowire.Number = 4
)
