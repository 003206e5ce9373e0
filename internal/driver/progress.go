package driver

import "time"

// Status is the state of one file in a batch.
type Status string

const (
	// StatusQueued indicates the file is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusReading indicates the file is being read.
	StatusReading Status = "reading"
	// StatusValidating indicates the trace is being replayed.
	StatusValidating Status = "validating"
	// StatusPassed indicates the trace validated clean.
	StatusPassed Status = "passed"
	// StatusFailed indicates violations or a decode failure.
	StatusFailed Status = "failed"
	// StatusError indicates the file could not be processed at all.
	StatusError Status = "error"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusError
}

// Event reports progress for a file.
type Event struct {
	File    string
	Status  Status
	Events  int // trace events replayed, set on terminal statuses
	Cached  bool
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// FuncSink adapts a function.
type FuncSink func(Event)

func (f FuncSink) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}
