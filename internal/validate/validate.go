package validate

import (
	"errors"
	"strconv"

	"symtrace/internal/pathstate"
	"symtrace/internal/schema"
	"symtrace/internal/telemetry"
	"symtrace/internal/wire"
)

// Options controls a validation run.
type Options struct {
	// FailFast stops the replay at the first violation.
	FailFast bool
	// MaxViolations caps the collected violations; 0 means no cap. Replay
	// continues past the cap and the report is marked Truncated.
	MaxViolations int
	// Root overrides the root path id recorded in the trace.
	Root schema.PathID
	// RootAssumptions overrides the recorded root assumptions when non-empty.
	RootAssumptions schema.Assumptions
	// File names the trace in diagnostics.
	File   string
	Tracer telemetry.Tracer
	// Span is the parent of the validation span, 0 for none.
	Span uint64
}

func (o Options) tracer() telemetry.Tracer {
	if o.Tracer == nil {
		return telemetry.Nop
	}
	return o.Tracer
}

// session is one replay: a tracker plus the report it fills in.
type session struct {
	opts    Options
	tracker *pathstate.Tracker
	report  *Report
}

func newSession(opts Options, form wire.Form) *session {
	return &session{
		opts:   opts,
		report: &Report{File: opts.File, Form: form},
	}
}

// start creates the tracker. The root is the override, else the recorded
// root, else "root". Events never name the root implicitly: a first event on
// an unrecorded path is a reference to an unknown path.
func (s *session) start(recorded schema.PathID, recordedAssumptions schema.Assumptions) {
	root := s.opts.Root
	if root.IsZero() {
		root = recorded
	}
	if root.IsZero() {
		root = schema.RootPathID
	}
	assumptions := recordedAssumptions
	if !s.opts.RootAssumptions.IsEmpty() {
		assumptions = s.opts.RootAssumptions
	}
	s.tracker = pathstate.New(root, assumptions)
	s.report.Root = root
}

func (s *session) started() bool { return s.tracker != nil }

// apply replays one event and reports whether the replay should continue.
func (s *session) apply(ev schema.Event) (bool, error) {
	err := s.tracker.Apply(ev)
	s.report.Events++
	if err == nil {
		return true, nil
	}
	var v *pathstate.Violation
	if !errors.As(err, &v) {
		return false, err
	}
	if s.opts.MaxViolations > 0 && len(s.report.Violations) >= s.opts.MaxViolations {
		s.report.Truncated = true
	} else {
		s.report.Violations = append(s.report.Violations, v)
	}
	tr := s.opts.tracer()
	telemetry.Point(tr, telemetry.ScopeEvent, "violation", v.Detail, map[string]string{
		"kind":  v.Kind.String(),
		"path":  string(v.Path),
		"index": strconv.Itoa(v.Position),
	})
	if s.opts.FailFast {
		s.report.Stopped = true
		return false, nil
	}
	return true, nil
}

// finish snapshots the tracker into the report.
func (s *session) finish() *Report {
	if !s.started() {
		s.start("", schema.Assumptions{})
	}
	s.report.OpenPaths = openPathsOf(s.tracker)
	s.report.Stats = Stats{Stats: s.tracker.Stats(), FinalFrameDepth: s.tracker.FrameDepth()}
	return s.report
}

// finishSnapshot is finish for a session that may still receive events. Before
// the header is read there is no tracker yet, so a throwaway one is used.
func (s *session) finishSnapshot(h wire.Header) *Report {
	if s.started() {
		return s.finish()
	}
	rep := *s.report
	tmp := &session{opts: s.opts, report: &rep}
	tmp.start(h.RootPathID, h.RootAssumptions)
	return tmp.finish()
}

// fail records a decode failure on the report and returns it.
func (s *session) fail(err error) error {
	var de *wire.DecodeError
	if errors.As(err, &de) {
		s.report.Decode = de
	} else {
		s.report.Decode = &wire.DecodeError{Offset: -1, Reason: err.Error()}
	}
	return err
}

// Validate decodes data (either wire form) and replays it. Violations are
// collected in the report; the returned error is non-nil only when data could
// not be decoded, in which case the report covers the events before the
// failure.
func Validate(data []byte, opts Options) (*Report, error) {
	form := wire.Sniff(data)
	span := telemetry.Begin(opts.tracer(), telemetry.ScopeFile, "validate", opts.Span).
		With("form", form.String()).
		With("bytes", strconv.Itoa(len(data)))

	var (
		rep *Report
		err error
	)
	if form == wire.FormStream {
		rep, err = validateStream(data, opts)
	} else {
		rep, err = validateContainer(data, opts)
	}

	span.With("events", strconv.Itoa(rep.Events)).
		With("violations", strconv.Itoa(len(rep.Violations)))
	if err != nil {
		span.End(err.Error())
	} else {
		span.End("")
	}
	return rep, err
}

func validateStream(data []byte, opts Options) (*Report, error) {
	s := newSession(opts, wire.FormStream)
	h, pos, err := wire.ReadStreamHeader(data)
	if err != nil {
		return s.finish(), s.fail(err)
	}
	s.report.Producer = h.Producer
	s.start(h.RootPathID, h.RootAssumptions)

	for pos < len(data) {
		ev, n, err := wire.DecodeEvent(data, pos)
		if err != nil {
			return s.finish(), s.fail(err)
		}
		pos += n
		more, err := s.apply(ev)
		if err != nil {
			return s.finish(), err
		}
		if !more {
			break
		}
	}
	return s.finish(), nil
}

func validateContainer(data []byte, opts Options) (*Report, error) {
	s := newSession(opts, wire.FormContainer)
	t, decodeErr := wire.DecodeTrace(data)
	s.start(t.RootPathID, t.RootAssumptions)
	stopped, err := s.replay(t.Events)
	if err != nil {
		return s.finish(), err
	}
	if !stopped && decodeErr != nil {
		return s.finish(), s.fail(decodeErr)
	}
	return s.finish(), nil
}

// replay applies events in order and reports whether it stopped early.
func (s *session) replay(events []schema.Event) (bool, error) {
	for _, ev := range events {
		more, err := s.apply(ev)
		if err != nil || !more {
			return true, err
		}
	}
	return false, nil
}

// ValidateTrace replays an in-memory trace. The error reports an event the
// tracker cannot interpret at all, such as one without a payload.
func ValidateTrace(t *schema.OperationTrace, opts Options) (*Report, error) {
	s := newSession(opts, wire.FormContainer)
	s.start(t.RootPathID, t.RootAssumptions)
	_, err := s.replay(t.Events)
	return s.finish(), err
}
