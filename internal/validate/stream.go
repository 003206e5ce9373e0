package validate

import (
	"errors"

	"symtrace/internal/wire"
)

// Stream validates a stream-form log incrementally. Bytes are fed as they
// arrive; only complete frames are decoded, a partial trailing frame waits for
// more input. Feeding a log in any number of pieces yields the same report as
// one Validate call over the whole log.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	s      *session
	buf    []byte
	base   int // absolute offset of buf[0]
	header bool
	h      wire.Header
	err    error
	done   bool
}

// NewStream returns a Stream expecting the stream header first.
func NewStream(opts Options) *Stream {
	return &Stream{s: newSession(opts, wire.FormStream)}
}

// Feed appends p and validates every frame it completes. It returns the number
// of events validated by this call. A decode error is sticky: once returned,
// every later Feed returns it too.
func (st *Stream) Feed(p []byte) (int, error) {
	if st.err != nil {
		return 0, st.err
	}
	st.buf = append(st.buf, p...)

	if !st.header {
		h, n, err := wire.ReadStreamHeader(st.buf)
		if err != nil {
			if wire.IsTruncated(err) {
				return 0, nil
			}
			return 0, st.failAt(err)
		}
		st.h = h
		st.header = true
		st.s.report.Producer = h.Producer
		st.s.start(h.RootPathID, h.RootAssumptions)
		st.consume(n)
	}

	before := st.s.report.Events
	pos := 0
	for !st.done && pos < len(st.buf) {
		ev, n, err := wire.DecodeEvent(st.buf, pos)
		if err != nil {
			if wire.IsTruncated(err) {
				break
			}
			st.consume(pos)
			return st.s.report.Events - before, st.failAt(err)
		}
		pos += n
		more, err := st.s.apply(ev)
		if err != nil {
			st.err = err
			break
		}
		if !more {
			st.done = true
		}
	}
	st.consume(pos)
	return st.s.report.Events - before, st.err
}

// consume drops n leading bytes of the buffer.
func (st *Stream) consume(n int) {
	if n == 0 {
		return
	}
	st.base += n
	st.buf = append(st.buf[:0], st.buf[n:]...)
}

// failAt rebases a decode error onto absolute offsets and makes it sticky.
func (st *Stream) failAt(err error) error {
	var de *wire.DecodeError
	if errors.As(err, &de) {
		shifted := *de
		shifted.Offset += st.base
		err = &shifted
	}
	st.err = st.s.fail(err)
	return st.err
}

// Pending returns the number of buffered bytes not yet decoded.
func (st *Stream) Pending() int { return len(st.buf) }

// Offset returns the absolute offset of the first undecoded byte.
func (st *Stream) Offset() int { return st.base }

// Stopped reports whether FailFast ended validation; later input is ignored.
func (st *Stream) Stopped() bool { return st.done }

// Report returns the report for everything validated so far. It may be called
// any number of times; open paths reflect the current state. Bytes of an
// incomplete trailing frame are not an error here; Close reports them.
func (st *Stream) Report() *Report {
	rep := *st.s.finishSnapshot(st.h)
	return &rep
}

// Close finishes the stream. Leftover bytes of an incomplete frame or header are
// reported as a truncation error.
func (st *Stream) Close() (*Report, error) {
	if st.err == nil && !st.done && len(st.buf) > 0 {
		var err error
		if !st.header {
			_, _, err = wire.ReadStreamHeader(st.buf)
		} else {
			_, _, err = wire.DecodeEvent(st.buf, 0)
		}
		if err != nil {
			st.failAt(err)
		}
	}
	return st.Report(), st.err
}
