package tracelog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink receives encoded bytes. Each call carries exactly one whole frame (or the
// stream header), so a sink never sees half an event.
type Sink interface {
	WriteFrame(b []byte) error
	Close() error
}

// StreamSink writes frames to an io.Writer.
type StreamSink struct {
	w io.Writer
}

// NewStreamSink wraps w. Close closes w when it is an io.Closer.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) WriteFrame(b []byte) error {
	n, err := s.w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *StreamSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// logFile is the part of *os.File a FileSink uses.
type logFile interface {
	io.Writer
	Truncate(size int64) error
	Sync() error
	Close() error
	Name() string
}

// FileSink writes a new log file. Frames are appended with O_APPEND; a frame
// that fails halfway is cut off again, so the file only ever holds whole frames.
type FileSink struct {
	f    logFile
	size int64
}

// OpenFile creates path, truncating an existing file. A log always starts with
// its own stream header, so an old log cannot be continued.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}
	return &FileSink{f: f}, nil
}

// Size returns the file size in bytes, including everything written so far.
func (s *FileSink) Size() int64 { return s.size }

// Path returns the file name.
func (s *FileSink) Path() string { return s.f.Name() }

func (s *FileSink) WriteFrame(b []byte) error {
	n, err := s.f.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if n > 0 {
			if terr := s.f.Truncate(s.size); terr != nil {
				return fmt.Errorf("append to %s: %w (truncate: %v)", s.f.Name(), err, terr)
			}
		}
		return fmt.Errorf("append to %s: %w", s.f.Name(), err)
	}
	s.size += int64(n)
	return nil
}

func (s *FileSink) Close() error {
	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// MemorySink keeps the log in memory.
type MemorySink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *MemorySink) WriteFrame(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(b)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Bytes returns a copy of everything written.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Len returns the number of bytes written.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}
