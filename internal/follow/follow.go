// Package follow validates a stream-form trace log while its producer is still
// appending to it.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"

	"symtrace/internal/pathstate"
	"symtrace/internal/telemetry"
	"symtrace/internal/validate"
)

// ErrRemoved is returned when the followed file is removed or renamed.
var ErrRemoved = errors.New("followed file was removed")

const (
	readChunk   = 32 << 10
	defaultPoll = 500 * time.Millisecond
)

// Update describes the progress made by one read of the file.
type Update struct {
	// Events validated by this read.
	Events int
	// Total events validated so far.
	Total int
	// Violations found by this read.
	Violations []*pathstate.Violation
	// Offset is the file offset of the first byte not yet decoded.
	Offset int
}

// Options controls a Follow call.
type Options struct {
	Validate validate.Options
	// OnUpdate, if set, is called after every read that validated events.
	OnUpdate func(Update)
	// Poll re-reads the file at this interval even without a write
	// notification. Zero selects a default; negative disables polling.
	Poll time.Duration
}

// Follow validates path incrementally until ctx is cancelled, the file is
// removed, or a decode error occurs. Cancellation is not an error: the report
// then describes the validated prefix, with paths still live listed as open.
// With FailFast, Follow returns as soon as the first violation is found.
func Follow(ctx context.Context, path string, opts Options) (*validate.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	defer f.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("follow: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return nil, fmt.Errorf("follow: watch %s: %w", path, err)
	}

	vopts := opts.Validate
	if vopts.File == "" {
		vopts.File = path
	}
	tracer := vopts.Tracer
	if tracer == nil {
		tracer = telemetry.Nop
	}
	span := telemetry.Begin(tracer, telemetry.ScopeFile, "follow", telemetry.SpanFrom(ctx))
	span.With("file", path)

	fl := &follower{path: path, f: f, st: validate.NewStream(vopts), onUpdate: opts.OnUpdate, buf: make([]byte, readChunk)}
	rep, err := fl.run(ctx, w, pollInterval(opts.Poll))
	span.With("events", strconv.Itoa(fl.total))
	span.End(stopReason(err))
	return rep, err
}

func pollInterval(d time.Duration) time.Duration {
	if d == 0 {
		return defaultPoll
	}
	return d
}

func stopReason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "stopped"
}

type follower struct {
	path     string
	f        *os.File
	st       *validate.Stream
	onUpdate func(Update)
	buf      []byte
	total    int
}

func (fl *follower) run(ctx context.Context, w *fsnotify.Watcher, poll time.Duration) (*validate.Report, error) {
	var tick <-chan time.Time
	if poll > 0 {
		t := time.NewTicker(poll)
		defer t.Stop()
		tick = t.C
	}

	if err := fl.drain(); err != nil {
		return fl.st.Report(), err
	}
	for !fl.st.Stopped() {
		select {
		case <-ctx.Done():
			return fl.st.Report(), nil
		case ev, ok := <-w.Events:
			if !ok {
				return fl.st.Report(), nil
			}
			if err := fl.drain(); err != nil {
				return fl.st.Report(), err
			}
			// An unlinked file that is still open reports only Chmod.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 && fl.gone() {
				return fl.st.Report(), ErrRemoved
			}
		case err, ok := <-w.Errors:
			if !ok {
				return fl.st.Report(), nil
			}
			return fl.st.Report(), fmt.Errorf("follow: watcher: %w", err)
		case <-tick:
			if err := fl.drain(); err != nil {
				return fl.st.Report(), err
			}
			if fl.gone() {
				return fl.st.Report(), ErrRemoved
			}
		}
	}
	return fl.st.Report(), nil
}

func (fl *follower) gone() bool {
	_, err := os.Stat(fl.path)
	return errors.Is(err, fs.ErrNotExist)
}

// drain reads the file to its current end and feeds every chunk.
func (fl *follower) drain() error {
	before := len(fl.st.Report().Violations)
	events := 0
	for {
		n, err := fl.f.Read(fl.buf)
		if n > 0 {
			got, ferr := fl.st.Feed(fl.buf[:n])
			events += got
			if ferr != nil {
				fl.publish(events, before)
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("follow: read: %w", err)
		}
		if fl.st.Stopped() {
			break
		}
	}
	fl.publish(events, before)
	return nil
}

func (fl *follower) publish(events, before int) {
	if events == 0 {
		return
	}
	fl.total += events
	if fl.onUpdate == nil {
		return
	}
	rep := fl.st.Report()
	var fresh []*pathstate.Violation
	if len(rep.Violations) > before {
		fresh = rep.Violations[before:]
	}
	fl.onUpdate(Update{Events: events, Total: fl.total, Violations: fresh, Offset: fl.st.Offset()})
}
