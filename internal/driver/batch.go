package driver

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"symtrace/internal/observ"
	"symtrace/internal/reportcache"
	"symtrace/internal/telemetry"
	"symtrace/internal/validate"
)

// Request describes a batch validation.
type Request struct {
	Files    []string
	Jobs     int // GOMAXPROCS when <= 0
	Options  validate.Options
	Cache    *reportcache.Cache // optional
	Progress ProgressSink       // optional
	Timings  bool               // collect per-file phase timings
}

// Result is the outcome for one file. Err is set when the file could not be
// read; decode failures and violations live in Report.
type Result struct {
	Path      string
	Report    *validate.Report
	DecodeErr error
	Err       error
	Cached    bool
	Timing    *observ.Report
}

// Failed reports whether the file did not validate clean.
func (r *Result) Failed() bool {
	return r.Err != nil || r.Report == nil || !r.Report.Passed()
}

// ValidateFiles validates every file in req concurrently, each with its own
// tracker. Results are in the order of req.Files. The error is non-nil only
// when ctx was cancelled; results of finished files are still returned.
func ValidateFiles(ctx context.Context, req *Request) ([]Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing validate request")
	}
	files := req.Files
	results := make([]Result, len(files))
	if len(files) == 0 {
		return results, nil
	}

	tracer := req.Options.Tracer
	if tracer == nil {
		tracer = telemetry.FromContext(ctx)
	}
	span := telemetry.Begin(tracer, telemetry.ScopeCommand, "batch", telemetry.SpanFrom(ctx)).
		With("files", strconv.Itoa(len(files)))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	for _, path := range files {
		emit(req.Progress, Event{File: path, Status: StatusQueued})
	}

	// each goroutine owns results[i]; no lock needed
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			opts := req.Options
			opts.File = path
			opts.Tracer = tracer
			opts.Span = span.ID()
			results[i] = validateOne(path, opts, req)
			return nil
		})
	}

	err := g.Wait()
	failed := 0
	for i := range results {
		if results[i].Path != "" && results[i].Failed() {
			failed++
		}
	}
	span.With("failed", strconv.Itoa(failed)).End("")
	return results, err
}

func validateOne(path string, opts validate.Options, req *Request) Result {
	start := time.Now()
	res := Result{Path: path}
	var timer *observ.Timer
	if req.Timings {
		timer = observ.NewTimer()
	}
	phase := func(name string) int {
		if timer == nil {
			return -1
		}
		return timer.Begin(name)
	}
	end := func(idx int, note string) {
		if timer != nil {
			timer.End(idx, note)
		}
	}

	emit(req.Progress, Event{File: path, Status: StatusReading})
	idx := phase("read")
	data, err := os.ReadFile(path)
	end(idx, "")
	if err != nil {
		res.Err = fmt.Errorf("failed to load file: %w", err)
		emit(req.Progress, Event{File: path, Status: StatusError, Err: res.Err, Elapsed: time.Since(start)})
		return res
	}

	var key reportcache.Digest
	if req.Cache != nil {
		idx = phase("cache")
		key = reportcache.Key(data, opts)
		rep, ok, cerr := req.Cache.Get(key)
		end(idx, "")
		if cerr != nil {
			telemetry.Point(opts.Tracer, telemetry.ScopeFile, "cache.load", cerr.Error(), map[string]string{"file": path})
		}
		if cerr == nil && ok {
			rep.File = path
			res.Report = rep
			res.Cached = true
			res.DecodeErr = decodeErrOf(rep)
			finish(req.Progress, &res, timer, start)
			return res
		}
	}

	emit(req.Progress, Event{File: path, Status: StatusValidating})
	idx = phase("validate")
	rep, verr := validate.Validate(data, opts)
	end(idx, strconv.Itoa(rep.Events)+" events")
	res.Report = rep
	res.DecodeErr = verr

	if req.Cache != nil {
		if err := req.Cache.Put(key, rep); err != nil {
			telemetry.Point(opts.Tracer, telemetry.ScopeFile, "cache.store", err.Error(), map[string]string{"file": path})
		}
	}
	finish(req.Progress, &res, timer, start)
	return res
}

func decodeErrOf(rep *validate.Report) error {
	if rep.Decode == nil {
		return nil
	}
	return rep.Decode
}

func finish(sink ProgressSink, res *Result, timer *observ.Timer, start time.Time) {
	if timer != nil {
		rep := timer.Report()
		res.Timing = &rep
	}
	status := StatusPassed
	if res.Failed() {
		status = StatusFailed
	}
	emit(sink, Event{
		File:    res.Path,
		Status:  status,
		Events:  res.Report.Events,
		Cached:  res.Cached,
		Err:     res.DecodeErr,
		Elapsed: time.Since(start),
	})
}

func emit(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
