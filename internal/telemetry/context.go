package telemetry

import "context"

// scope is what a context carries: the command's tracer and the span that
// work started under that context should nest in.
type scope struct {
	tracer Tracer
	span   uint64
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	if ctx != nil {
		if s, ok := ctx.Value(scopeKey{}).(scope); ok {
			return s
		}
	}
	return scope{tracer: Nop}
}

// FromContext returns the Tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return scopeOf(ctx).tracer
}

// WithTracer attaches t to ctx. The parent span is reset.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, scopeKey{}, scope{tracer: t})
}

// WithSpan makes s the parent of spans begun with SpanFrom(ctx).
func WithSpan(ctx context.Context, s *Span) context.Context {
	sc := scopeOf(ctx)
	sc.span = s.ID()
	return context.WithValue(ctx, scopeKey{}, sc)
}

// SpanFrom returns the id of the span attached to ctx, 0 when there is none.
func SpanFrom(ctx context.Context) uint64 {
	return scopeOf(ctx).span
}
