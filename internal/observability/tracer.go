// Package observability provides a lightweight span tracer and the
// Prometheus collectors the scheduler loop publishes to and the API
// serves. There is
// no external OTel SDK here: spans are kept in a bounded ring buffer and
// exposed through the same process, matching the scale of a single IADS
// instance rather than a distributed trace backend.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SpanKind classifies a span the way callers classify a unit of work:
// a round stage running inside the scheduler loop, or a request served
// at the API boundary.
type SpanKind int

const (
	SpanInternal SpanKind = iota
	SpanServer
)

func (k SpanKind) String() string {
	switch k {
	case SpanServer:
		return "server"
	default:
		return "internal"
	}
}

// SpanStatus records whether a span's operation succeeded.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

func (s SpanStatus) String() string {
	if s == SpanError {
		return "error"
	}
	return "ok"
}

// Span is one traced operation: a round stage (prepare, probe, fuse) or
// an API request.
type Span struct {
	TraceID   string
	SpanID    string
	Operation string
	Kind      SpanKind
	Status    SpanStatus
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]string
	Err       error
}

// Duration returns the span's elapsed wall time.
func (s Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// TracerConfig controls the tracer's retention.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int
}

// DefaultTracerConfig keeps the last 10,000 spans, enough to cover a
// little over a day of 10s rounds, since the scheduler loop records one
// span per round.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, MaxSpans: 10_000}
}

// Tracer is a ring-buffered span recorder. Safe for concurrent use: one
// round loop and any number of API handlers may start/end spans at once.
type Tracer struct {
	mu       sync.Mutex
	cfg      TracerConfig
	spans    []Span
	inflight map[string]*Span
}

// NewTracer builds a Tracer from cfg.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = 10_000
	}
	return &Tracer{
		cfg:      cfg,
		spans:    make([]Span, 0, cfg.MaxSpans),
		inflight: make(map[string]*Span),
	}
}

// StartSpan opens a span under the trace ID carried in ctx, minting one
// if ctx carries none, and returns a context carrying the new span ID
// alongside the span handle to pass to EndSpan.
func (t *Tracer) StartSpan(ctx context.Context, operation string, kind SpanKind, attrs map[string]string) (context.Context, *Span) {
	traceID := traceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{
		TraceID:   traceID,
		SpanID:    uuid.NewString(),
		Operation: operation,
		Kind:      kind,
		StartTime: time.Now(),
		Attrs:     attrs,
	}
	ctx = WithTraceID(ctx, traceID)
	ctx = WithSpanID(ctx, span.SpanID)

	if !t.cfg.Enabled {
		return ctx, span
	}
	t.mu.Lock()
	t.inflight[span.SpanID] = span
	t.mu.Unlock()
	return ctx, span
}

// EndSpan closes a span opened by StartSpan, recording err as its
// outcome, and appends it to the ring buffer.
func (t *Tracer) EndSpan(span *Span, err error) {
	span.EndTime = time.Now()
	span.Err = err
	if err != nil {
		span.Status = SpanError
	} else {
		span.Status = SpanOK
	}
	if !t.cfg.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, span.SpanID)
	if len(t.spans) >= t.cfg.MaxSpans {
		// Drop the oldest span to make room, same truncate-from-the-
		// front policy as any bounded append-only log.
		copy(t.spans, t.spans[1:])
		t.spans = t.spans[:len(t.spans)-1]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns the most recent spans, newest last, up to limit (0
// means all retained spans).
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	out := make([]Span, limit)
	copy(out, t.spans[len(t.spans)-limit:])
	return out
}

// SpanCount returns the number of retained spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all retained spans. Intended for tests.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
	t.inflight = make(map[string]*Span)
}

type contextKey string

const (
	traceIDKey contextKey = "iads-trace-id"
	spanIDKey  contextKey = "iads-span-id"
)

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// WithSpanID attaches a span ID to ctx.
func WithSpanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, spanIDKey, id)
}

func traceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// SpanIDFromContext returns the span ID ctx carries, if any, for
// callers that want to correlate a log line with a trace.
func SpanIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(spanIDKey).(string)
	return id
}

// TraceIDFromContext returns the trace ID ctx carries, if any.
func TraceIDFromContext(ctx context.Context) string {
	return traceIDFromContext(ctx)
}
