package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-txlock/v1/adapter"
	"github.com/mirkobrombin/go-txlock/v1/cache"
	"github.com/mirkobrombin/go-txlock/v1/syncbus"
)

const instrumentationName = "github.com/mirkobrombin/go-txlock/v1/engine"

// DefaultEventSubject is the subject lock events are published on.
const DefaultEventSubject = "txlock.events"

// Engine gates chunk and index storage on transaction lock state.
type Engine struct {
	chunks adapter.Store[[]byte]
	index  adapter.Store[string]

	cache    cache.Cache[[]byte]
	cacheTTL time.Duration
	// fillMu orders cache fills against invalidations; gens counts the
	// invalidations of each chunk.
	fillMu sync.Mutex
	gens   map[string]uint64

	bus     syncbus.Bus
	subject string

	logger  *slog.Logger
	metrics bool
	tracer  trace.Tracer
	now     func() time.Time

	readConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache reads chunks through c. Entries live for ttl, or until a write or
// delete of the chunk when ttl is not positive.
func WithCache(c cache.Cache[[]byte], ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithBus publishes lock events on bus.
func WithBus(bus syncbus.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithEventSubject overrides DefaultEventSubject.
func WithEventSubject(subject string) Option {
	return func(e *Engine) {
		e.subject = subject
	}
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics updates the collectors of the metrics package. Register them
// with metrics.RegisterCoreMetrics to expose them.
func WithMetrics() Option {
	return func(e *Engine) {
		e.metrics = true
	}
}

// WithTracing records spans with the global OpenTelemetry tracer provider.
func WithTracing() Option {
	return func(e *Engine) {
		e.tracer = otel.Tracer(instrumentationName)
	}
}

// WithTracerProvider records spans with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(instrumentationName)
	}
}

// WithReadConcurrency bounds the parallel store reads of ReadChunks.
func WithReadConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.readConcurrency = n
		}
	}
}

// New returns an Engine over the given chunk and index stores.
func New(chunks adapter.Store[[]byte], index adapter.Store[string], opts ...Option) *Engine {
	e := &Engine{
		chunks:          chunks,
		index:           index,
		subject:         DefaultEventSubject,
		now:             time.Now,
		readConcurrency: 8,
		gens:            make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// startSpan starts a span when tracing is enabled. The returned span is a
// no-op otherwise.
func (e *Engine) startSpan(ctx context.Context, name string, tx Txn, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	attrs = append(attrs, attribute.String("txlock.txn", tx.ID.String()))
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
