package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ripple-dev/ripple/pkg/ripple"
)

// defaultTracerName is the tracer used when none is configured.
const defaultTracerName = "ripple"

// TraceConfig configures the tracing helper.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "ripple").
	TracerName string

	// Filter determines which operations to trace. Return true to trace
	// the operation, false to skip. If nil, all operations are traced.
	Filter func(name string) bool

	// AttributeExtractor supplies custom attributes per operation.
	AttributeExtractor func(name string) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the tracing helper.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTraceFilter sets a filter function for operations.
func WithTraceFilter(filter func(name string) bool) TraceOption {
	return func(c *TraceConfig) {
		c.Filter = filter
	}
}

// WithTraceAttributes sets a custom attribute extractor.
func WithTraceAttributes(extractor func(name string) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracer wraps reactive operations in spans.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before tracing:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type Tracer struct {
	config TraceConfig
}

// NewTracer resolves a tracer from the global provider.
func NewTracer(opts ...TraceOption) *Tracer {
	config := TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &Tracer{config: config}
}

// Traced runs fn inside a span named after the operation. A non-nil
// error is recorded on the span and returned unchanged.
func (t *Tracer) Traced(ctx context.Context, name string, fn func(context.Context) error) error {
	if t.config.Filter != nil && !t.config.Filter(name) {
		return fn(ctx)
	}

	attrs := []attribute.KeyValue{
		attribute.String("ripple.op", name),
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(name)...)
	}

	spanCtx, span := t.config.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// TracedBatch runs fn inside one write batch under a span, so the span
// covers the writes and the flush they trigger.
func (t *Tracer) TracedBatch(ctx context.Context, name string, fn func() error) error {
	return t.Traced(ctx, name, func(context.Context) error {
		var err error
		ripple.Batch(func() {
			err = fn()
		})
		return err
	})
}
