package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name used for wallet spans.
const TracerName = "github.com/harun/walletlink"

// ShutdownFunc flushes and releases a provider installed by Setup.
type ShutdownFunc func(ctx context.Context) error

// Option tunes Setup.
type Option func(*setupOptions)

type setupOptions struct {
	ratio    float64
	exporter sdktrace.SpanExporter
	attrs    []attribute.KeyValue
}

// WithSampleRatio samples the given fraction of root spans. Child spans follow
// their parent.
func WithSampleRatio(ratio float64) Option {
	return func(o *setupOptions) { o.ratio = ratio }
}

// WithExporter sends finished spans to exp synchronously.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *setupOptions) { o.exporter = exp }
}

// WithResourceAttributes adds attributes to the service resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *setupOptions) { o.attrs = append(o.attrs, attrs...) }
}

var (
	activeMu sync.Mutex
	active   *sdktrace.TracerProvider
)

// Setup installs a tracer provider for serviceName as the otel global. A
// later Setup replaces it; the returned func shuts down only its own provider.
func Setup(ctx context.Context, serviceName string, opts ...Option) (ShutdownFunc, error) {
	o := setupOptions{ratio: 1}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(append([]attribute.KeyValue{semconv.ServiceName(serviceName)}, o.attrs...)...),
	)
	if err != nil {
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.ratio))),
		sdktrace.WithResource(res),
	}
	if o.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(o.exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	activeMu.Lock()
	active = tp
	otel.SetTracerProvider(tp)
	activeMu.Unlock()

	return func(ctx context.Context) error {
		activeMu.Lock()
		if active == tp {
			active = nil
			otel.SetTracerProvider(noop.NewTracerProvider())
		}
		activeMu.Unlock()
		return tp.Shutdown(ctx)
	}, nil
}

// StartOperation starts a span for one wallet operation and records the
// operation name in the context.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = WithOperation(ctx, operation)
	attrs = append(attrs, attribute.String("wallet.operation", operation))
	return StartSpan(ctx, "wallet."+operation, attrs...)
}

// StartSpan starts a span on the walletlink tracer. The span's trace ID
// becomes the context trace ID unless one is already set.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	if sc := span.SpanContext(); sc.IsValid() && GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}
