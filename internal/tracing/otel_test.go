package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartOperationSetsOperationAndTraceID(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := Setup(context.Background(), "walletlink-test", WithExporter(exporter))
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := StartOperation(context.Background(), "connect", attribute.String("wallet.chain_id", "0x1"))
	require.True(t, span.SpanContext().IsValid())
	assert.Equal(t, "connect", GetOperation(ctx))
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "wallet.connect", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("wallet.operation", "connect"))
	assert.Contains(t, spans[0].Attributes, attribute.String("wallet.chain_id", "0x1"))
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	shutdown, err := Setup(context.Background(), "walletlink-test")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx := WithTraceID(context.Background(), "fixed-trace")
	ctx, span := StartSpan(ctx, "refresh")
	defer span.End()

	assert.Equal(t, "fixed-trace", GetTraceID(ctx))
}

func TestZeroSampleRatioDropsRootSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := Setup(context.Background(), "walletlink-test", WithSampleRatio(0), WithExporter(exporter))
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	_, span := StartOperation(context.Background(), "disconnect")
	span.End()

	assert.False(t, span.SpanContext().IsSampled())
	assert.Empty(t, exporter.GetSpans())
}

func TestShutdownRestoresNoopProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), "walletlink-test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "after-shutdown")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, GetTraceID(ctx))
}
