// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func keepGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "transcodingd", serviceName(Config{}))
	assert.Equal(t, "transcodingd-canary", serviceName(Config{ServiceName: "transcodingd-canary"}))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2.5, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	keepGlobalProvider(t)

	p, err := NewProvider(context.Background(), Config{ExporterType: "grpc", Endpoint: "collector:4317"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := Tracer("controller").Start(context.Background(), "controller.submit")
	assert.False(t, span.IsRecording())
	span.End()

	require.NoError(t, p.ForceFlush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	keepGlobalProvider(t)

	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type: zipkin")
}

func TestNewProviderWithExporter_ServiceResource(t *testing.T) {
	keepGlobalProvider(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := NewProviderWithExporter(context.Background(), Config{
		Enabled:        true,
		ServiceVersion: "1.2.3",
		Environment:    "test",
		SamplingRate:   1,
	}, exporter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("engine").Start(context.Background(), "engine.job")
	span.End()
	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.job", spans[0].Name)

	attrs := spans[0].Resource.Set()
	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "transcodingd", name.AsString())
	version, ok := attrs.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())
}

func TestNewProviderWithExporter_ZeroRateDropsSpans(t *testing.T) {
	keepGlobalProvider(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := NewProviderWithExporter(context.Background(), Config{Enabled: true}, exporter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("engine").Start(context.Background(), "engine.job")
	assert.False(t, span.IsRecording())
	span.End()

	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Empty(t, exporter.GetSpans())
}
