package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestInitTracer_DisabledInstallsPropagatorOnly(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitTracer(context.Background(), DefaultConfig("storefront"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
}

func TestInitTracer_Enabled(t *testing.T) {
	restoreGlobals(t)

	cfg := DefaultConfig("storefront")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:0"

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)

	// The collector is unreachable; shutdown may report the failed flush.
	_ = shutdown(context.Background())
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Config{SampleRate: tt.rate}.Sampler().Description()
		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, tt.want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("storefront")
	assert.Equal(t, "storefront", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestTracer_ReturnsUsableTracer(t *testing.T) {
	_, span := Tracer("storefront/test").Start(context.Background(), "op")
	defer span.End()
	assert.NotNil(t, span)
}
