package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/songzhibin97/mailregistry/internal/config"
)

func TestDisabledProvider(t *testing.T) {
	tp, err := NewTracerProvider(&config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))

	tp, err = NewTracerProvider(nil, "test")
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
}

func TestEnabledProviderWithoutExporter(t *testing.T) {
	tp, err := NewTracerProvider(&config.TracingConfig{Enabled: true, ServiceName: "mailregistry", SampleRate: 1}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	assert.True(t, tp.IsEnabled())

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceID(ctx), 32)
	assert.Empty(t, TraceID(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
