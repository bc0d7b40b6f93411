package trace

import (
	"context"
	"testing"
	"time"

	"github.com/mimiclab/simlink/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func shutdownNow(t *testing.T, shutdown func(context.Context) error) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = shutdown(ctx)
	})
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingDefaults(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{
		Enabled:     true,
		SamplerRate: 0.5,
		Insecure:    true,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdownNow(t, shutdown)
}

func TestInitTracingHTTPProtocol(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{
		Enabled:     true,
		Protocol:    "http",
		Insecure:    true,
		SamplerRate: 2, // clamped to 1
		Headers:     map[string]string{"x-team": "sim"},
	}, zap.NewNop())
	require.NoError(t, err)
	shutdownNow(t, shutdown)
}

func TestSpanScope(t *testing.T) {
	scope := Tracer("simlink-test").Start(context.Background(), "test-span")
	require.NotNil(t, scope)
	assert.NotNil(t, scope.Ctx)
	scope.WithAttrs(attribute.String("message.type", "ping")).End()

	// nil scope helpers are no-ops
	var nilScope *SpanScope
	assert.NotPanics(t, func() {
		nilScope.WithAttrs(attribute.Bool("x", true))
		nilScope.End()
	})
}
