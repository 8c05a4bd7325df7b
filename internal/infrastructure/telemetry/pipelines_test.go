package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestStart_AllSignalsOff(t *testing.T) {
	ctx := context.Background()
	p, err := Start(ctx, Options{ServiceName: "invoicing-test", Endpoint: "localhost:14317", SamplingRatio: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.TracesEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())
	assert.NotNil(t, p.Meter("invoicing"))
	assert.NoError(t, p.Flush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestPipelines_NilIsOff(t *testing.T) {
	var p *Pipelines
	assert.False(t, p.MetricsEnabled())
	assert.NotNil(t, p.Meter("invoicing"))
	assert.False(t, NewLogBridgeCore(p, zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  sdktrace.Sampler
	}{
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{2, sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{0, sdktrace.ParentBased(sdktrace.NeverSample())},
		{-1, sdktrace.ParentBased(sdktrace.NeverSample())},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25))},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want.Description(), newSampler(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("invoicing-test")
	require.NoError(t, err)

	attrs := make(map[string]string)
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "invoicing-test", attrs["service.name"])
	assert.Equal(t, ServiceVersion, attrs["service.version"])
}

func TestMinLevelCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: inner, min: zapcore.WarnLevel}

	log := zap.New(core).With(zap.String("invoice_id", "abc"))
	log.Info("dropped")
	log.Warn("finalize retried")
	log.Error("snapshot rejected")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "finalize retried", logs.All()[0].Message)
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["invoice_id"])
	assert.False(t, core.Enabled(zapcore.DebugLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
}
