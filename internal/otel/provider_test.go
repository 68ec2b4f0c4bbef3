package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "mocaprig"})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		Enabled: true, ServiceName: "mocaprig", BatchTimeout: time.Second, LogWriter: &buf,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("rig"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestMetrics_Noop(t *testing.T) {
	m, err := NewMetrics(noop.Meter{})
	require.NoError(t, err)
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.Built(ctx, "actor")
		m.Bound(ctx, "actor", "optical", 16)
		m.Fitted(ctx, "actor")
		m.Failed(ctx, "bind")
	})
}
