package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var ts = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestConnectDisabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, m.Close())
}

func TestWritePointWithoutConnect(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.Error(t, m.WritePoint(FitPoint(core.FitRecord{Namespace: "a"})))
}

func TestUnreachableServerWritesBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "logs", "influx_backup.log.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:    true,
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "mocaprig",
		Bucket:     "rig-metrics",
		BackupPath: backup,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	require.NoError(t, m.WritePoint(FitPoint(core.FitRecord{
		Time: ts, Namespace: "actor01", Height: 180, HipCenter: r3.Vec{Y: 95},
	})))
	require.NoError(t, m.WritePoint(BindPoint(core.BindRecord{
		Time: ts, Namespace: "actor01", Source: "optical",
		Bindings: []core.JointBinding{{Joint: "Hips", Markers: []string{"M001", "M002"}}},
	})))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "fit_run,namespace=actor01")
	assert.Contains(t, text, "height=180")
	assert.Contains(t, text, "marker_binding,namespace=actor01,source=optical")
	assert.Contains(t, text, "markers=2i")
}

func TestBuildPoint(t *testing.T) {
	p := BuildPoint(core.BuildRecord{Time: ts, Namespace: "actor01", Root: "Hips", Joints: 24})
	assert.Equal(t, "skeleton_build", p.Name())
	require.Len(t, p.TagList(), 2)
	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, "joints", p.FieldList()[0].Key)
	assert.Equal(t, ts, p.Time())
}
