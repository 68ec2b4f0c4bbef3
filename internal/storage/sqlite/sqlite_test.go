package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flexmocap/rigcore/internal/database"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	if cfg.DSN == "" {
		// private database per test instead of the shared memory one
		cfg.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	}
	b, err := New(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	return b
}

func TestCloseWritesDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "out", "sessions.db")
	b := newBackend(t, Config{DumpPath: dump})
	require.NoError(t, b.Init())

	s := &core.Session{UID: "sqlite-close", StartTime: time.Now().UTC()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordFit(&core.FitRecord{Time: time.Now(), Namespace: "actor01", Height: 170}))
	require.NoError(t, b.Close())

	assert.Equal(t, dump, b.ExportedFilePath())
	_, err := os.Stat(dump)
	require.NoError(t, err)

	disk, err := database.GetSqliteDB(dump)
	require.NoError(t, err)
	var fits []model.FitRun
	require.NoError(t, disk.Find(&fits).Error)
	require.Len(t, fits, 1)
	assert.Equal(t, s.ID, fits[0].SessionID)
}

func TestDumpLoop(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "loop.db")
	b := newBackend(t, Config{DumpPath: dump, DumpInterval: 20 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseWithoutDumpPath(t *testing.T) {
	b := newBackend(t, Config{})
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.Empty(t, b.ExportedFilePath())
}
