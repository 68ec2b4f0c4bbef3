package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{Host: "db", Port: "5433", Username: "rig", Password: "pw", Database: "mocap"})
	assert.Equal(t, "host=db port=5433 user=rig password=pw dbname=mocap sslmode=disable", dsn)
}

func TestSqliteMigrateAndDump(t *testing.T) {
	dir := t.TempDir()
	db, err := GetSqliteDB(filepath.Join(dir, "live.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}

	require.NoError(t, db.Create(&model.RigSession{UID: "s1", Unit: "cm"}).Error)

	dump := filepath.Join(dir, "backup", "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, dump))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, dump))

	copyDB, err := GetSqliteDB(dump)
	require.NoError(t, err)
	var n int64
	require.NoError(t, copyDB.Model(&model.RigSession{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	paths, err := BackupDBPaths(filepath.Join(dir, "backup"))
	require.NoError(t, err)
	assert.Equal(t, []string{dump}, paths)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	m := NewManager(zerolog.New(os.Stderr))
	assert.Error(t, m.Setup())
}

func TestManager_SetupSqlite(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), "rig.db"))
	require.NoError(t, err)
	m.DB = db
	require.NoError(t, m.Setup())

	m.SqliteFilePath = filepath.Join(t.TempDir(), "snap.db")
	require.NoError(t, m.DumpMemoryToDisk())
	_, err = os.Stat(m.SqliteFilePath)
	assert.NoError(t, err)
}
