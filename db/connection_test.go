package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/finkg/errors"
)

func TestOpen(t *testing.T) {
	t.Run("creates file and applies pragmas", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(dbPath)
		require.NoError(t, err)

		var mode string
		require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)

		var fk int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	})

	t.Run("in memory", func(t *testing.T) {
		db, err := Open(":memory:", zap.NewNop().Sugar())
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, db.Ping())
	})

	t.Run("unwritable parent", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		_, err := Open(filepath.Join(blocker, "sub", "test.db"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create database directory")
	})
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "track usage")))
	assert.True(t, IsDatabaseClosed(errors.New("sql: database is closed")))
	assert.False(t, IsDatabaseClosed(errors.New("disk I/O error")))
}
