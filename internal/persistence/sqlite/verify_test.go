package sqlite

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corruptible.sqlite")

	db, err := Open(dbPath, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, _ = db.Exec("INSERT INTO test (data) VALUES (printf('%.100c', 'A'));")
	}
	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(dbPath, "quick")
	require.NoError(t, err)
	require.Nil(t, issues)

	f, err := os.OpenFile(dbPath, os.O_RDWR, 0o644)
	require.NoError(t, err)
	garbage := make([]byte, 100)
	_, _ = rand.Read(garbage)
	_, err = f.WriteAt(garbage, 4096)
	require.NoError(t, f.Close())
	require.NoError(t, err)

	issues, err = VerifyIntegrity(dbPath, "full")
	if err == nil {
		assert.NotNil(t, issues)
	}
}
