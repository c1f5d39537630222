package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOlderThan(t *testing.T) {
	dir := t.TempDir()
	oldDir := filepath.Join(dir, "job_old")
	newDir := filepath.Join(dir, "job_new")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	require.NoError(t, os.MkdirAll(newDir, 0o755))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, past, past))

	got, err := FindOlderThan(dir, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldDir}, got)

	missing, err := FindOlderThan(filepath.Join(dir, "nope"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
	require.NoError(t, EnsureDir(""))
}
