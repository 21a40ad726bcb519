package fsutil

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem_CreateNeedsParent(t *testing.T) {
	m := NewMemoryFileSystem()

	_, err := m.Create("/exports/run/imu.csv")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, m.MkdirAll("/exports/run", 0o755))
	assert.True(t, m.Exists("/exports"))
	assert.True(t, m.Exists("/exports/run"))

	w, err := m.Create("/exports/run/imu.csv")
	require.NoError(t, err)
	_, _ = w.Write([]byte("timestamp\n"))
	assert.True(t, m.Exists("/exports/run/imu.csv"))

	data, err := m.ReadFile("/exports/run/imu.csv")
	require.NoError(t, err)
	assert.Empty(t, data, "contents appear on close")

	require.NoError(t, w.Close())
	data, err = m.ReadFile("/exports/run/../run/imu.csv")
	require.NoError(t, err)
	assert.Equal(t, "timestamp\n", string(data))
	assert.Equal(t, []string{"/exports/run/imu.csv"}, m.Files())
}

func TestMemoryFileSystem_Conflicts(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("out", 0o755))
	w, err := m.Create("out/a")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, m.MkdirAll("out/a/b", 0o755), fs.ErrExist)
	_, err = m.Create("out")
	assert.ErrorIs(t, err, fs.ErrExist)

	_, err = m.ReadFile("out/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOSFileSystem(t *testing.T) {
	dir := t.TempDir()
	var osfs FileSystem = OSFileSystem{}

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, osfs.MkdirAll(sub, 0o755))
	w, err := osfs.Create(filepath.Join(sub, "f.txt"))
	require.NoError(t, err)
	_, _ = w.Write([]byte("ok"))
	require.NoError(t, w.Close())

	data, err := osfs.ReadFile(filepath.Join(sub, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.False(t, osfs.Exists(filepath.Join(dir, "nope")))
}
