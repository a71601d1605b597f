package diskfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	fs := New(t.TempDir())
	require.NoError(t, fs.WriteFile("/test.txt", []byte("hello"), 0o644))

	data, err := fs.ReadFile("/test.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestWriteFileLandsOnRealDisk(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)
	require.NoError(t, fs.WriteFile("/test.txt", []byte("hello"), 0o644))

	data, err := os.ReadFile(filepath.Join(tmpDir, "test.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestOpenRejectsMissingFile(t *testing.T) {
	fs := New(t.TempDir())
	_, err := fs.Open("/missing.txt")
	require.Error(t, err)
}

func TestOpenThenReadReturnsWrittenBytes(t *testing.T) {
	fs := New(t.TempDir())
	require.NoError(t, fs.WriteFile("/test.txt", []byte("0123456789"), 0o644))

	f, err := fs.Open("/test.txt")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 10)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(buf[:n]))
}

func TestWriteThroughOpenHandleIsVisibleToReadFile(t *testing.T) {
	fs := New(t.TempDir())
	require.NoError(t, fs.WriteFile("/test.txt", []byte("aaaa"), 0o644))

	f, err := fs.Open("/test.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("zz"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := fs.ReadFile("/test.txt")
	require.NoError(t, err)
	require.Equal(t, "zzaa", string(data))
}

func TestTruncateShrinksFile(t *testing.T) {
	fs := New(t.TempDir())
	require.NoError(t, fs.WriteFile("/test.txt", []byte("0123456789"), 0o644))

	f, err := fs.Open("/test.txt")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(5))
	require.NoError(t, f.Close())

	data, err := fs.ReadFile("/test.txt")
	require.NoError(t, err)
	require.Equal(t, "01234", string(data))
}

func TestMkdirAllCreatesNestedDirectoriesOnDisk(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)
	require.NoError(t, fs.MkdirAll("/a/b/c", 0o755))
	require.NoError(t, fs.WriteFile("/a/b/c/file.txt", []byte("nested"), 0o644))

	data, err := os.ReadFile(filepath.Join(tmpDir, "a", "b", "c", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested", string(data))
}
