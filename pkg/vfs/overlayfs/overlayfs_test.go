package overlayfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"webos/pkg/vfs/memfs"
)

func TestReadFileFallsThroughToLower(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	require.NoError(t, lower.WriteFile("/lower.txt", []byte("from lower"), 0o644))

	fs := New(upper, lower)
	data, err := fs.ReadFile("/lower.txt")
	require.NoError(t, err)
	require.Equal(t, "from lower", string(data))
}

func TestReadFilePrefersUpperOverLower(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	require.NoError(t, lower.WriteFile("/shadowed.txt", []byte("from lower"), 0o644))
	require.NoError(t, upper.WriteFile("/shadowed.txt", []byte("from upper"), 0o644))

	fs := New(upper, lower)
	data, err := fs.ReadFile("/shadowed.txt")
	require.NoError(t, err)
	require.Equal(t, "from upper", string(data))
}

func TestWriteFileLandsOnlyInUpper(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	fs := New(upper, lower)

	require.NoError(t, fs.WriteFile("/new.txt", []byte("new content"), 0o644))

	data, err := upper.ReadFile("/new.txt")
	require.NoError(t, err)
	require.Equal(t, "new content", string(data))

	_, err = lower.ReadFile("/new.txt")
	require.Error(t, err, "write must never reach the lower layer")
}

func TestOpenFallsThroughToLower(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	require.NoError(t, lower.WriteFile("/lower.txt", []byte("from lower"), 0o644))

	fs := New(upper, lower)
	f, err := fs.Open("/lower.txt")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, len("from lower"))
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "from lower", string(buf[:n]))
}

func TestMkdirAllCreatesOnlyInUpper(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	fs := New(upper, lower)

	require.NoError(t, fs.MkdirAll("/a/b", 0o755))
	require.NoError(t, fs.WriteFile("/a/b/file.txt", []byte("x"), 0o644))

	data, err := upper.ReadFile("/a/b/file.txt")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}

func TestReadFileMissingFromBothLayersFails(t *testing.T) {
	fs := New(memfs.New(), memfs.New())
	_, err := fs.ReadFile("/missing.txt")
	require.Error(t, err)
}
