package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallPageRoundTrips(t *testing.T) {
	a := New(2 * PageSize)
	data := []byte("hello world")
	require.NoError(t, a.InstallPage(0, data, false, true))

	out := make([]byte, len(data))
	require.NoError(t, a.Read(0, out))
	require.Equal(t, data, out)

	// page tail beyond data is zero-filled
	tail := make([]byte, 4)
	require.NoError(t, a.Read(PageSize-4, tail))
	require.Equal(t, []byte{0, 0, 0, 0}, tail)
}

func TestWriteToReadOnlyPageFails(t *testing.T) {
	a := New(PageSize)
	require.NoError(t, a.InstallPage(0, []byte("text"), false, true))
	err := a.Write(0, []byte("xxxx"))
	require.ErrorIs(t, err, ErrWriteProtected)
}

func TestAccessToAbsentPageFails(t *testing.T) {
	a := New(2 * PageSize)
	require.NoError(t, a.InstallZeroPage(0, true))
	buf := make([]byte, 4)
	err := a.Read(PageSize, buf)
	require.ErrorIs(t, err, ErrNotPresent)
}

func TestOutOfBoundsAccessFails(t *testing.T) {
	a := New(PageSize)
	err := a.Read(PageSize, make([]byte, 1))
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestWriteSpanningPagesRequiresBothPresent(t *testing.T) {
	a := New(2 * PageSize)
	require.NoError(t, a.InstallZeroPage(0, true))
	// second page not installed
	err := a.Write(PageSize-2, []byte{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrNotPresent)
}
