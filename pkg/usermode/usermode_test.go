package usermode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEchoWritesArgumentsJoinedBySpace(t *testing.T) {
	var out bytes.Buffer
	ctx := &Context{Argv: []string{"echo", "hello", "world"}, Stdout: &out}
	code := Echo(ctx)
	require.Equal(t, int32(0), code)
	require.Equal(t, "hello world\n", out.String())
}

func TestExitWithParsesStatus(t *testing.T) {
	ctx := &Context{Argv: []string{"exit", "42"}}
	require.Equal(t, int32(42), ExitWith(ctx))
}

func TestRegistryLookupMissingProgram(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("nonexistent")
	require.False(t, ok)
}

func TestRegisterBuiltinsInstallsEcho(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	p, ok := r.Lookup("echo")
	require.True(t, ok)
	require.NotNil(t, p)
}
