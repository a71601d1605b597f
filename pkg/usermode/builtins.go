package usermode

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterBuiltins installs the small set of user programs a booted
// kernel can run without any compiled binary (kernel.Boot writes a
// synthesized ELF image for each under the bin directory) — the
// Go-realized equivalent of the tiny C test binaries
// original_source/pintos/src/userprog ships (echo, exit code reporters),
// registered under the same names so a boot config's command lines read
// the way a Pintos test script's do.
func RegisterBuiltins(r *Registry) {
	r.Register("echo", Echo)
	r.Register("exit", ExitWith)
	r.Register("true", func(ctx *Context) int32 { return 0 })
	r.Register("false", func(ctx *Context) int32 { return 1 })
}

// Echo writes its arguments (excluding argv[0]) to stdout separated by
// spaces and terminated with a newline, then exits 0 — the exact program
// spec.md's worked "echo hello world" scenario runs.
func Echo(ctx *Context) int32 {
	args := ctx.Argv
	if len(args) > 1 {
		args = args[1:]
	} else {
		args = nil
	}
	fmt.Fprintln(ctx.Stdout, strings.Join(args, " "))
	return 0
}

// ExitWith exits with the status given as its first argument, or 0 if
// none was given; an argument that does not parse is reported on stderr
// and the status is 1 — a minimal analogue of a shell
// test binary whose whole job is to exercise a specific exit code, as
// several of spec.md's end-to-end scenarios do (exit(42), exit(7),
// exit(8)).
func ExitWith(ctx *Context) int32 {
	if len(ctx.Argv) < 2 {
		return 0
	}
	n, err := strconv.Atoi(ctx.Argv[1])
	if err != nil {
		fmt.Fprintf(ctx.Stderr, "exit: %v\n", err)
		return 1
	}
	return int32(n)
}
