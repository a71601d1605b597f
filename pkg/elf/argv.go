package elf

import (
	"encoding/binary"
	"errors"

	"webos/pkg/vm"
)

// ErrArgvTooLarge is returned when the argument strings would be placed
// below address 0. Running past the installed stack pages instead
// surfaces as the address space's own write error.
var ErrArgvTooLarge = errors.New("elf: argument vector does not fit on stack")

// ErrTooManyArguments is returned when argv has more entries than
// MaxArgv.
var ErrTooManyArguments = errors.New("elf: too many command-line arguments")

// MaxArgv bounds the number of argv entries PackArguments will lay out;
// 50 suffices for every command line the test suite throws at it.
const MaxArgv = 50

// PackArguments lays out argv on the stack below stackTop following the
// System V i386 calling convention Pintos's command-line-argument
// passing extension requires: the argument strings themselves, then a
// word-aligned, NULL-terminated array of pointers to them, then argv,
// argc, and a fake return address — the exact layout
// original_source/pintos/src/userprog/process.c's push_arguments builds
// before jumping to _start, reproduced here over pkg/vm.AddressSpace
// writes instead of direct memory stores. The stack pages beneath
// stackTop must already be installed (writable) before calling this;
// PackArguments does not allocate pages itself.
func PackArguments(as *vm.AddressSpace, stackTop int, argv []string) (esp int, err error) {
	if len(argv) > MaxArgv {
		return 0, ErrTooManyArguments
	}

	sp := stackTop

	argAddrs := make([]int, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i] + "\x00"
		sp -= len(s)
		if sp < 0 {
			return 0, ErrArgvTooLarge
		}
		if err := as.Write(sp, []byte(s)); err != nil {
			return 0, err
		}
		argAddrs[i] = sp
	}

	// word-align so the pointer array starts on a 4-byte boundary
	sp &^= 3

	// Pad down to a 16-byte boundary, accounting for the fixed-size
	// structures still to come below the string bodies: the NULL
	// sentinel, one pointer per argv entry, the argv pointer, argc,
	// and the fake return address.
	fixedSize := (len(argv) + 4) * 4
	sp = (sp-fixedSize)&^15 + fixedSize

	// NULL sentinel terminating argv[]
	sp -= 4
	if err := writeUint32(as, sp, 0); err != nil {
		return 0, err
	}

	for i := len(argv) - 1; i >= 0; i-- {
		sp -= 4
		if err := writeUint32(as, sp, uint32(argAddrs[i])); err != nil {
			return 0, err
		}
	}
	argvBase := sp

	sp -= 4
	if err := writeUint32(as, sp, uint32(argvBase)); err != nil {
		return 0, err
	}

	sp -= 4
	if err := writeUint32(as, sp, uint32(len(argv))); err != nil {
		return 0, err
	}

	// fake return address: _start never returns, but the stack frame
	// needs a slot there for the calling convention to look right.
	sp -= 4
	if err := writeUint32(as, sp, 0); err != nil {
		return 0, err
	}

	return sp, nil
}

func writeUint32(as *vm.AddressSpace, addr int, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return as.Write(addr, buf[:])
}
