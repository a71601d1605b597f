// Package elf decodes and loads ELF32 little-endian executables into a
// pkg/vm.AddressSpace. It is grounded directly on
// original_source/pintos/src/userprog/process.c's load/validate_segment/
// load_segment trio — the spec.md validation rules (magic, class, machine,
// intra-page offset consistency, PT_LOAD placement above page zero) are a
// line-for-line restatement of what that C code checks before it will map
// a segment. encoding/binary decodes the header by hand rather than
// reaching for the stdlib debug/elf package, which hides the exact field
// offsets these checks need and interprets sections this loader has no
// use for.
package elf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"webos/pkg/vm"
)

const (
	magic0 = 0x7f
	magic1 = 'E'
	magic2 = 'L'
	magic3 = 'F'

	classELF32   = 1
	dataLittle   = 1
	versionCur   = 1
	typeExec     = 2
	machine386   = 3
	headerLength = 52
	phdrLength   = 32
)

// Segment type and flag constants from the ELF spec, matching the
// subset original_source/pintos/src/userprog/process.c actually checks.
const (
	ptLoad = 1

	pfX = 1
	pfW = 2
	pfR = 4
)

// Errors returned by Parse/Load, each corresponding to one rejection
// validate_segment/load would make.
var (
	ErrTooShort        = errors.New("elf: file too short to contain a header")
	ErrBadMagic        = errors.New("elf: not an ELF file")
	ErrNotELF32        = errors.New("elf: not a 32-bit ELF file")
	ErrNotLittleEndian = errors.New("elf: not a little-endian ELF file")
	ErrNotExecutable   = errors.New("elf: not an executable ELF file")
	ErrWrongMachine    = errors.New("elf: not an i386 ELF file")
	ErrSegmentRange    = errors.New("elf: program header segment falls outside the file")
	ErrSegmentOffset   = errors.New("elf: p_offset and p_vaddr disagree on page alignment")
	ErrSegmentLowAddr  = errors.New("elf: segment maps below the first page")
	ErrSegmentOverflow = errors.New("elf: segment size overflows the address space")
	ErrMemLessThanFile = errors.New("elf: p_memsz is smaller than p_filesz")
	ErrSegmentEmpty    = errors.New("elf: segment is empty")
	ErrTooManyHeaders  = errors.New("elf: too many program headers")
)

// MaxProgramHeaders bounds e_phnum. No real executable this loader is
// asked to run comes anywhere close; the cap exists to reject a
// corrupt or hostile header before ParseProgramHeaders walks it.
const MaxProgramHeaders = 1024

// Header is the subset of the ELF32 file header the loader cares about.
type Header struct {
	Entry   uint32
	Phoff   uint32
	Phnum   uint16
	Phentsize uint16
}

// ProgramHeader is one ELF32 program header table entry.
type ProgramHeader struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
}

// Writable reports whether PF_W is set.
func (p ProgramHeader) Writable() bool { return p.Flags&pfW != 0 }

// Executable reports whether PF_X is set.
func (p ProgramHeader) Executable() bool { return p.Flags&pfX != 0 }

// Loadable reports whether this is a PT_LOAD segment the loader must map.
func (p ProgramHeader) Loadable() bool { return p.Type == ptLoad }

// ParseHeader decodes and validates the ELF32 file header at the start
// of data, rejecting anything validate_segment's caller (load, in the
// original) would never even get to.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerLength {
		return Header{}, ErrTooShort
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return Header{}, ErrBadMagic
	}
	if data[4] != classELF32 {
		return Header{}, ErrNotELF32
	}
	if data[5] != dataLittle {
		return Header{}, ErrNotLittleEndian
	}
	etype := binary.LittleEndian.Uint16(data[16:18])
	if etype != typeExec {
		return Header{}, ErrNotExecutable
	}
	machine := binary.LittleEndian.Uint16(data[18:20])
	if machine != machine386 {
		return Header{}, ErrWrongMachine
	}
	h := Header{
		Entry:     binary.LittleEndian.Uint32(data[24:28]),
		Phoff:     binary.LittleEndian.Uint32(data[28:32]),
		Phentsize: binary.LittleEndian.Uint16(data[42:44]),
		Phnum:     binary.LittleEndian.Uint16(data[44:46]),
	}
	if h.Phnum > MaxProgramHeaders {
		return Header{}, ErrTooManyHeaders
	}
	return h, nil
}

// ParseProgramHeaders decodes the program header table h.Phoff describes.
func ParseProgramHeaders(data []byte, h Header) ([]ProgramHeader, error) {
	out := make([]ProgramHeader, 0, h.Phnum)
	for i := 0; i < int(h.Phnum); i++ {
		start := int(h.Phoff) + i*int(h.Phentsize)
		end := start + phdrLength
		if start < 0 || end > len(data) {
			return nil, fmt.Errorf("elf: program header %d out of range: %w", i, ErrTooShort)
		}
		r := bytes.NewReader(data[start:end])
		var raw struct {
			Type   uint32
			Offset uint32
			Vaddr  uint32
			Paddr  uint32
			Filesz uint32
			Memsz  uint32
			Flags  uint32
			Align  uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, err
		}
		out = append(out, ProgramHeader{
			Type:   raw.Type,
			Offset: raw.Offset,
			Vaddr:  raw.Vaddr,
			Filesz: raw.Filesz,
			Memsz:  raw.Memsz,
			Flags:  raw.Flags,
		})
	}
	return out, nil
}

// validateSegment checks the rules original_source/pintos/src/userprog/
// process.c's validate_segment enforces before a PT_LOAD segment is
// allowed to be mapped: the segment isn't empty, the file actually
// contains p_filesz bytes at p_offset, p_vaddr does not land in the
// reserved first page, and p_offset and p_vaddr agree on page alignment
// so copying file bytes into memory pages lines up. p_vaddr itself is
// not required to be page-aligned — only the intra-page offset has to
// match p_offset's, since a real linker's text segment routinely starts
// mid-page.
func validateSegment(data []byte, p ProgramHeader) error {
	if p.Memsz == 0 {
		return ErrSegmentEmpty
	}
	if p.Memsz < p.Filesz {
		return ErrMemLessThanFile
	}
	offsetEnd := uint64(p.Offset) + uint64(p.Filesz)
	if offsetEnd > uint64(len(data)) {
		return ErrSegmentRange
	}
	if p.Vaddr < vm.PageSize {
		return ErrSegmentLowAddr
	}
	if p.Offset%vm.PageSize != p.Vaddr%vm.PageSize {
		return ErrSegmentOffset
	}
	if uint64(p.Vaddr)+uint64(p.Memsz) > uint64(^uint32(0)) {
		return ErrSegmentOverflow
	}
	return nil
}

// Image is a parsed, validated executable ready to be mapped into an
// address space.
type Image struct {
	Header  Header
	Phdrs   []ProgramHeader
	data    []byte
}

// Parse decodes and validates an ELF32 executable's header and program
// headers without mapping anything yet, so a caller can reject a bad
// image before committing any address-space state.
func Parse(data []byte) (*Image, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	phdrs, err := ParseProgramHeaders(data, h)
	if err != nil {
		return nil, err
	}
	for _, p := range phdrs {
		if !p.Loadable() {
			continue
		}
		if err := validateSegment(data, p); err != nil {
			return nil, err
		}
	}
	return &Image{Header: h, Phdrs: phdrs, data: data}, nil
}

// Load maps every PT_LOAD segment of img into as, page by page, and
// returns the entry point the loader trampoline should jump to. Because
// validation already happened in Parse, Load itself cannot fail on a
// well-formed Image; it still returns an error for defensiveness against
// an AddressSpace too small to hold the image; on that failure the
// caller is expected to discard the whole AddressSpace rather than try
// to unmap individual pages, the same way the original's load() respons
// to failure by tearing down the whole fledgling page directory instead
// of backing out segment by segment.
func Load(img *Image, as *vm.AddressSpace) (entry uint32, err error) {
	for _, p := range img.Phdrs {
		if !p.Loadable() {
			continue
		}
		if err := mapSegment(img.data, p, as); err != nil {
			return 0, err
		}
	}
	return img.Header.Entry, nil
}

func mapSegment(data []byte, p ProgramHeader, as *vm.AddressSpace) error {
	pages := int((p.Memsz + vm.PageSize - 1) / vm.PageSize)
	for i := 0; i < pages; i++ {
		pageVaddr := int(p.Vaddr) + i*vm.PageSize
		fileOff := int64(p.Offset) + int64(i)*vm.PageSize
		fileRemaining := int64(p.Filesz) - int64(i)*vm.PageSize

		var pageData []byte
		if fileRemaining > 0 {
			n := fileRemaining
			if n > vm.PageSize {
				n = vm.PageSize
			}
			pageData = data[fileOff : fileOff+n]
		}
		if err := as.InstallPage(pageVaddr, pageData, p.Writable(), p.Executable()); err != nil {
			return err
		}
	}
	return nil
}
