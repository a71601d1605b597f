package elf

import "encoding/binary"

// Synthesize builds a minimal, valid ELF32 LE executable with a single
// page-aligned PT_LOAD|R|X segment at vaddr, filled with code (padded
// with 0x90 NOPs to a whole page), and e_entry set to vaddr.
//
// Real Pintos binaries come from a cross-compiler; this kernel has none,
// so the only executables it can ever load are synthesized directly
// like this at boot — one per usermode.Registry builtin, so the loader
// still does real, fallible validation and mapping work before a
// builtin's registered Go closure ever gets a chance to run, rather than
// the filesystem step being skipped entirely for built-ins.
func Synthesize(vaddr uint32, code []byte) []byte {
	const segOffset = 4096 // one page, comfortably past the header+phdr

	pageCount := (len(code) + 4095) / 4096
	if pageCount == 0 {
		pageCount = 1
	}
	padded := make([]byte, pageCount*4096)
	copy(padded, code)
	for i := len(code); i < len(padded); i++ {
		padded[i] = 0x90
	}

	buf := make([]byte, headerLength+phdrLength)
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, magic2, magic3
	buf[4] = classELF32
	buf[5] = dataLittle
	buf[6] = versionCur
	binary.LittleEndian.PutUint16(buf[16:18], typeExec)
	binary.LittleEndian.PutUint16(buf[18:20], machine386)
	binary.LittleEndian.PutUint32(buf[20:24], versionCur)
	binary.LittleEndian.PutUint32(buf[24:28], vaddr)
	binary.LittleEndian.PutUint32(buf[28:32], headerLength)
	binary.LittleEndian.PutUint16(buf[42:44], phdrLength)
	binary.LittleEndian.PutUint16(buf[44:46], 1)

	ph := buf[headerLength : headerLength+phdrLength]
	binary.LittleEndian.PutUint32(ph[0:4], ptLoad)
	binary.LittleEndian.PutUint32(ph[4:8], segOffset)
	binary.LittleEndian.PutUint32(ph[8:12], vaddr)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(padded)))
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(padded)))
	binary.LittleEndian.PutUint32(ph[24:28], pfR|pfX)

	out := make([]byte, segOffset)
	copy(out, buf)
	return append(out, padded...)
}
