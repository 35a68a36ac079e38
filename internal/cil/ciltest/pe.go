package ciltest

import "encoding/binary"

// PE wraps the builder's metadata blob in a minimal PE64 envelope with a
// CLI header, producing bytes cil.LoadImage accepts. The layout is one
// .text section holding the CLI header followed by the metadata root.
func (b *Builder) PE() []byte {
	md := b.Bytes()

	const (
		peOffset    = 0x80
		headerStart = peOffset + 4
		optSize     = 240 // PE32+ with 16 data directories
		sectionHdr  = headerStart + 20 + optSize
		rawOffset   = 0x200
		sectionRVA  = 0x2000
		cliSize     = 72
	)
	payload := cliSize + len(md)
	out := make([]byte, rawOffset+payload)

	u16 := binary.LittleEndian.PutUint16
	u32 := binary.LittleEndian.PutUint32
	u64 := binary.LittleEndian.PutUint64

	// DOS stub
	copy(out, "MZ")
	u32(out[0x3C:], peOffset)

	// COFF header
	copy(out[peOffset:], "PE\x00\x00")
	u16(out[headerStart:], 0x8664) // machine: amd64
	u16(out[headerStart+2:], 1)    // one section
	u16(out[headerStart+16:], optSize)
	u16(out[headerStart+18:], 0x2022) // executable | dll

	// optional header (PE32+)
	opt := headerStart + 20
	u16(out[opt:], 0x20B) // magic
	u64(out[opt+24:], 0x180000000)
	u32(out[opt+32:], 0x2000)                                        // section alignment
	u32(out[opt+36:], 0x200)                                         // file alignment
	u32(out[opt+56:], uint32(sectionRVA+((payload+0x1FFF)&^0x1FFF))) // size of image
	u32(out[opt+60:], rawOffset)                                     // size of headers
	u16(out[opt+68:], 3)                                             // subsystem: console
	u32(out[opt+108:], 16)                                           // rva-and-sizes count
	// data directory 14: COM descriptor
	u32(out[opt+112+14*8:], sectionRVA)
	u32(out[opt+112+14*8+4:], cliSize)

	// section header
	copy(out[sectionHdr:], ".text")
	u32(out[sectionHdr+8:], uint32(payload)) // virtual size
	u32(out[sectionHdr+12:], sectionRVA)
	u32(out[sectionHdr+16:], uint32(payload)) // raw size
	u32(out[sectionHdr+20:], rawOffset)
	u32(out[sectionHdr+36:], 0x60000020) // code | execute | read

	// CLI header
	cli := rawOffset
	u32(out[cli:], cliSize)
	u16(out[cli+4:], 2) // runtime major
	u16(out[cli+6:], 5) // runtime minor
	u32(out[cli+8:], uint32(sectionRVA+cliSize))
	u32(out[cli+12:], uint32(len(md)))
	u32(out[cli+16:], 1) // ILONLY

	copy(out[rawOffset+cliSize:], md)
	return out
}
