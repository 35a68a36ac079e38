// Package cil reads ECMA-335 metadata from .NET binary images. It operates
// on a fully in-memory copy of the image bytes and never keeps a descriptor
// on the originating file, so images can be rebuilt or deleted as soon as
// the owning sandbox releases them.
package cil

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotManagedImage is returned when the bytes are not a valid
	// managed (CLI) binary image.
	ErrNotManagedImage = errors.New("cil: not a managed image")

	// ErrMalformed is returned when metadata structures reference data
	// outside the image or violate the documented layout.
	ErrMalformed = errors.New("cil: malformed metadata")
)

const metadataSignature = 0x424A5342 // "BSJB"

// Metadata gives access to the metadata root of one image: its heaps and
// its table stream.
type Metadata struct {
	Version string

	strings []byte
	blobs   []byte
	guids   []byte
	us      []byte

	tables *tableStream

	// lazily built indexes, see index.go
	nested    map[uint32]uint32
	semantics map[uint32]Accessors
	attrs     map[uint32][]string
}

// NewMetadata parses a raw metadata root blob (the content of the CLI
// header's MetaData directory).
func NewMetadata(data []byte) (*Metadata, error) {
	r := byteReader{data: data}

	sig, err := r.u32()
	if err != nil || sig != metadataSignature {
		return nil, ErrNotManagedImage
	}
	if _, err := r.u16(); err != nil { // major
		return nil, ErrMalformed
	}
	if _, err := r.u16(); err != nil { // minor
		return nil, ErrMalformed
	}
	if _, err := r.u32(); err != nil { // reserved
		return nil, ErrMalformed
	}
	verLen, err := r.u32()
	if err != nil || verLen > uint32(len(data)) {
		return nil, ErrMalformed
	}
	verBytes, err := r.bytes(int(verLen))
	if err != nil {
		return nil, ErrMalformed
	}
	version := cString(verBytes)

	if _, err := r.u16(); err != nil { // flags
		return nil, ErrMalformed
	}
	streamCount, err := r.u16()
	if err != nil {
		return nil, ErrMalformed
	}

	md := &Metadata{Version: version}
	var tableData []byte
	for i := 0; i < int(streamCount); i++ {
		off, err := r.u32()
		if err != nil {
			return nil, ErrMalformed
		}
		size, err := r.u32()
		if err != nil {
			return nil, ErrMalformed
		}
		name, err := r.streamName()
		if err != nil {
			return nil, ErrMalformed
		}
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: stream %q out of bounds", ErrMalformed, name)
		}
		content := data[off : off+size]
		switch name {
		case "#Strings":
			md.strings = content
		case "#Blob":
			md.blobs = content
		case "#GUID":
			md.guids = content
		case "#US":
			md.us = content
		case "#~", "#-":
			tableData = content
		}
	}
	if tableData == nil {
		return nil, fmt.Errorf("%w: no table stream", ErrMalformed)
	}

	ts, err := parseTableStream(tableData)
	if err != nil {
		return nil, err
	}
	md.tables = ts
	return md, nil
}

// RowCount reports the number of rows in a table.
func (m *Metadata) RowCount(t TableID) uint32 {
	return m.tables.rowCounts[t]
}

// String resolves an index into the #Strings heap.
func (m *Metadata) String(off uint32) (string, error) {
	if off >= uint32(len(m.strings)) {
		return "", fmt.Errorf("%w: string offset %d", ErrMalformed, off)
	}
	return cString(m.strings[off:]), nil
}

// Blob resolves an index into the #Blob heap, stripping the compressed
// length header.
func (m *Metadata) Blob(off uint32) ([]byte, error) {
	if off >= uint32(len(m.blobs)) {
		return nil, fmt.Errorf("%w: blob offset %d", ErrMalformed, off)
	}
	r := byteReader{data: m.blobs, pos: int(off)}
	n, err := r.compressedUint()
	if err != nil {
		return nil, fmt.Errorf("%w: blob length at %d", ErrMalformed, off)
	}
	if r.pos+int(n) > len(m.blobs) {
		return nil, fmt.Errorf("%w: blob at %d overruns heap", ErrMalformed, off)
	}
	return m.blobs[r.pos : r.pos+int(n)], nil
}

// cString reads a null-terminated string from the start of b.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// byteReader is a bounds-checked little-endian cursor. Every read reports
// an error instead of panicking so malformed images degrade cleanly.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrMalformed
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// streamName reads a stream header name: null-terminated ASCII padded to a
// four-byte boundary.
func (r *byteReader) streamName() (string, error) {
	start := r.pos
	for {
		c, err := r.u8()
		if err != nil {
			return "", err
		}
		if c == 0 {
			break
		}
		if r.pos-start >= 32 {
			return "", ErrMalformed
		}
	}
	name := cString(r.data[start:r.pos])
	for (r.pos-start)%4 != 0 {
		if _, err := r.u8(); err != nil {
			return "", err
		}
	}
	return name, nil
}

// compressedUint decodes the ECMA-335 II.23.2 variable-length unsigned
// integer encoding.
func (r *byteReader) compressedUint() (uint32, error) {
	b0, err := r.u8()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.u8()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		b, err := r.bytes(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
	default:
		return 0, ErrMalformed
	}
}
