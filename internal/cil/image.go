package cil

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

const comDescriptorEntry = 14 // IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR

// Image is one loaded managed binary image. It owns its byte buffer; no
// descriptor on the originating file survives LoadImage.
type Image struct {
	Name     string // assembly simple name, "" when unknown
	Metadata *Metadata

	data []byte
}

// LoadImage parses the given bytes as a managed PE image. The slice is
// retained by the returned Image; callers hand over ownership.
func LoadImage(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotManagedImage, err)
	}
	defer f.Close()

	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:]
	default:
		return nil, ErrNotManagedImage
	}
	if len(dirs) <= comDescriptorEntry || dirs[comDescriptorEntry].VirtualAddress == 0 {
		return nil, ErrNotManagedImage
	}

	cliOff, err := rvaToOffset(f, dirs[comDescriptorEntry].VirtualAddress)
	if err != nil {
		return nil, err
	}
	// CLI header: cb, runtime version, then the MetaData directory.
	if cliOff+16 > uint32(len(data)) {
		return nil, ErrMalformed
	}
	metaRVA := binary.LittleEndian.Uint32(data[cliOff+8:])
	metaSize := binary.LittleEndian.Uint32(data[cliOff+12:])
	metaOff, err := rvaToOffset(f, metaRVA)
	if err != nil {
		return nil, err
	}
	if uint64(metaOff)+uint64(metaSize) > uint64(len(data)) {
		return nil, ErrMalformed
	}

	md, err := NewMetadata(data[metaOff : metaOff+metaSize])
	if err != nil {
		return nil, err
	}
	name, err := md.AssemblyName()
	if err != nil {
		name = ""
	}
	return &Image{Name: name, Metadata: md, data: data}, nil
}

func rvaToOffset(f *pe.File, rva uint32) (uint32, error) {
	for _, s := range f.Sections {
		size := s.VirtualSize
		if size == 0 {
			size = s.Size
		}
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+size {
			return rva - s.VirtualAddress + s.Offset, nil
		}
	}
	return 0, fmt.Errorf("%w: RVA 0x%X outside all sections", ErrMalformed, rva)
}
