package cil

import (
	"encoding/binary"
	"fmt"
)

// TableID identifies one metadata table (ECMA-335 II.22).
type TableID uint8

const (
	TableModule                 TableID = 0x00
	TableTypeRef                TableID = 0x01
	TableTypeDef                TableID = 0x02
	TableFieldPtr               TableID = 0x03
	TableField                  TableID = 0x04
	TableMethodPtr              TableID = 0x05
	TableMethodDef              TableID = 0x06
	TableParamPtr               TableID = 0x07
	TableParam                  TableID = 0x08
	TableInterfaceImpl          TableID = 0x09
	TableMemberRef              TableID = 0x0A
	TableConstant               TableID = 0x0B
	TableCustomAttribute        TableID = 0x0C
	TableFieldMarshal           TableID = 0x0D
	TableDeclSecurity           TableID = 0x0E
	TableClassLayout            TableID = 0x0F
	TableFieldLayout            TableID = 0x10
	TableStandAloneSig          TableID = 0x11
	TableEventMap               TableID = 0x12
	TableEventPtr               TableID = 0x13
	TableEvent                  TableID = 0x14
	TablePropertyMap            TableID = 0x15
	TablePropertyPtr            TableID = 0x16
	TableProperty               TableID = 0x17
	TableMethodSemantics        TableID = 0x18
	TableMethodImpl             TableID = 0x19
	TableModuleRef              TableID = 0x1A
	TableTypeSpec               TableID = 0x1B
	TableImplMap                TableID = 0x1C
	TableFieldRVA               TableID = 0x1D
	TableEncLog                 TableID = 0x1E
	TableEncMap                 TableID = 0x1F
	TableAssembly               TableID = 0x20
	TableAssemblyProcessor      TableID = 0x21
	TableAssemblyOS             TableID = 0x22
	TableAssemblyRef            TableID = 0x23
	TableAssemblyRefProcessor   TableID = 0x24
	TableAssemblyRefOS          TableID = 0x25
	TableFile                   TableID = 0x26
	TableExportedType           TableID = 0x27
	TableManifestResource       TableID = 0x28
	TableNestedClass            TableID = 0x29
	TableGenericParam           TableID = 0x2A
	TableMethodSpec             TableID = 0x2B
	TableGenericParamConstraint TableID = 0x2C

	tableMax = 0x2D
)

// codedKind identifies one coded-index encoding (ECMA-335 II.24.2.6).
type codedKind uint8

const (
	codedTypeDefOrRef codedKind = iota
	codedHasConstant
	codedHasCustomAttribute
	codedHasFieldMarshal
	codedHasDeclSecurity
	codedMemberRefParent
	codedHasSemantics
	codedMethodDefOrRef
	codedMemberForwarded
	codedImplementation
	codedCustomAttributeType
	codedResolutionScope
	codedTypeOrMethodDef
	codedKindCount
)

// tableNone marks an unused slot in a coded-index member list.
const tableNone TableID = 0xFF

type codedDesc struct {
	bits   uint
	tables []TableID
}

var codedDescs = [codedKindCount]codedDesc{
	codedTypeDefOrRef: {2, []TableID{TableTypeDef, TableTypeRef, TableTypeSpec}},
	codedHasConstant:  {2, []TableID{TableField, TableParam, TableProperty}},
	codedHasCustomAttribute: {5, []TableID{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
		TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity,
		TableProperty, TableEvent, TableStandAloneSig, TableModuleRef,
		TableTypeSpec, TableAssembly, TableAssemblyRef, TableFile,
		TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec,
	}},
	codedHasFieldMarshal: {1, []TableID{TableField, TableParam}},
	codedHasDeclSecurity: {2, []TableID{TableTypeDef, TableMethodDef, TableAssembly}},
	codedMemberRefParent: {3, []TableID{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}},
	codedHasSemantics:    {1, []TableID{TableEvent, TableProperty}},
	codedMethodDefOrRef:  {1, []TableID{TableMethodDef, TableMemberRef}},
	codedMemberForwarded: {1, []TableID{TableField, TableMethodDef}},
	codedImplementation:  {2, []TableID{TableFile, TableAssemblyRef, TableExportedType}},
	codedCustomAttributeType: {3, []TableID{
		tableNone, tableNone, TableMethodDef, TableMemberRef, tableNone,
	}},
	codedResolutionScope: {2, []TableID{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}},
	codedTypeOrMethodDef: {1, []TableID{TableTypeDef, TableMethodDef}},
}

// Ref points at one row of one table. Row indexes are 1-based; Row == 0
// means "null reference".
type Ref struct {
	Table TableID
	Row   uint32
}

// IsNil reports whether the reference is null.
func (r Ref) IsNil() bool { return r.Row == 0 }

type columnKind uint8

const (
	colU16 columnKind = iota
	colU32
	colString
	colGUID
	colBlob
	colTable
	colCoded
)

type column struct {
	kind  columnKind
	table TableID   // colTable target
	coded codedKind // colCoded encoding
}

func u16c() column            { return column{kind: colU16} }
func u32c() column            { return column{kind: colU32} }
func strc() column            { return column{kind: colString} }
func guidc() column           { return column{kind: colGUID} }
func blobc() column           { return column{kind: colBlob} }
func tblc(t TableID) column   { return column{kind: colTable, table: t} }
func codc(k codedKind) column { return column{kind: colCoded, coded: k} }

// schemas lists every table's column layout. Row sizes of all present
// tables are needed to locate any table's data, so the list is complete
// even though only a subset is ever read.
var schemas = [tableMax][]column{
	TableModule:                 {u16c(), strc(), guidc(), guidc(), guidc()},
	TableTypeRef:                {codc(codedResolutionScope), strc(), strc()},
	TableTypeDef:                {u32c(), strc(), strc(), codc(codedTypeDefOrRef), tblc(TableField), tblc(TableMethodDef)},
	TableFieldPtr:               {tblc(TableField)},
	TableField:                  {u16c(), strc(), blobc()},
	TableMethodPtr:              {tblc(TableMethodDef)},
	TableMethodDef:              {u32c(), u16c(), u16c(), strc(), blobc(), tblc(TableParam)},
	TableParamPtr:               {tblc(TableParam)},
	TableParam:                  {u16c(), u16c(), strc()},
	TableInterfaceImpl:          {tblc(TableTypeDef), codc(codedTypeDefOrRef)},
	TableMemberRef:              {codc(codedMemberRefParent), strc(), blobc()},
	TableConstant:               {u16c(), codc(codedHasConstant), blobc()},
	TableCustomAttribute:        {codc(codedHasCustomAttribute), codc(codedCustomAttributeType), blobc()},
	TableFieldMarshal:           {codc(codedHasFieldMarshal), blobc()},
	TableDeclSecurity:           {u16c(), codc(codedHasDeclSecurity), blobc()},
	TableClassLayout:            {u16c(), u32c(), tblc(TableTypeDef)},
	TableFieldLayout:            {u32c(), tblc(TableField)},
	TableStandAloneSig:          {blobc()},
	TableEventMap:               {tblc(TableTypeDef), tblc(TableEvent)},
	TableEventPtr:               {tblc(TableEvent)},
	TableEvent:                  {u16c(), strc(), codc(codedTypeDefOrRef)},
	TablePropertyMap:            {tblc(TableTypeDef), tblc(TableProperty)},
	TablePropertyPtr:            {tblc(TableProperty)},
	TableProperty:               {u16c(), strc(), blobc()},
	TableMethodSemantics:        {u16c(), tblc(TableMethodDef), codc(codedHasSemantics)},
	TableMethodImpl:             {tblc(TableTypeDef), codc(codedMethodDefOrRef), codc(codedMethodDefOrRef)},
	TableModuleRef:              {strc()},
	TableTypeSpec:               {blobc()},
	TableImplMap:                {u16c(), codc(codedMemberForwarded), strc(), tblc(TableModuleRef)},
	TableFieldRVA:               {u32c(), tblc(TableField)},
	TableEncLog:                 {u32c(), u32c()},
	TableEncMap:                 {u32c()},
	TableAssembly:               {u32c(), u16c(), u16c(), u16c(), u16c(), u32c(), blobc(), strc(), strc()},
	TableAssemblyProcessor:      {u32c()},
	TableAssemblyOS:             {u32c(), u32c(), u32c()},
	TableAssemblyRef:            {u16c(), u16c(), u16c(), u16c(), u32c(), blobc(), strc(), strc(), blobc()},
	TableAssemblyRefProcessor:   {u32c(), tblc(TableAssemblyRef)},
	TableAssemblyRefOS:          {u32c(), u32c(), u32c(), tblc(TableAssemblyRef)},
	TableFile:                   {u32c(), strc(), blobc()},
	TableExportedType:           {u32c(), u32c(), strc(), strc(), codc(codedImplementation)},
	TableManifestResource:       {u32c(), u32c(), strc(), codc(codedImplementation)},
	TableNestedClass:            {tblc(TableTypeDef), tblc(TableTypeDef)},
	TableGenericParam:           {u16c(), u16c(), codc(codedTypeOrMethodDef), strc()},
	TableMethodSpec:             {codc(codedMethodDefOrRef), blobc()},
	TableGenericParamConstraint: {tblc(TableGenericParam), codc(codedTypeDefOrRef)},
}

const (
	heapWideStrings = 0x01
	heapWideGUIDs   = 0x02
	heapWideBlobs   = 0x04
)

type tableLayout struct {
	offset     int // into the table stream data
	rowSize    int
	colOffsets []int
	colSizes   []int
}

type tableStream struct {
	data      []byte
	heapSizes uint8
	rowCounts [tableMax]uint32
	layouts   [tableMax]tableLayout
}

// parseTableStream parses the #~ (or #-) stream header and computes the
// physical layout of every present table.
func parseTableStream(data []byte) (*tableStream, error) {
	r := byteReader{data: data}
	if _, err := r.u32(); err != nil { // reserved
		return nil, ErrMalformed
	}
	if _, err := r.u16(); err != nil { // major+minor version
		return nil, ErrMalformed
	}
	heapSizes, err := r.u8()
	if err != nil {
		return nil, ErrMalformed
	}
	if _, err := r.u8(); err != nil { // reserved
		return nil, ErrMalformed
	}
	valid, err := r.u64()
	if err != nil {
		return nil, ErrMalformed
	}
	if _, err := r.u64(); err != nil { // sorted
		return nil, ErrMalformed
	}

	ts := &tableStream{data: data, heapSizes: heapSizes}
	for t := 0; t < 64; t++ {
		if valid&(1<<uint(t)) == 0 {
			continue
		}
		n, err := r.u32()
		if err != nil {
			return nil, ErrMalformed
		}
		if t >= tableMax {
			return nil, fmt.Errorf("%w: unknown table 0x%02X present", ErrMalformed, t)
		}
		ts.rowCounts[t] = n
	}

	// Row data follows the counts, table by table in id order.
	offset := r.pos
	for t := TableID(0); t < tableMax; t++ {
		if ts.rowCounts[t] == 0 {
			continue
		}
		schema := schemas[t]
		if schema == nil {
			return nil, fmt.Errorf("%w: table 0x%02X has no schema", ErrMalformed, t)
		}
		layout := tableLayout{offset: offset}
		for _, col := range schema {
			size := ts.columnSize(col)
			layout.colOffsets = append(layout.colOffsets, layout.rowSize)
			layout.colSizes = append(layout.colSizes, size)
			layout.rowSize += size
		}
		total := layout.rowSize * int(ts.rowCounts[t])
		if offset+total > len(data) {
			return nil, fmt.Errorf("%w: table 0x%02X overruns stream", ErrMalformed, t)
		}
		ts.layouts[t] = layout
		offset += total
	}
	return ts, nil
}

func (ts *tableStream) columnSize(col column) int {
	switch col.kind {
	case colU16:
		return 2
	case colU32:
		return 4
	case colString:
		if ts.heapSizes&heapWideStrings != 0 {
			return 4
		}
		return 2
	case colGUID:
		if ts.heapSizes&heapWideGUIDs != 0 {
			return 4
		}
		return 2
	case colBlob:
		if ts.heapSizes&heapWideBlobs != 0 {
			return 4
		}
		return 2
	case colTable:
		if ts.rowCounts[col.table] > 0xFFFF {
			return 4
		}
		return 2
	case colCoded:
		desc := codedDescs[col.coded]
		limit := uint32(1) << (16 - desc.bits)
		for _, t := range desc.tables {
			if t != tableNone && ts.rowCounts[t] >= limit {
				return 4
			}
		}
		return 2
	}
	return 0
}

// raw returns the undecoded value of column col in row (1-based) of table t.
func (ts *tableStream) raw(t TableID, row uint32, col int) (uint32, error) {
	if row == 0 || row > ts.rowCounts[t] {
		return 0, fmt.Errorf("%w: row %d of table 0x%02X", ErrMalformed, row, t)
	}
	layout := ts.layouts[t]
	if col >= len(layout.colOffsets) {
		return 0, fmt.Errorf("%w: column %d of table 0x%02X", ErrMalformed, col, t)
	}
	pos := layout.offset + int(row-1)*layout.rowSize + layout.colOffsets[col]
	switch layout.colSizes[col] {
	case 2:
		if pos+2 > len(ts.data) {
			return 0, ErrMalformed
		}
		return uint32(binary.LittleEndian.Uint16(ts.data[pos:])), nil
	case 4:
		if pos+4 > len(ts.data) {
			return 0, ErrMalformed
		}
		return binary.LittleEndian.Uint32(ts.data[pos:]), nil
	}
	return 0, ErrMalformed
}

// cell reads column col of row (1-based) in table t as a raw value.
func (m *Metadata) cell(t TableID, row uint32, col int) (uint32, error) {
	return m.tables.raw(t, row, col)
}

// cellCoded decodes a coded-index column into a Ref.
func (m *Metadata) cellCoded(t TableID, row uint32, col int) (Ref, error) {
	v, err := m.cell(t, row, col)
	if err != nil {
		return Ref{}, err
	}
	desc := codedDescs[schemas[t][col].coded]
	tag := v & ((1 << desc.bits) - 1)
	rid := v >> desc.bits
	if int(tag) >= len(desc.tables) || desc.tables[tag] == tableNone {
		return Ref{}, fmt.Errorf("%w: coded index tag %d", ErrMalformed, tag)
	}
	return Ref{Table: desc.tables[tag], Row: rid}, nil
}

// cellString reads a #Strings-heap column.
func (m *Metadata) cellString(t TableID, row uint32, col int) (string, error) {
	v, err := m.cell(t, row, col)
	if err != nil {
		return "", err
	}
	return m.String(v)
}

// cellBlob reads a #Blob-heap column.
func (m *Metadata) cellBlob(t TableID, row uint32, col int) ([]byte, error) {
	v, err := m.cell(t, row, col)
	if err != nil {
		return nil, err
	}
	return m.Blob(v)
}
