package cil

import "fmt"

// TypeDef flag masks (ECMA-335 II.23.1.15).
const (
	TypeVisibilityMask uint32 = 0x00000007
	TypeNotPublic      uint32 = 0x00000000
	TypePublic         uint32 = 0x00000001
	TypeNestedPublic   uint32 = 0x00000002
	TypeInterface      uint32 = 0x00000020
	TypeAbstract       uint32 = 0x00000080
	TypeSealed         uint32 = 0x00000100
)

// Field flag masks (II.23.1.5).
const (
	FieldAccessMask uint16 = 0x0007
	FieldPublic     uint16 = 0x0006
	FieldStatic     uint16 = 0x0010
	FieldInitOnly   uint16 = 0x0020
	FieldLiteral    uint16 = 0x0040
)

// Method flag masks (II.23.1.10).
const (
	MethodAccessMask  uint16 = 0x0007
	MethodPublic      uint16 = 0x0006
	MethodStatic      uint16 = 0x0010
	MethodFinal       uint16 = 0x0020
	MethodVirtual     uint16 = 0x0040
	MethodNewSlot     uint16 = 0x0100
	MethodAbstract    uint16 = 0x0400
	MethodSpecialName uint16 = 0x0800
)

// Param flag masks (II.23.1.13).
const (
	ParamOut        uint16 = 0x0002
	ParamOptional   uint16 = 0x0010
	ParamHasDefault uint16 = 0x1000
)

// MethodSemantics flag masks (II.23.1.12).
const (
	SemSetter   uint16 = 0x0001
	SemGetter   uint16 = 0x0002
	SemAddOn    uint16 = 0x0008
	SemRemoveOn uint16 = 0x0010
)

// ExportedType visibility uses the TypeDef visibility mask; forwarders
// carry this flag (II.22.14).
const ExportedTypeForwarder uint32 = 0x00200000

// Range is a half-open 1-based row interval [Start, End).
type Range struct {
	Start uint32
	End   uint32
}

// Len reports the number of rows in the range.
func (r Range) Len() int { return int(r.End - r.Start) }

// listRange resolves a member-list column: the list runs from this row's
// value up to the next row's value, or to the end of the target table for
// the last row.
func (m *Metadata) listRange(t TableID, row uint32, col int, target TableID) (Range, error) {
	start, err := m.cell(t, row, col)
	if err != nil {
		return Range{}, err
	}
	end := m.RowCount(target) + 1
	if row < m.RowCount(t) {
		next, err := m.cell(t, row+1, col)
		if err != nil {
			return Range{}, err
		}
		end = next
	}
	if start == 0 || end < start {
		return Range{}, fmt.Errorf("%w: list range on table 0x%02X row %d", ErrMalformed, t, row)
	}
	return Range{Start: start, End: end}, nil
}

// TypeDefRow is one row of the TypeDef table.
type TypeDefRow struct {
	Row       uint32
	Flags     uint32
	Name      string
	Namespace string
	Extends   Ref
	Fields    Range
	Methods   Range
}

// TypeDef reads TypeDef row i (1-based).
func (m *Metadata) TypeDef(i uint32) (TypeDefRow, error) {
	flags, err := m.cell(TableTypeDef, i, 0)
	if err != nil {
		return TypeDefRow{}, err
	}
	name, err := m.cellString(TableTypeDef, i, 1)
	if err != nil {
		return TypeDefRow{}, err
	}
	ns, err := m.cellString(TableTypeDef, i, 2)
	if err != nil {
		return TypeDefRow{}, err
	}
	extends, err := m.cellCoded(TableTypeDef, i, 3)
	if err != nil {
		return TypeDefRow{}, err
	}
	fields, err := m.listRange(TableTypeDef, i, 4, TableField)
	if err != nil {
		return TypeDefRow{}, err
	}
	methods, err := m.listRange(TableTypeDef, i, 5, TableMethodDef)
	if err != nil {
		return TypeDefRow{}, err
	}
	return TypeDefRow{Row: i, Flags: flags, Name: name, Namespace: ns, Extends: extends, Fields: fields, Methods: methods}, nil
}

// TypeRefRow is one row of the TypeRef table.
type TypeRefRow struct {
	Scope     Ref
	Name      string
	Namespace string
}

// TypeRef reads TypeRef row i.
func (m *Metadata) TypeRef(i uint32) (TypeRefRow, error) {
	scope, err := m.cellCoded(TableTypeRef, i, 0)
	if err != nil {
		return TypeRefRow{}, err
	}
	name, err := m.cellString(TableTypeRef, i, 1)
	if err != nil {
		return TypeRefRow{}, err
	}
	ns, err := m.cellString(TableTypeRef, i, 2)
	if err != nil {
		return TypeRefRow{}, err
	}
	return TypeRefRow{Scope: scope, Name: name, Namespace: ns}, nil
}

// FieldRow is one row of the Field table.
type FieldRow struct {
	Flags     uint16
	Name      string
	Signature []byte
}

// Field reads Field row i.
func (m *Metadata) Field(i uint32) (FieldRow, error) {
	flags, err := m.cell(TableField, i, 0)
	if err != nil {
		return FieldRow{}, err
	}
	name, err := m.cellString(TableField, i, 1)
	if err != nil {
		return FieldRow{}, err
	}
	sig, err := m.cellBlob(TableField, i, 2)
	if err != nil {
		return FieldRow{}, err
	}
	return FieldRow{Flags: uint16(flags), Name: name, Signature: sig}, nil
}

// MethodDefRow is one row of the MethodDef table.
type MethodDefRow struct {
	Row       uint32
	ImplFlags uint16
	Flags     uint16
	Name      string
	Signature []byte
	Params    Range
}

// MethodDef reads MethodDef row i.
func (m *Metadata) MethodDef(i uint32) (MethodDefRow, error) {
	implFlags, err := m.cell(TableMethodDef, i, 1)
	if err != nil {
		return MethodDefRow{}, err
	}
	flags, err := m.cell(TableMethodDef, i, 2)
	if err != nil {
		return MethodDefRow{}, err
	}
	name, err := m.cellString(TableMethodDef, i, 3)
	if err != nil {
		return MethodDefRow{}, err
	}
	sig, err := m.cellBlob(TableMethodDef, i, 4)
	if err != nil {
		return MethodDefRow{}, err
	}
	params, err := m.listRange(TableMethodDef, i, 5, TableParam)
	if err != nil {
		return MethodDefRow{}, err
	}
	return MethodDefRow{Row: i, ImplFlags: uint16(implFlags), Flags: uint16(flags), Name: name, Signature: sig, Params: params}, nil
}

// ParamRow is one row of the Param table.
type ParamRow struct {
	Row      uint32
	Flags    uint16
	Sequence uint16
	Name     string
}

// Param reads Param row i.
func (m *Metadata) Param(i uint32) (ParamRow, error) {
	flags, err := m.cell(TableParam, i, 0)
	if err != nil {
		return ParamRow{}, err
	}
	seq, err := m.cell(TableParam, i, 1)
	if err != nil {
		return ParamRow{}, err
	}
	name, err := m.cellString(TableParam, i, 2)
	if err != nil {
		return ParamRow{}, err
	}
	return ParamRow{Row: i, Flags: uint16(flags), Sequence: uint16(seq), Name: name}, nil
}

// InterfaceImplRow is one row of the InterfaceImpl table.
type InterfaceImplRow struct {
	Class     uint32
	Interface Ref
}

// InterfaceImpl reads InterfaceImpl row i.
func (m *Metadata) InterfaceImpl(i uint32) (InterfaceImplRow, error) {
	class, err := m.cell(TableInterfaceImpl, i, 0)
	if err != nil {
		return InterfaceImplRow{}, err
	}
	iface, err := m.cellCoded(TableInterfaceImpl, i, 1)
	if err != nil {
		return InterfaceImplRow{}, err
	}
	return InterfaceImplRow{Class: class, Interface: iface}, nil
}

// MemberRefRow is one row of the MemberRef table.
type MemberRefRow struct {
	Class     Ref
	Name      string
	Signature []byte
}

// MemberRef reads MemberRef row i.
func (m *Metadata) MemberRef(i uint32) (MemberRefRow, error) {
	class, err := m.cellCoded(TableMemberRef, i, 0)
	if err != nil {
		return MemberRefRow{}, err
	}
	name, err := m.cellString(TableMemberRef, i, 1)
	if err != nil {
		return MemberRefRow{}, err
	}
	sig, err := m.cellBlob(TableMemberRef, i, 2)
	if err != nil {
		return MemberRefRow{}, err
	}
	return MemberRefRow{Class: class, Name: name, Signature: sig}, nil
}

// PropertyRow is one row of the Property table.
type PropertyRow struct {
	Row       uint32
	Flags     uint16
	Name      string
	Signature []byte
}

// Property reads Property row i.
func (m *Metadata) Property(i uint32) (PropertyRow, error) {
	flags, err := m.cell(TableProperty, i, 0)
	if err != nil {
		return PropertyRow{}, err
	}
	name, err := m.cellString(TableProperty, i, 1)
	if err != nil {
		return PropertyRow{}, err
	}
	sig, err := m.cellBlob(TableProperty, i, 2)
	if err != nil {
		return PropertyRow{}, err
	}
	return PropertyRow{Row: i, Flags: uint16(flags), Name: name, Signature: sig}, nil
}

// EventRow is one row of the Event table.
type EventRow struct {
	Row       uint32
	Flags     uint16
	Name      string
	EventType Ref
}

// Event reads Event row i.
func (m *Metadata) Event(i uint32) (EventRow, error) {
	flags, err := m.cell(TableEvent, i, 0)
	if err != nil {
		return EventRow{}, err
	}
	name, err := m.cellString(TableEvent, i, 1)
	if err != nil {
		return EventRow{}, err
	}
	et, err := m.cellCoded(TableEvent, i, 2)
	if err != nil {
		return EventRow{}, err
	}
	return EventRow{Row: i, Flags: uint16(flags), Name: name, EventType: et}, nil
}

// PropertyRange returns the Property rows owned by TypeDef row typeDef,
// or an empty range when the type has no PropertyMap entry.
func (m *Metadata) PropertyRange(typeDef uint32) (Range, error) {
	return m.mapRange(TablePropertyMap, TableProperty, typeDef)
}

// EventRange returns the Event rows owned by TypeDef row typeDef.
func (m *Metadata) EventRange(typeDef uint32) (Range, error) {
	return m.mapRange(TableEventMap, TableEvent, typeDef)
}

func (m *Metadata) mapRange(mapTable, itemTable TableID, typeDef uint32) (Range, error) {
	n := m.RowCount(mapTable)
	for i := uint32(1); i <= n; i++ {
		parent, err := m.cell(mapTable, i, 0)
		if err != nil {
			return Range{}, err
		}
		if parent != typeDef {
			continue
		}
		return m.listRange(mapTable, i, 1, itemTable)
	}
	return Range{Start: 1, End: 1}, nil
}

// GenericParamRow is one row of the GenericParam table.
type GenericParamRow struct {
	Number uint16
	Flags  uint16
	Owner  Ref
	Name   string
}

// GenericParam reads GenericParam row i.
func (m *Metadata) GenericParam(i uint32) (GenericParamRow, error) {
	number, err := m.cell(TableGenericParam, i, 0)
	if err != nil {
		return GenericParamRow{}, err
	}
	flags, err := m.cell(TableGenericParam, i, 1)
	if err != nil {
		return GenericParamRow{}, err
	}
	owner, err := m.cellCoded(TableGenericParam, i, 2)
	if err != nil {
		return GenericParamRow{}, err
	}
	name, err := m.cellString(TableGenericParam, i, 3)
	if err != nil {
		return GenericParamRow{}, err
	}
	return GenericParamRow{Number: uint16(number), Flags: uint16(flags), Owner: owner, Name: name}, nil
}

// ExportedTypeRow is one row of the ExportedType table.
type ExportedTypeRow struct {
	Flags          uint32
	TypeName       string
	TypeNamespace  string
	Implementation Ref
}

// ExportedType reads ExportedType row i.
func (m *Metadata) ExportedType(i uint32) (ExportedTypeRow, error) {
	flags, err := m.cell(TableExportedType, i, 0)
	if err != nil {
		return ExportedTypeRow{}, err
	}
	name, err := m.cellString(TableExportedType, i, 2)
	if err != nil {
		return ExportedTypeRow{}, err
	}
	ns, err := m.cellString(TableExportedType, i, 3)
	if err != nil {
		return ExportedTypeRow{}, err
	}
	impl, err := m.cellCoded(TableExportedType, i, 4)
	if err != nil {
		return ExportedTypeRow{}, err
	}
	return ExportedTypeRow{Flags: flags, TypeName: name, TypeNamespace: ns, Implementation: impl}, nil
}

// AssemblyRefName returns the simple name of AssemblyRef row i.
func (m *Metadata) AssemblyRefName(i uint32) (string, error) {
	return m.cellString(TableAssemblyRef, i, 6)
}

// AssemblyName returns the simple name declared by the Assembly table,
// or "" when the image has no assembly manifest.
func (m *Metadata) AssemblyName() (string, error) {
	if m.RowCount(TableAssembly) == 0 {
		return "", nil
	}
	return m.cellString(TableAssembly, 1, 7)
}
