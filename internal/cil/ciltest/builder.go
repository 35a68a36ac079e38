// Package ciltest builds small synthetic metadata images for tests. The
// builder emits a real metadata root (heaps plus #~ stream) and can wrap
// it in a minimal PE envelope, so readers are exercised end to end
// without binary fixtures in the tree.
//
// The builder always emits narrow (2-byte) heap and table indexes, which
// is valid for the row and heap sizes tests produce.
package ciltest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
)

// MethodPrivate is the Private access value; the public value and the
// other method, field and type flags live in package cil.
const MethodPrivate uint16 = 0x0001

// FieldBuilder accumulates one field row.
type FieldBuilder struct {
	flags    uint16
	name     string
	sig      []byte
	required bool
}

type paramDef struct {
	flags    uint16
	seq      uint16
	name     string
	variadic bool
}

// MethodBuilder accumulates one method row.
type MethodBuilder struct {
	flags    uint16
	name     string
	sig      []byte
	params   []paramDef
	generics []string

	typeIndex   int
	methodIndex int
}

// AddParam declares a named parameter at 1-based sequence seq.
func (m *MethodBuilder) AddParam(seq uint16, name string, flags uint16) *MethodBuilder {
	m.params = append(m.params, paramDef{flags: flags, seq: seq, name: name})
	return m
}

// AddVariadicParam declares a parameter carrying ParamArrayAttribute.
func (m *MethodBuilder) AddVariadicParam(seq uint16, name string) *MethodBuilder {
	m.params = append(m.params, paramDef{seq: seq, name: name, variadic: true})
	return m
}

// AddGenericParam declares a method-level generic parameter.
func (m *MethodBuilder) AddGenericParam(name string) *MethodBuilder {
	m.generics = append(m.generics, name)
	return m
}

// PropertyBuilder accumulates one property row and its accessor links.
type PropertyBuilder struct {
	name     string
	sig      []byte
	getter   *MethodBuilder
	setter   *MethodBuilder
	required bool
}

type eventDef struct {
	name    string
	handler uint32 // coded TypeDefOrRef
	adder   *MethodBuilder
	remover *MethodBuilder
}

// TypeBuilder accumulates one TypeDef row and its members.
type TypeBuilder struct {
	index      int
	flags      uint32
	name       string
	namespace  string
	extends    uint32 // coded TypeDefOrRef, 0 for none
	interfaces []uint32
	fields     []*FieldBuilder
	methods    []*MethodBuilder
	properties []*PropertyBuilder
	events     []*eventDef
	generics   []string
	enclosing  int // TypeDef index of the outer type, -1 for top-level
}

// AddField declares a field. Returns the builder for Required chaining.
func (t *TypeBuilder) AddField(flags uint16, name string, sig []byte) *FieldBuilder {
	f := &FieldBuilder{flags: flags, name: name, sig: sig}
	t.fields = append(t.fields, f)
	return f
}

// Required marks the field with RequiredMemberAttribute.
func (f *FieldBuilder) Required() *FieldBuilder {
	f.required = true
	return f
}

// AddMethod declares a method with the given signature blob.
func (t *TypeBuilder) AddMethod(flags uint16, name string, sig []byte) *MethodBuilder {
	m := &MethodBuilder{flags: flags, name: name, sig: sig, typeIndex: t.index, methodIndex: len(t.methods)}
	t.methods = append(t.methods, m)
	return m
}

// AddProperty declares a property. Either accessor may be nil.
func (t *TypeBuilder) AddProperty(name string, sig []byte, getter, setter *MethodBuilder) *PropertyBuilder {
	p := &PropertyBuilder{name: name, sig: sig, getter: getter, setter: setter}
	t.properties = append(t.properties, p)
	return p
}

// Required marks the property with RequiredMemberAttribute.
func (p *PropertyBuilder) Required() *PropertyBuilder {
	p.required = true
	return p
}

// AddEvent declares an event with add/remove accessors.
func (t *TypeBuilder) AddEvent(name string, handler uint32, adder, remover *MethodBuilder) {
	t.events = append(t.events, &eventDef{name: name, handler: handler, adder: adder, remover: remover})
}

// AddInterface records an implemented interface (coded TypeDefOrRef).
func (t *TypeBuilder) AddInterface(coded uint32) {
	t.interfaces = append(t.interfaces, coded)
}

// AddGenericParam declares a type-level generic parameter.
func (t *TypeBuilder) AddGenericParam(name string) *TypeBuilder {
	t.generics = append(t.generics, name)
	return t
}

type typeRefDef struct {
	scope     uint32 // coded ResolutionScope
	name      string
	namespace string
}

type semRow struct {
	sem    uint16
	method uint32
	assoc  uint32 // coded HasSemantics
}

type gpRow struct {
	number uint16
	owner  uint32 // coded TypeOrMethodDef
	name   string
}

type forwarderDef struct {
	flags     uint32
	name      string
	namespace string
	asmRef    uint32
}

// Builder accumulates a whole synthetic assembly.
type Builder struct {
	assemblyName string
	typeRefs     []typeRefDef
	assemblyRefs []string
	types        []*TypeBuilder
	forwarders   []forwarderDef

	attrTypeRefs map[string]uint32 // attribute name -> MemberRef rid, assigned in Bytes
}

// NewBuilder starts an assembly with the given simple name.
func NewBuilder(assemblyName string) *Builder {
	return &Builder{assemblyName: assemblyName}
}

// AddAssemblyRef declares a referenced assembly and returns its rid.
func (b *Builder) AddAssemblyRef(name string) uint32 {
	b.assemblyRefs = append(b.assemblyRefs, name)
	return uint32(len(b.assemblyRefs))
}

// AddTypeRef declares a type reference scoped to an AssemblyRef rid and
// returns the TypeRef rid.
func (b *Builder) AddTypeRef(asmRef uint32, namespace, name string) uint32 {
	b.typeRefs = append(b.typeRefs, typeRefDef{
		scope:     asmRef<<2 | 2, // ResolutionScope: AssemblyRef
		name:      name,
		namespace: namespace,
	})
	return uint32(len(b.typeRefs))
}

// TypeRefCoded returns the TypeDefOrRef coded index for a TypeRef rid,
// as stored in table columns.
func TypeRefCoded(rid uint32) uint32 { return rid<<2 | 1 }

// TypeDefCoded returns the TypeDefOrRef coded index for a TypeDef rid.
func TypeDefCoded(rid uint32) uint32 { return rid << 2 }

// AddType declares a top-level type and returns its builder.
func (b *Builder) AddType(namespace, name string, flags uint32, extends uint32) *TypeBuilder {
	t := &TypeBuilder{
		index:     len(b.types),
		flags:     flags,
		name:      name,
		namespace: namespace,
		extends:   extends,
		enclosing: -1,
	}
	b.types = append(b.types, t)
	return t
}

// AddNestedType declares a type nested in outer.
func (b *Builder) AddNestedType(outer *TypeBuilder, name string, flags uint32) *TypeBuilder {
	t := b.AddType("", name, flags, 0)
	t.enclosing = outer.index
	return t
}

// AddForwarder declares a type forwarder to an AssemblyRef rid. Only the
// forwarder flag is set, matching what compilers emit (II.22.14).
func (b *Builder) AddForwarder(namespace, name string, asmRef uint32) {
	b.forwarders = append(b.forwarders, forwarderDef{
		flags:     cil.ExportedTypeForwarder,
		name:      name,
		namespace: namespace,
		asmRef:    asmRef,
	})
}

// Metadata builds the blob and parses it back through cil.NewMetadata.
func (b *Builder) Metadata() (*cil.Metadata, error) {
	return cil.NewMetadata(b.Bytes())
}

// heap builders

type stringHeap struct {
	buf  bytes.Buffer
	seen map[string]uint32
}

func newStringHeap() *stringHeap {
	h := &stringHeap{seen: map[string]uint32{"": 0}}
	h.buf.WriteByte(0)
	return h
}

func (h *stringHeap) ref(s string) uint32 {
	if off, ok := h.seen[s]; ok {
		return off
	}
	off := uint32(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.seen[s] = off
	return off
}

type blobHeap struct {
	buf bytes.Buffer
}

func newBlobHeap() *blobHeap {
	h := &blobHeap{}
	h.buf.WriteByte(0)
	return h
}

func (h *blobHeap) ref(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	if len(data) >= 0x80 {
		panic("ciltest: blob too large for test builder")
	}
	off := uint32(h.buf.Len())
	h.buf.WriteByte(byte(len(data)))
	h.buf.Write(data)
	return off
}

// row writer

type rowWriter struct {
	buf bytes.Buffer
}

func (w *rowWriter) u16(v uint32) {
	if v > 0xFFFF {
		panic(fmt.Sprintf("ciltest: value %d too large for narrow index", v))
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

func (w *rowWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Bytes lays out the heaps and tables and returns the metadata root blob.
func (b *Builder) Bytes() []byte {
	strs := newStringHeap()
	blobs := newBlobHeap()

	// Global member layout: fields, methods and params are contiguous
	// per declaring type, in declaration order.
	type methodLayout struct {
		m          *MethodBuilder
		paramStart uint32
	}
	var (
		fieldRows   []*FieldBuilder
		methodRows  []methodLayout
		paramRows   []paramDef
		fieldStart  = make([]uint32, len(b.types))
		methodStart = make([]uint32, len(b.types))
	)
	methodRID := func(m *MethodBuilder) uint32 {
		return methodStart[m.typeIndex] + uint32(m.methodIndex)
	}
	for i, t := range b.types {
		fieldStart[i] = uint32(len(fieldRows)) + 1
		methodStart[i] = uint32(len(methodRows)) + 1
		fieldRows = append(fieldRows, t.fields...)
		for _, m := range t.methods {
			methodRows = append(methodRows, methodLayout{m: m, paramStart: uint32(len(paramRows)) + 1})
			paramRows = append(paramRows, m.params...)
		}
	}

	// Attribute constructors get a shared TypeRef + MemberRef pair,
	// appended after user-declared TypeRefs so handles stay stable.
	ctorSig := blobs.ref([]byte{0x20, 0x00, 0x01}) // hasthis, 0 params, void
	type memberRefDef struct {
		classCoded uint32
		name       string
		sig        uint32
	}
	var memberRefs []memberRefDef
	typeRefs := append([]typeRefDef(nil), b.typeRefs...)
	b.attrTypeRefs = map[string]uint32{}
	attrCtor := func(namespace, name string) uint32 {
		if rid, ok := b.attrTypeRefs[name]; ok {
			return rid
		}
		scope := uint32(0) // Module scope; the reader only needs the name
		if len(b.assemblyRefs) > 0 {
			scope = 1<<2 | 2
		}
		typeRefs = append(typeRefs, typeRefDef{scope: scope, name: name, namespace: namespace})
		trRid := uint32(len(typeRefs))
		memberRefs = append(memberRefs, memberRefDef{
			classCoded: trRid<<3 | 1, // MemberRefParent: TypeRef
			name:       ".ctor",
			sig:        ctorSig,
		})
		rid := uint32(len(memberRefs))
		b.attrTypeRefs[name] = rid
		return rid
	}

	// HasCustomAttribute coded parents: tag by parent table.
	attrValue := []byte{0x01, 0x00, 0x00, 0x00}
	attrBlob := blobs.ref(attrValue)
	type attrRow struct {
		parent uint32
		ctor   uint32 // MemberRef rid
	}
	var attrRows []attrRow
	addAttr := func(parentCoded uint32, namespace, name string) {
		attrRows = append(attrRows, attrRow{parent: parentCoded, ctor: attrCtor(namespace, name)})
	}

	for i, f := range fieldRows {
		if f.required {
			addAttr(uint32(i+1)<<5|1, "System.Runtime.CompilerServices", "RequiredMemberAttribute")
		}
	}
	for i, p := range paramRows {
		if p.variadic {
			addAttr(uint32(i+1)<<5|4, "System", "ParamArrayAttribute")
		}
	}

	// Property/event maps, semantics, interfaces, nesting, generics.
	type mapRow struct{ parent, start uint32 }
	var (
		propertyRows []*PropertyBuilder
		propertyMaps []mapRow
		eventRows    []*eventDef
		eventMaps    []mapRow
		ifaceRows    [][2]uint32 // class rid, interface coded
		nestedRows   [][2]uint32 // nested rid, enclosing rid
		genericRows  []gpRow
		semanticRows []semRow
	)
	for i, t := range b.types {
		rid := uint32(i + 1)
		if len(t.properties) > 0 {
			propertyMaps = append(propertyMaps, mapRow{parent: rid, start: uint32(len(propertyRows)) + 1})
			for _, p := range t.properties {
				propertyRows = append(propertyRows, p)
				pRid := uint32(len(propertyRows))
				assoc := pRid<<1 | 1
				if p.getter != nil {
					semanticRows = append(semanticRows, semRow{0x0002, methodRID(p.getter), assoc})
				}
				if p.setter != nil {
					semanticRows = append(semanticRows, semRow{0x0001, methodRID(p.setter), assoc})
				}
				if p.required {
					addAttr(pRid<<5|9, "System.Runtime.CompilerServices", "RequiredMemberAttribute")
				}
			}
		}
		if len(t.events) > 0 {
			eventMaps = append(eventMaps, mapRow{parent: rid, start: uint32(len(eventRows)) + 1})
			for _, ev := range t.events {
				eventRows = append(eventRows, ev)
				eRid := uint32(len(eventRows))
				assoc := eRid << 1
				if ev.adder != nil {
					semanticRows = append(semanticRows, semRow{0x0008, methodRID(ev.adder), assoc})
				}
				if ev.remover != nil {
					semanticRows = append(semanticRows, semRow{0x0010, methodRID(ev.remover), assoc})
				}
			}
		}
		for _, iface := range t.interfaces {
			ifaceRows = append(ifaceRows, [2]uint32{rid, iface})
		}
		if t.enclosing >= 0 {
			nestedRows = append(nestedRows, [2]uint32{rid, uint32(t.enclosing + 1)})
		}
		for n, g := range t.generics {
			genericRows = append(genericRows, gpRow{uint16(n), rid << 1, g})
		}
	}
	for _, ml := range methodRows {
		for n, g := range ml.m.generics {
			genericRows = append(genericRows, gpRow{uint16(n), methodRID(ml.m)<<1 | 1, g})
		}
	}

	// Serialize each present table in id order.
	tables := map[cil.TableID]*rowWriter{}
	counts := map[cil.TableID]uint32{}
	rw := func(t cil.TableID) *rowWriter {
		if tables[t] == nil {
			tables[t] = &rowWriter{}
		}
		return tables[t]
	}

	// Module
	w := rw(cil.TableModule)
	w.u16(0)
	w.u16(strs.ref(b.assemblyName + ".dll"))
	w.u16(1) // Mvid
	w.u16(0)
	w.u16(0)
	counts[cil.TableModule] = 1

	for _, tr := range typeRefs {
		w = rw(cil.TableTypeRef)
		w.u16(tr.scope)
		w.u16(strs.ref(tr.name))
		w.u16(strs.ref(tr.namespace))
	}
	counts[cil.TableTypeRef] = uint32(len(typeRefs))

	for i, t := range b.types {
		w = rw(cil.TableTypeDef)
		w.u32(t.flags)
		w.u16(strs.ref(t.name))
		w.u16(strs.ref(t.namespace))
		w.u16(t.extends)
		w.u16(fieldStart[i])
		w.u16(methodStart[i])
	}
	counts[cil.TableTypeDef] = uint32(len(b.types))

	for _, f := range fieldRows {
		w = rw(cil.TableField)
		w.u16(uint32(f.flags))
		w.u16(strs.ref(f.name))
		w.u16(blobs.ref(f.sig))
	}
	counts[cil.TableField] = uint32(len(fieldRows))

	for _, ml := range methodRows {
		w = rw(cil.TableMethodDef)
		w.u32(0) // RVA
		w.u16(0) // ImplFlags
		w.u16(uint32(ml.m.flags))
		w.u16(strs.ref(ml.m.name))
		w.u16(blobs.ref(ml.m.sig))
		w.u16(ml.paramStart)
	}
	counts[cil.TableMethodDef] = uint32(len(methodRows))

	for _, p := range paramRows {
		w = rw(cil.TableParam)
		w.u16(uint32(p.flags))
		w.u16(uint32(p.seq))
		w.u16(strs.ref(p.name))
	}
	counts[cil.TableParam] = uint32(len(paramRows))

	for _, row := range ifaceRows {
		w = rw(cil.TableInterfaceImpl)
		w.u16(row[0])
		w.u16(row[1])
	}
	counts[cil.TableInterfaceImpl] = uint32(len(ifaceRows))

	for _, mr := range memberRefs {
		w = rw(cil.TableMemberRef)
		w.u16(mr.classCoded)
		w.u16(strs.ref(mr.name))
		w.u16(mr.sig)
	}
	counts[cil.TableMemberRef] = uint32(len(memberRefs))

	for _, a := range attrRows {
		w = rw(cil.TableCustomAttribute)
		w.u16(a.parent)
		w.u16(a.ctor<<3 | 3) // CustomAttributeType: MemberRef
		w.u16(attrBlob)
	}
	counts[cil.TableCustomAttribute] = uint32(len(attrRows))

	for _, em := range eventMaps {
		w = rw(cil.TableEventMap)
		w.u16(em.parent)
		w.u16(em.start)
	}
	counts[cil.TableEventMap] = uint32(len(eventMaps))

	for _, ev := range eventRows {
		w = rw(cil.TableEvent)
		w.u16(0)
		w.u16(strs.ref(ev.name))
		w.u16(ev.handler)
	}
	counts[cil.TableEvent] = uint32(len(eventRows))

	for _, pm := range propertyMaps {
		w = rw(cil.TablePropertyMap)
		w.u16(pm.parent)
		w.u16(pm.start)
	}
	counts[cil.TablePropertyMap] = uint32(len(propertyMaps))

	for _, p := range propertyRows {
		w = rw(cil.TableProperty)
		w.u16(0)
		w.u16(strs.ref(p.name))
		w.u16(blobs.ref(p.sig))
	}
	counts[cil.TableProperty] = uint32(len(propertyRows))

	for _, s := range semanticRows {
		w = rw(cil.TableMethodSemantics)
		w.u16(uint32(s.sem))
		w.u16(s.method)
		w.u16(s.assoc)
	}
	counts[cil.TableMethodSemantics] = uint32(len(semanticRows))

	if b.assemblyName != "" {
		w = rw(cil.TableAssembly)
		w.u32(0x8004) // SHA1
		w.u16(1)
		w.u16(0)
		w.u16(0)
		w.u16(0)
		w.u32(0)
		w.u16(0) // public key
		w.u16(strs.ref(b.assemblyName))
		w.u16(0) // culture
		counts[cil.TableAssembly] = 1
	}

	for _, name := range b.assemblyRefs {
		w = rw(cil.TableAssemblyRef)
		w.u16(1)
		w.u16(0)
		w.u16(0)
		w.u16(0)
		w.u32(0)
		w.u16(0)
		w.u16(strs.ref(name))
		w.u16(0)
		w.u16(0)
	}
	counts[cil.TableAssemblyRef] = uint32(len(b.assemblyRefs))

	for _, fw := range b.forwarders {
		w = rw(cil.TableExportedType)
		w.u32(fw.flags)
		w.u32(0)
		w.u16(strs.ref(fw.name))
		w.u16(strs.ref(fw.namespace))
		w.u16(fw.asmRef<<2 | 1) // Implementation: AssemblyRef
	}
	counts[cil.TableExportedType] = uint32(len(b.forwarders))

	for _, row := range nestedRows {
		w = rw(cil.TableNestedClass)
		w.u16(row[0])
		w.u16(row[1])
	}
	counts[cil.TableNestedClass] = uint32(len(nestedRows))

	for _, g := range genericRows {
		w = rw(cil.TableGenericParam)
		w.u16(uint32(g.number))
		w.u16(0)
		w.u16(g.owner)
		w.u16(strs.ref(g.name))
	}
	counts[cil.TableGenericParam] = uint32(len(genericRows))

	// #~ stream
	var tbl bytes.Buffer
	var valid uint64
	for t := cil.TableID(0); t < 0x2D; t++ {
		if counts[t] > 0 {
			valid |= 1 << uint(t)
		}
	}
	writeU32 := func(buf *bytes.Buffer, v uint32) {
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], v)
		buf.Write(b4[:])
	}
	writeU64 := func(buf *bytes.Buffer, v uint64) {
		var b8 [8]byte
		binary.LittleEndian.PutUint64(b8[:], v)
		buf.Write(b8[:])
	}
	writeU32(&tbl, 0) // reserved
	tbl.WriteByte(2)  // major
	tbl.WriteByte(0)  // minor
	tbl.WriteByte(0)  // heap sizes: all narrow
	tbl.WriteByte(1)  // reserved
	writeU64(&tbl, valid)
	writeU64(&tbl, 0) // sorted
	for t := cil.TableID(0); t < 0x2D; t++ {
		if counts[t] > 0 {
			writeU32(&tbl, counts[t])
		}
	}
	for t := cil.TableID(0); t < 0x2D; t++ {
		if counts[t] > 0 {
			tbl.Write(tables[t].buf.Bytes())
		}
	}

	// metadata root
	pad4 := func(b []byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, 0)
		}
		return b
	}
	streams := []struct {
		name string
		data []byte
	}{
		{"#~", pad4(tbl.Bytes())},
		{"#Strings", pad4(strs.buf.Bytes())},
		{"#Blob", pad4(blobs.buf.Bytes())},
		{"#GUID", make([]byte, 16)},
	}

	version := []byte("v4.0.30319\x00\x00")
	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		nameLen := len(s.name) + 1
		for nameLen%4 != 0 {
			nameLen++
		}
		headerSize += 8 + nameLen
	}

	var out bytes.Buffer
	writeU32(&out, 0x424A5342)
	out.Write([]byte{1, 0, 1, 0}) // major, minor
	writeU32(&out, 0)             // reserved
	writeU32(&out, uint32(len(version)))
	out.Write(version)
	out.Write([]byte{0, 0}) // flags
	var nStreams [2]byte
	binary.LittleEndian.PutUint16(nStreams[:], uint16(len(streams)))
	out.Write(nStreams[:])

	offset := headerSize
	for _, s := range streams {
		writeU32(&out, uint32(offset))
		writeU32(&out, uint32(len(s.data)))
		out.WriteString(s.name)
		out.WriteByte(0)
		for n := len(s.name) + 1; n%4 != 0; n++ {
			out.WriteByte(0)
		}
		offset += len(s.data)
	}
	if out.Len() != headerSize {
		panic(fmt.Sprintf("ciltest: header size mismatch: %d != %d", out.Len(), headerSize))
	}
	for _, s := range streams {
		out.Write(s.data)
	}
	return out.Bytes()
}
