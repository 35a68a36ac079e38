// Package extract walks the public type surface of a loaded image into
// meta.TypeRecord values. The walk is best-effort: a type or member whose
// descriptor cannot be fully read is omitted and logged, and the rest of
// the walk continues.
package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/meta"
)

// DependencyResolver resolves a referenced assembly by simple name.
// Unresolvable dependencies report ok == false; nothing is raised.
type DependencyResolver interface {
	Resolve(name string) (*cil.Image, bool)
}

// Extractor walks loaded images.
type Extractor struct {
	log *zap.Logger
}

// New returns an Extractor logging skipped types and members through log.
func New(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// Types returns a record for every publicly visible type in the image, in
// table enumeration order. Public forwarded types are followed through
// deps; deps may be nil, in which case forwarders are skipped.
func (e *Extractor) Types(img *cil.Image, deps DependencyResolver) []meta.TypeRecord {
	records := []meta.TypeRecord{}
	if img == nil || img.Metadata == nil {
		return records
	}
	md := img.Metadata

	for i := uint32(1); i <= md.RowCount(cil.TableTypeDef); i++ {
		row, err := md.TypeDef(i)
		if err != nil {
			// Partial type load: carry on with the rest of the table.
			e.log.Warn("type failed to load", zap.Uint32("row", i), zap.Error(err))
			continue
		}
		visible, err := e.isVisible(md, i, row.Flags)
		if err != nil {
			e.log.Warn("type visibility unreadable", zap.String("type", row.Name), zap.Error(err))
			continue
		}
		if !visible || skipTypeName(row.Name) {
			continue
		}
		name, err := e.fullName(md, row)
		if err != nil {
			e.log.Warn("type name unreadable", zap.Uint32("row", i), zap.Error(err))
			continue
		}
		records = append(records, *e.typeRecord(md, row, name))
	}

	records = append(records, e.forwardedTypes(md, deps)...)
	return records
}

// skipTypeName filters the module pseudo-type and compiler-generated
// types (display classes, state machines).
func skipTypeName(name string) bool {
	return name == "<Module>" || strings.ContainsRune(name, '<')
}

// isVisible applies the nesting-aware visibility rule: top-level public,
// or nested-public inside a chain of visible types.
func (e *Extractor) isVisible(md *cil.Metadata, row uint32, flags uint32) (bool, error) {
	for depth := 0; depth < 64; depth++ {
		switch flags & cil.TypeVisibilityMask {
		case cil.TypePublic:
			return true, nil
		case cil.TypeNestedPublic:
			outer, err := md.EnclosingType(row)
			if err != nil {
				return false, err
			}
			if outer == 0 {
				return false, nil
			}
			outerRow, err := md.TypeDef(outer)
			if err != nil {
				return false, err
			}
			row, flags = outer, outerRow.Flags
		default:
			return false, nil
		}
	}
	return false, fmt.Errorf("nested-type chain too deep at row %d", row)
}

// fullName renders the namespace-qualified name, joining nested types to
// their enclosing chain with '+'.
func (e *Extractor) fullName(md *cil.Metadata, row cil.TypeDefRow) (string, error) {
	name := row.Name
	current := row
	for depth := 0; depth < 64; depth++ {
		outer, err := md.EnclosingType(current.Row)
		if err != nil {
			return "", err
		}
		if outer == 0 {
			break
		}
		outerRow, err := md.TypeDef(outer)
		if err != nil {
			return "", err
		}
		name = outerRow.Name + "+" + name
		current = outerRow
	}
	if current.Namespace != "" {
		name = current.Namespace + "." + name
	}
	return name, nil
}

// typeRecord extracts one type. Each member kind is attempted
// independently; a failing step leaves its list as extracted so far and
// never aborts the type.
func (e *Extractor) typeRecord(md *cil.Metadata, row cil.TypeDefRow, fullName string) *meta.TypeRecord {
	rec := meta.NewTypeRecord(fullName)
	typeParams, err := md.GenericParamNames(cil.Ref{Table: cil.TableTypeDef, Row: row.Row})
	if err != nil {
		typeParams = nil
	}
	ctx := cil.NameContext{TypeParams: typeParams}

	e.step(fullName, "interfaces", func() error {
		return e.interfaces(md, row, ctx, rec)
	})
	e.step(fullName, "constructors", func() error {
		return e.constructors(md, row, ctx, rec)
	})
	e.step(fullName, "methods", func() error {
		return e.methods(md, row, ctx, rec)
	})
	e.step(fullName, "properties", func() error {
		return e.properties(md, row, ctx, rec)
	})
	e.step(fullName, "fields", func() error {
		return e.fields(md, row, ctx, rec)
	})
	e.step(fullName, "events", func() error {
		return e.events(md, row, ctx, rec)
	})
	return rec
}

// step runs one extraction step, absorbing both errors and panics from
// malformed metadata.
func (e *Extractor) step(typeName, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("extraction step panicked",
				zap.String("type", typeName),
				zap.String("step", name),
				zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		e.log.Warn("extraction step failed",
			zap.String("type", typeName),
			zap.String("step", name),
			zap.Error(err))
	}
}

func (e *Extractor) interfaces(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	for i := uint32(1); i <= md.RowCount(cil.TableInterfaceImpl); i++ {
		impl, err := md.InterfaceImpl(i)
		if err != nil {
			return err
		}
		if impl.Class != row.Row {
			continue
		}
		name, err := e.renderRef(md, impl.Interface, ctx)
		if err != nil {
			e.log.Warn("interface name unreadable", zap.String("type", rec.FullName), zap.Error(err))
			continue
		}
		rec.Implements = append(rec.Implements, name)
	}
	return nil
}

// renderRef renders a TypeDef/TypeRef/TypeSpec reference as a friendly
// name.
func (e *Extractor) renderRef(md *cil.Metadata, ref cil.Ref, ctx cil.NameContext) (string, error) {
	if ref.Table == cil.TableTypeSpec {
		sig, err := md.TypeSpecSignature(ref.Row)
		if err != nil {
			return "", err
		}
		return cil.FriendlyName(sig, ctx), nil
	}
	name, _, err := md.TypeName(ref)
	if err != nil {
		return "", err
	}
	return cil.StripArity(name), nil
}

func (e *Extractor) constructors(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	for i := row.Methods.Start; i < row.Methods.End; i++ {
		m, err := md.MethodDef(i)
		if err != nil {
			e.omitMember(rec.FullName, "constructor", i, err)
			continue
		}
		if m.Name != ".ctor" || !isPublicMethod(m.Flags) || m.Flags&cil.MethodStatic != 0 {
			continue
		}
		sig, err := md.MethodSignature(m.Signature)
		if err != nil {
			e.omitMember(rec.FullName, "constructor", i, err)
			continue
		}
		params, err := e.parameters(md, m, sig, ctx)
		if err != nil {
			e.omitMember(rec.FullName, "constructor", i, err)
			continue
		}
		rec.Constructors = append(rec.Constructors, meta.ConstructorRecord{
			Name:       ".ctor",
			Parameters: params,
		})
	}
	return nil
}

func (e *Extractor) methods(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	for i := row.Methods.Start; i < row.Methods.End; i++ {
		m, err := md.MethodDef(i)
		if err != nil {
			e.omitMember(rec.FullName, "method", i, err)
			continue
		}
		if !isPublicMethod(m.Flags) || isAccessorOrCtor(m) {
			continue
		}
		sig, err := md.MethodSignature(m.Signature)
		if err != nil {
			e.omitMember(rec.FullName, "method", i, err)
			continue
		}
		methodParams, err := md.GenericParamNames(cil.Ref{Table: cil.TableMethodDef, Row: i})
		if err != nil {
			methodParams = nil
		}
		mctx := cil.NameContext{TypeParams: ctx.TypeParams, MethodParams: methodParams}

		params, err := e.parameters(md, m, sig, mctx)
		if err != nil {
			e.omitMember(rec.FullName, "method", i, err)
			continue
		}

		virtual := m.Flags&cil.MethodVirtual != 0
		abstract := m.Flags&cil.MethodAbstract != 0
		rec.Methods = append(rec.Methods, meta.MethodRecord{
			Name:       m.Name,
			ReturnType: renderSlot(sig.Return, mctx),
			IsStatic:   m.Flags&cil.MethodStatic != 0,
			IsAbstract: abstract,
			IsVirtual:  virtual && !abstract,
			// A virtual method that does not claim a new vtable slot
			// overrides its root declaration.
			IsOverride: virtual && m.Flags&cil.MethodNewSlot == 0,
			IsSealed:   virtual && m.Flags&cil.MethodFinal != 0,
			Parameters: params,
		})
	}
	return nil
}

// renderSlot renders a parameter or return slot, prefixing by-ref slots.
func renderSlot(p cil.ParamSig, ctx cil.NameContext) string {
	name := cil.FriendlyName(p.Type, ctx)
	if p.ByRef {
		return "ref " + name
	}
	return name
}

// parameters joins Param rows to signature slots by sequence number. A
// parameter the signature does not cover fails the whole member.
func (e *Extractor) parameters(md *cil.Metadata, m cil.MethodDefRow, sig cil.MethodSig, ctx cil.NameContext) ([]meta.ParameterRecord, error) {
	out := make([]meta.ParameterRecord, len(sig.Params))
	for i := range out {
		out[i] = meta.ParameterRecord{
			Name:     fmt.Sprintf("arg%d", i),
			Type:     cil.FriendlyName(sig.Params[i].Type, ctx),
			Modifier: meta.ModifierValue,
		}
		if sig.Params[i].ByRef {
			out[i].Modifier = meta.ModifierRef
		}
	}
	for i := m.Params.Start; i < m.Params.End; i++ {
		p, err := md.Param(i)
		if err != nil {
			return nil, err
		}
		if p.Sequence == 0 { // return-value row
			continue
		}
		idx := int(p.Sequence) - 1
		if idx >= len(out) {
			return nil, fmt.Errorf("parameter sequence %d beyond signature", p.Sequence)
		}
		if p.Name != "" {
			out[idx].Name = p.Name
		}
		out[idx].IsOptional = p.Flags&cil.ParamOptional != 0
		out[idx].HasDefaultValue = p.Flags&cil.ParamHasDefault != 0
		switch {
		case p.Flags&cil.ParamOut != 0 && sig.Params[idx].ByRef:
			out[idx].Modifier = meta.ModifierOut
		case sig.Params[idx].ByRef:
			out[idx].Modifier = meta.ModifierRef
		default:
			variadic, err := md.HasAttribute(cil.Ref{Table: cil.TableParam, Row: i}, "ParamArrayAttribute")
			if err != nil {
				return nil, err
			}
			if variadic {
				out[idx].Modifier = meta.ModifierVariadic
			}
		}
	}
	return out, nil
}

func (e *Extractor) properties(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	rng, err := md.PropertyRange(row.Row)
	if err != nil {
		return err
	}
	for i := rng.Start; i < rng.End; i++ {
		p, err := md.Property(i)
		if err != nil {
			e.omitMember(rec.FullName, "property", i, err)
			continue
		}
		acc, err := md.AccessorsOf(cil.Ref{Table: cil.TableProperty, Row: i})
		if err != nil {
			e.omitMember(rec.FullName, "property", i, err)
			continue
		}
		record, ok, err := e.propertyRecord(md, p, acc, ctx)
		if err != nil {
			e.omitMember(rec.FullName, "property", i, err)
			continue
		}
		if ok {
			rec.Properties = append(rec.Properties, record)
		}
	}
	return nil
}

func (e *Extractor) propertyRecord(md *cil.Metadata, p cil.PropertyRow, acc cil.Accessors, ctx cil.NameContext) (meta.PropertyRecord, bool, error) {
	var getter, setter *cil.MethodDefRow
	if acc.Getter != 0 {
		m, err := md.MethodDef(acc.Getter)
		if err != nil {
			return meta.PropertyRecord{}, false, err
		}
		getter = &m
	}
	if acc.Setter != 0 {
		m, err := md.MethodDef(acc.Setter)
		if err != nil {
			return meta.PropertyRecord{}, false, err
		}
		setter = &m
	}
	publicGetter := getter != nil && isPublicMethod(getter.Flags)
	publicSetter := setter != nil && isPublicMethod(setter.Flags)
	if !publicGetter && !publicSetter {
		return meta.PropertyRecord{}, false, nil
	}

	sig, err := md.PropertySignature(p.Signature)
	if err != nil {
		return meta.PropertyRecord{}, false, err
	}

	required, err := md.HasAttribute(cil.Ref{Table: cil.TableProperty, Row: p.Row}, "RequiredMemberAttribute")
	if err != nil {
		return meta.PropertyRecord{}, false, err
	}

	init := false
	if setter != nil {
		setterSig, err := md.MethodSignature(setter.Signature)
		if err != nil {
			return meta.PropertyRecord{}, false, err
		}
		for _, mod := range setterSig.Return.Mods {
			if mod == "IsExternalInit" {
				init = true
			}
		}
	}

	// Classification flags are the OR across both accessors.
	var flags uint16
	if getter != nil {
		flags |= getter.Flags
	}
	if setter != nil {
		flags |= setter.Flags
	}
	virtual := flags&cil.MethodVirtual != 0
	abstract := flags&cil.MethodAbstract != 0
	return meta.PropertyRecord{
		Name:            p.Name,
		Type:            cil.FriendlyName(sig.Type, ctx),
		HasPublicGetter: publicGetter,
		HasPublicSetter: publicSetter,
		IsStatic:        flags&cil.MethodStatic != 0,
		IsAbstract:      abstract,
		IsVirtual:       virtual && !abstract,
		IsOverride:      virtual && flags&cil.MethodNewSlot == 0,
		IsSealed:        virtual && flags&cil.MethodFinal != 0,
		IsRequired:      required,
		IsInit:          init,
	}, true, nil
}

func (e *Extractor) fields(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	for i := row.Fields.Start; i < row.Fields.End; i++ {
		f, err := md.Field(i)
		if err != nil {
			e.omitMember(rec.FullName, "field", i, err)
			continue
		}
		if f.Flags&cil.FieldAccessMask != cil.FieldPublic {
			continue
		}
		sig, err := md.FieldSignature(f.Signature)
		if err != nil {
			e.omitMember(rec.FullName, "field", i, err)
			continue
		}
		required, err := md.HasAttribute(cil.Ref{Table: cil.TableField, Row: i}, "RequiredMemberAttribute")
		if err != nil {
			e.omitMember(rec.FullName, "field", i, err)
			continue
		}
		readOnly := f.Flags&cil.FieldInitOnly != 0
		rec.Fields = append(rec.Fields, meta.FieldRecord{
			Name:       f.Name,
			Type:       cil.FriendlyName(sig, ctx),
			IsStatic:   f.Flags&cil.FieldStatic != 0,
			IsReadOnly: readOnly,
			IsConstant: f.Flags&cil.FieldLiteral != 0 && !readOnly,
			IsRequired: required,
		})
	}
	return nil
}

func (e *Extractor) events(md *cil.Metadata, row cil.TypeDefRow, ctx cil.NameContext, rec *meta.TypeRecord) error {
	rng, err := md.EventRange(row.Row)
	if err != nil {
		return err
	}
	for i := rng.Start; i < rng.End; i++ {
		ev, err := md.Event(i)
		if err != nil {
			e.omitMember(rec.FullName, "event", i, err)
			continue
		}
		acc, err := md.AccessorsOf(cil.Ref{Table: cil.TableEvent, Row: i})
		if err != nil {
			e.omitMember(rec.FullName, "event", i, err)
			continue
		}
		var flags uint16
		anyPublic := false
		for _, accessor := range []uint32{acc.Adder, acc.Remover} {
			if accessor == 0 {
				continue
			}
			m, err := md.MethodDef(accessor)
			if err != nil {
				continue
			}
			flags |= m.Flags
			if isPublicMethod(m.Flags) {
				anyPublic = true
			}
		}
		if !anyPublic {
			continue
		}
		handler, err := e.renderRef(md, ev.EventType, ctx)
		if err != nil {
			e.omitMember(rec.FullName, "event", i, err)
			continue
		}
		rec.Events = append(rec.Events, meta.EventRecord{
			Name:             ev.Name,
			EventHandlerType: handler,
			IsStatic:         flags&cil.MethodStatic != 0,
		})
	}
	return nil
}

// forwardedTypes walks type forwarders and extracts the target
// types from the assembly they forward to. Unresolved targets degrade by
// omission.
func (e *Extractor) forwardedTypes(md *cil.Metadata, deps DependencyResolver) []meta.TypeRecord {
	var out []meta.TypeRecord
	if deps == nil {
		return out
	}
	for i := uint32(1); i <= md.RowCount(cil.TableExportedType); i++ {
		et, err := md.ExportedType(i)
		if err != nil {
			e.log.Warn("exported type unreadable", zap.Uint32("row", i), zap.Error(err))
			continue
		}
		if et.Flags&cil.ExportedTypeForwarder == 0 {
			continue
		}
		// Compilers emit forwarder rows with no visibility bits set
		// (II.22.14); nested visibilities mark nested exported types.
		if vis := et.Flags & cil.TypeVisibilityMask; vis > cil.TypePublic {
			continue
		}
		if et.Implementation.Table != cil.TableAssemblyRef || et.Implementation.IsNil() {
			continue
		}
		refName, err := md.AssemblyRefName(et.Implementation.Row)
		if err != nil {
			continue
		}
		target, ok := deps.Resolve(refName)
		if !ok {
			e.log.Debug("forwarded type target unresolved",
				zap.String("type", et.TypeName),
				zap.String("assembly", refName))
			continue
		}
		rec := e.findAndExtract(target.Metadata, et.TypeNamespace, et.TypeName)
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

func (e *Extractor) findAndExtract(md *cil.Metadata, namespace, name string) *meta.TypeRecord {
	if md == nil {
		return nil
	}
	for i := uint32(1); i <= md.RowCount(cil.TableTypeDef); i++ {
		row, err := md.TypeDef(i)
		if err != nil {
			continue
		}
		if row.Name != name || row.Namespace != namespace {
			continue
		}
		full, err := e.fullName(md, row)
		if err != nil {
			return nil
		}
		return e.typeRecord(md, row, full)
	}
	return nil
}

func (e *Extractor) omitMember(typeName, kind string, row uint32, err error) {
	e.log.Warn("member omitted",
		zap.String("type", typeName),
		zap.String("kind", kind),
		zap.Uint32("row", row),
		zap.Error(err))
}

func isPublicMethod(flags uint16) bool {
	return flags&cil.MethodAccessMask == cil.MethodPublic
}

// isAccessorOrCtor filters constructors and special-name accessor methods
// out of the method list; they surface through their owning member.
func isAccessorOrCtor(m cil.MethodDefRow) bool {
	if m.Name == ".ctor" || m.Name == ".cctor" {
		return true
	}
	if m.Flags&cil.MethodSpecialName == 0 {
		return false
	}
	for _, prefix := range []string{"get_", "set_", "add_", "remove_", "op_"} {
		if strings.HasPrefix(m.Name, prefix) {
			return true
		}
	}
	return false
}
