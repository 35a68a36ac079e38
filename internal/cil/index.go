package cil

// token packs a table/row pair into a single map key.
func token(r Ref) uint32 { return uint32(r.Table)<<24 | (r.Row & 0xFFFFFF) }

// EnclosingType returns the TypeDef row enclosing the given nested TypeDef
// row, or 0 when the type is not nested.
func (m *Metadata) EnclosingType(typeDef uint32) (uint32, error) {
	if m.nested == nil {
		idx := make(map[uint32]uint32, m.RowCount(TableNestedClass))
		for i := uint32(1); i <= m.RowCount(TableNestedClass); i++ {
			inner, err := m.cell(TableNestedClass, i, 0)
			if err != nil {
				return 0, err
			}
			outer, err := m.cell(TableNestedClass, i, 1)
			if err != nil {
				return 0, err
			}
			idx[inner] = outer
		}
		m.nested = idx
	}
	return m.nested[typeDef], nil
}

// Accessors are the semantic methods attached to a property or event.
type Accessors struct {
	Getter  uint32 // MethodDef row, 0 when absent
	Setter  uint32
	Adder   uint32
	Remover uint32
}

// AccessorsOf returns the accessor methods associated with a Property or
// Event row.
func (m *Metadata) AccessorsOf(assoc Ref) (Accessors, error) {
	if m.semantics == nil {
		idx := make(map[uint32]Accessors)
		for i := uint32(1); i <= m.RowCount(TableMethodSemantics); i++ {
			sem, err := m.cell(TableMethodSemantics, i, 0)
			if err != nil {
				return Accessors{}, err
			}
			method, err := m.cell(TableMethodSemantics, i, 1)
			if err != nil {
				return Accessors{}, err
			}
			owner, err := m.cellCoded(TableMethodSemantics, i, 2)
			if err != nil {
				return Accessors{}, err
			}
			acc := idx[token(owner)]
			switch {
			case uint16(sem)&SemGetter != 0:
				acc.Getter = method
			case uint16(sem)&SemSetter != 0:
				acc.Setter = method
			case uint16(sem)&SemAddOn != 0:
				acc.Adder = method
			case uint16(sem)&SemRemoveOn != 0:
				acc.Remover = method
			}
			idx[token(owner)] = acc
		}
		m.semantics = idx
	}
	return m.semantics[token(assoc)], nil
}

// HasAttribute reports whether the given row carries a custom attribute
// whose type has the given simple name (e.g. "RequiredMemberAttribute").
// Attribute rows whose constructor cannot be resolved are ignored.
func (m *Metadata) HasAttribute(owner Ref, attrName string) (bool, error) {
	if m.attrs == nil {
		idx := make(map[uint32][]string)
		for i := uint32(1); i <= m.RowCount(TableCustomAttribute); i++ {
			parent, err := m.cellCoded(TableCustomAttribute, i, 0)
			if err != nil {
				return false, err
			}
			ctor, err := m.cellCoded(TableCustomAttribute, i, 1)
			if err != nil {
				continue
			}
			name, err := m.attributeTypeName(ctor)
			if err != nil || name == "" {
				continue
			}
			idx[token(parent)] = append(idx[token(parent)], name)
		}
		m.attrs = idx
	}
	for _, n := range m.attrs[token(owner)] {
		if n == attrName {
			return true, nil
		}
	}
	return false, nil
}

// attributeTypeName resolves the simple name of the type declaring an
// attribute constructor (a MethodDef or MemberRef).
func (m *Metadata) attributeTypeName(ctor Ref) (string, error) {
	switch ctor.Table {
	case TableMemberRef:
		row, err := m.MemberRef(ctor.Row)
		if err != nil {
			return "", err
		}
		switch row.Class.Table {
		case TableTypeRef:
			tr, err := m.TypeRef(row.Class.Row)
			if err != nil {
				return "", err
			}
			return tr.Name, nil
		case TableTypeDef:
			td, err := m.TypeDef(row.Class.Row)
			if err != nil {
				return "", err
			}
			return td.Name, nil
		}
		return "", nil
	case TableMethodDef:
		owner, err := m.declaringType(ctor.Row)
		if err != nil || owner == 0 {
			return "", err
		}
		td, err := m.TypeDef(owner)
		if err != nil {
			return "", err
		}
		return td.Name, nil
	}
	return "", nil
}

// declaringType finds the TypeDef row whose method list contains the given
// MethodDef row.
func (m *Metadata) declaringType(methodDef uint32) (uint32, error) {
	n := m.RowCount(TableTypeDef)
	for i := uint32(1); i <= n; i++ {
		r, err := m.listRange(TableTypeDef, i, 5, TableMethodDef)
		if err != nil {
			return 0, err
		}
		if methodDef >= r.Start && methodDef < r.End {
			return i, nil
		}
	}
	return 0, nil
}

// GenericParamNames returns the declared generic parameter names of a
// TypeDef or MethodDef row, ordered by parameter number.
func (m *Metadata) GenericParamNames(owner Ref) ([]string, error) {
	var names []string
	for i := uint32(1); i <= m.RowCount(TableGenericParam); i++ {
		gp, err := m.GenericParam(i)
		if err != nil {
			return nil, err
		}
		if gp.Owner != owner {
			continue
		}
		for len(names) <= int(gp.Number) {
			names = append(names, "")
		}
		names[gp.Number] = gp.Name
	}
	return names, nil
}
