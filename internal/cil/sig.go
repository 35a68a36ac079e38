package cil

import "fmt"

// Element type codes (ECMA-335 II.23.1.16).
const (
	elemEnd         = 0x00
	ElemVoid        = 0x01
	ElemBoolean     = 0x02
	ElemChar        = 0x03
	ElemI1          = 0x04
	ElemU1          = 0x05
	ElemI2          = 0x06
	ElemU2          = 0x07
	ElemI4          = 0x08
	ElemU4          = 0x09
	ElemI8          = 0x0A
	ElemU8          = 0x0B
	ElemR4          = 0x0C
	ElemR8          = 0x0D
	ElemString      = 0x0E
	ElemPtr         = 0x0F
	ElemByRef       = 0x10
	ElemValueType   = 0x11
	ElemClass       = 0x12
	ElemVar         = 0x13
	ElemArray       = 0x14
	ElemGenericInst = 0x15
	ElemTypedByRef  = 0x16
	ElemI           = 0x18
	ElemU           = 0x19
	ElemFnPtr       = 0x1B
	ElemObject      = 0x1C
	ElemSZArray     = 0x1D
	ElemMVar        = 0x1E
	elemCModReqd    = 0x1F
	elemCModOpt     = 0x20
	elemSentinel    = 0x41
	elemPinned      = 0x45
)

// Calling-convention byte masks (II.23.2.1).
const (
	sigCallConvMask = 0x0F
	sigVarArg       = 0x05
	sigField        = 0x06
	sigProperty     = 0x08
	sigGeneric      = 0x10
	sigHasThis      = 0x20
)

// TypeSig is one decoded type from a signature blob. For class and value
// types Name keeps the raw metadata name (arity suffix included) and
// Namespace the declaring namespace.
type TypeSig struct {
	Code      byte
	Name      string
	Namespace string
	Elem      *TypeSig  // array element, pointer or byref target
	Args      []TypeSig // generic instantiation arguments
	Index     uint32    // Var/MVar ordinal
	Rank      int       // multi-dimensional array rank
}

// ParamSig is one parameter (or return) slot of a method signature.
type ParamSig struct {
	Type  TypeSig
	ByRef bool
	Mods  []string // simple names of custom modifier types (modreq/modopt)
}

// MethodSig is a decoded MethodDefSig.
type MethodSig struct {
	HasThis       bool
	VarArg        bool
	GenericParams int
	Return        ParamSig
	Params        []ParamSig
}

// PropertySig is a decoded PropertySig. Index parameters are ignored;
// only the property type is retained.
type PropertySig struct {
	HasThis bool
	Type    TypeSig
}

const maxSigDepth = 64

type sigReader struct {
	byteReader
	meta  *Metadata
	depth int
}

// MethodSignature decodes a MethodDef signature blob.
func (m *Metadata) MethodSignature(blob []byte) (MethodSig, error) {
	r := sigReader{byteReader: byteReader{data: blob}, meta: m}
	conv, err := r.u8()
	if err != nil {
		return MethodSig{}, fmt.Errorf("%w: empty method signature", ErrMalformed)
	}
	if conv&sigCallConvMask == sigField || conv&sigCallConvMask == sigProperty {
		return MethodSig{}, fmt.Errorf("%w: not a method signature", ErrMalformed)
	}
	sig := MethodSig{
		HasThis: conv&sigHasThis != 0,
		VarArg:  conv&sigCallConvMask == sigVarArg,
	}
	if conv&sigGeneric != 0 {
		n, err := r.compressedUint()
		if err != nil {
			return MethodSig{}, err
		}
		sig.GenericParams = int(n)
	}
	count, err := r.compressedUint()
	if err != nil {
		return MethodSig{}, err
	}
	if sig.Return, err = r.param(); err != nil {
		return MethodSig{}, err
	}
	for i := uint32(0); i < count; i++ {
		p, err := r.param()
		if err != nil {
			return MethodSig{}, err
		}
		sig.Params = append(sig.Params, p)
	}
	return sig, nil
}

// FieldSignature decodes a Field signature blob.
func (m *Metadata) FieldSignature(blob []byte) (TypeSig, error) {
	r := sigReader{byteReader: byteReader{data: blob}, meta: m}
	conv, err := r.u8()
	if err != nil || conv&sigCallConvMask != sigField {
		return TypeSig{}, fmt.Errorf("%w: not a field signature", ErrMalformed)
	}
	if _, err := r.mods(); err != nil {
		return TypeSig{}, err
	}
	return r.typeSig()
}

// PropertySignature decodes a Property signature blob.
func (m *Metadata) PropertySignature(blob []byte) (PropertySig, error) {
	r := sigReader{byteReader: byteReader{data: blob}, meta: m}
	conv, err := r.u8()
	if err != nil || conv&sigCallConvMask != sigProperty {
		return PropertySig{}, fmt.Errorf("%w: not a property signature", ErrMalformed)
	}
	if _, err := r.compressedUint(); err != nil { // index parameter count
		return PropertySig{}, err
	}
	if _, err := r.mods(); err != nil {
		return PropertySig{}, err
	}
	t, err := r.typeSig()
	if err != nil {
		return PropertySig{}, err
	}
	return PropertySig{HasThis: conv&sigHasThis != 0, Type: t}, nil
}

// param decodes a Param or RetType production: custom mods, optional
// BYREF, then a type (VOID and TYPEDBYREF allowed).
func (r *sigReader) param() (ParamSig, error) {
	mods, err := r.mods()
	if err != nil {
		return ParamSig{}, err
	}
	p := ParamSig{Mods: mods}
	if r.peek() == ElemByRef {
		r.pos++
		p.ByRef = true
	}
	if p.Type, err = r.typeSig(); err != nil {
		return ParamSig{}, err
	}
	return p, nil
}

// mods consumes any run of CMOD_REQD/CMOD_OPT entries and returns the
// simple names of the modifier types.
func (r *sigReader) mods() ([]string, error) {
	var names []string
	for {
		c := r.peek()
		if c != elemCModReqd && c != elemCModOpt && c != elemPinned {
			return names, nil
		}
		r.pos++
		if c == elemPinned {
			continue
		}
		ref, err := r.typeDefOrRef()
		if err != nil {
			return nil, err
		}
		name, _, err := r.meta.typeNameOf(ref)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
}

func (r *sigReader) peek() byte {
	if r.pos >= len(r.data) {
		return elemEnd
	}
	return r.data[r.pos]
}

// typeSig decodes one Type production.
func (r *sigReader) typeSig() (TypeSig, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > maxSigDepth {
		return TypeSig{}, fmt.Errorf("%w: signature nesting too deep", ErrMalformed)
	}

	code, err := r.u8()
	if err != nil {
		return TypeSig{}, fmt.Errorf("%w: truncated signature", ErrMalformed)
	}
	switch code {
	case ElemVoid, ElemBoolean, ElemChar, ElemI1, ElemU1, ElemI2, ElemU2,
		ElemI4, ElemU4, ElemI8, ElemU8, ElemR4, ElemR8, ElemString,
		ElemTypedByRef, ElemI, ElemU, ElemObject:
		return TypeSig{Code: code}, nil

	case ElemValueType, ElemClass:
		ref, err := r.typeDefOrRef()
		if err != nil {
			return TypeSig{}, err
		}
		name, ns, err := r.meta.typeNameOf(ref)
		if err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code, Name: name, Namespace: ns}, nil

	case ElemSZArray:
		if _, err := r.mods(); err != nil {
			return TypeSig{}, err
		}
		elem, err := r.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code, Elem: &elem}, nil

	case ElemArray:
		elem, err := r.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		rank, err := r.compressedUint()
		if err != nil {
			return TypeSig{}, err
		}
		numSizes, err := r.compressedUint()
		if err != nil {
			return TypeSig{}, err
		}
		for i := uint32(0); i < numSizes; i++ {
			if _, err := r.compressedUint(); err != nil {
				return TypeSig{}, err
			}
		}
		numLo, err := r.compressedUint()
		if err != nil {
			return TypeSig{}, err
		}
		for i := uint32(0); i < numLo; i++ {
			if _, err := r.compressedUint(); err != nil {
				return TypeSig{}, err
			}
		}
		return TypeSig{Code: code, Elem: &elem, Rank: int(rank)}, nil

	case ElemGenericInst:
		kind, err := r.u8()
		if err != nil || (kind != ElemClass && kind != ElemValueType) {
			return TypeSig{}, fmt.Errorf("%w: generic instantiation", ErrMalformed)
		}
		ref, err := r.typeDefOrRef()
		if err != nil {
			return TypeSig{}, err
		}
		name, ns, err := r.meta.typeNameOf(ref)
		if err != nil {
			return TypeSig{}, err
		}
		argc, err := r.compressedUint()
		if err != nil {
			return TypeSig{}, err
		}
		sig := TypeSig{Code: code, Name: name, Namespace: ns}
		for i := uint32(0); i < argc; i++ {
			arg, err := r.typeSig()
			if err != nil {
				return TypeSig{}, err
			}
			sig.Args = append(sig.Args, arg)
		}
		return sig, nil

	case ElemVar, ElemMVar:
		idx, err := r.compressedUint()
		if err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code, Index: idx}, nil

	case ElemPtr:
		if _, err := r.mods(); err != nil {
			return TypeSig{}, err
		}
		elem, err := r.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code, Elem: &elem}, nil

	case ElemByRef:
		elem, err := r.typeSig()
		if err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code, Elem: &elem}, nil

	case ElemFnPtr:
		// Decode and discard the nested method signature; function
		// pointers render as IntPtr.
		if err := r.skipMethodSig(); err != nil {
			return TypeSig{}, err
		}
		return TypeSig{Code: code}, nil

	case elemSentinel:
		return r.typeSig()
	}
	return TypeSig{}, fmt.Errorf("%w: element type 0x%02X", ErrMalformed, code)
}

func (r *sigReader) skipMethodSig() error {
	conv, err := r.u8()
	if err != nil {
		return ErrMalformed
	}
	if conv&sigGeneric != 0 {
		if _, err := r.compressedUint(); err != nil {
			return err
		}
	}
	count, err := r.compressedUint()
	if err != nil {
		return err
	}
	if _, err := r.param(); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := r.param(); err != nil {
			return err
		}
	}
	return nil
}

// typeDefOrRef decodes the compressed TypeDefOrRefEncoded form used
// inside signatures.
func (r *sigReader) typeDefOrRef() (Ref, error) {
	v, err := r.compressedUint()
	if err != nil {
		return Ref{}, err
	}
	rid := v >> 2
	switch v & 0x3 {
	case 0:
		return Ref{Table: TableTypeDef, Row: rid}, nil
	case 1:
		return Ref{Table: TableTypeRef, Row: rid}, nil
	case 2:
		return Ref{Table: TableTypeSpec, Row: rid}, nil
	}
	return Ref{}, fmt.Errorf("%w: TypeDefOrRef tag 3", ErrMalformed)
}

// TypeName resolves a TypeDef/TypeRef/TypeSpec reference to a simple name
// and namespace.
func (m *Metadata) TypeName(ref Ref) (name, namespace string, err error) {
	return m.typeNameOf(ref)
}

// TypeSpecSignature decodes the signature of a TypeSpec row.
func (m *Metadata) TypeSpecSignature(row uint32) (TypeSig, error) {
	blob, err := m.cellBlob(TableTypeSpec, row, 0)
	if err != nil {
		return TypeSig{}, err
	}
	r := sigReader{byteReader: byteReader{data: blob}, meta: m}
	return r.typeSig()
}

// typeNameOf resolves a TypeDef/TypeRef/TypeSpec reference to a simple
// name and namespace. TypeSpec references resolve through their signature.
func (m *Metadata) typeNameOf(ref Ref) (name, namespace string, err error) {
	switch ref.Table {
	case TableTypeDef:
		row, err := m.TypeDef(ref.Row)
		if err != nil {
			return "", "", err
		}
		return row.Name, row.Namespace, nil
	case TableTypeRef:
		row, err := m.TypeRef(ref.Row)
		if err != nil {
			return "", "", err
		}
		return row.Name, row.Namespace, nil
	case TableTypeSpec:
		blob, err := m.cellBlob(TableTypeSpec, ref.Row, 0)
		if err != nil {
			return "", "", err
		}
		r := sigReader{byteReader: byteReader{data: blob}, meta: m}
		sig, err := r.typeSig()
		if err != nil {
			return "", "", err
		}
		return sig.Name, sig.Namespace, nil
	}
	return "", "", fmt.Errorf("%w: type reference into table 0x%02X", ErrMalformed, ref.Table)
}
