package ciltest

import "github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"

// Encoded type fragments for composing signature blobs.
var (
	TVoid   = []byte{cil.ElemVoid}
	TBool   = []byte{cil.ElemBoolean}
	TInt32  = []byte{cil.ElemI4}
	TInt64  = []byte{cil.ElemI8}
	TDouble = []byte{cil.ElemR8}
	TString = []byte{cil.ElemString}
	TObject = []byte{cil.ElemObject}
)

// compress encodes a small unsigned value in the II.23.2 form.
func compress(v uint32) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x4000:
		return []byte{byte(v>>8) | 0x80, byte(v)}
	default:
		panic("ciltest: value too large for test signatures")
	}
}

// typeRefEncoded is the TypeDefOrRefEncoded form of a TypeRef rid.
func typeRefEncoded(rid uint32) []byte { return compress(rid<<2 | 1) }

// TClass encodes CLASS <TypeRef rid>.
func TClass(typeRef uint32) []byte {
	return append([]byte{cil.ElemClass}, typeRefEncoded(typeRef)...)
}

// TValueType encodes VALUETYPE <TypeRef rid>.
func TValueType(typeRef uint32) []byte {
	return append([]byte{cil.ElemValueType}, typeRefEncoded(typeRef)...)
}

// TSZArray encodes a single-dimensional array of elem.
func TSZArray(elem []byte) []byte {
	return append([]byte{cil.ElemSZArray}, elem...)
}

// TByRef prefixes elem with BYREF, for use in parameter slots.
func TByRef(elem []byte) []byte {
	return append([]byte{cil.ElemByRef}, elem...)
}

// TVar encodes a type-level generic parameter reference.
func TVar(n uint32) []byte {
	return append([]byte{cil.ElemVar}, compress(n)...)
}

// TMVar encodes a method-level generic parameter reference.
func TMVar(n uint32) []byte {
	return append([]byte{cil.ElemMVar}, compress(n)...)
}

// TGenericInst encodes GENERICINST (CLASS|VALUETYPE) <TypeRef> <args>.
func TGenericInst(valueType bool, typeRef uint32, args ...[]byte) []byte {
	kind := byte(cil.ElemClass)
	if valueType {
		kind = cil.ElemValueType
	}
	out := append([]byte{cil.ElemGenericInst, kind}, typeRefEncoded(typeRef)...)
	out = append(out, compress(uint32(len(args)))...)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

// TModReq prefixes inner with a required custom modifier naming the given
// TypeRef.
func TModReq(typeRef uint32, inner []byte) []byte {
	out := append([]byte{0x1F}, typeRefEncoded(typeRef)...)
	return append(out, inner...)
}

// SigField builds a field signature blob.
func SigField(t []byte) []byte {
	return append([]byte{0x06}, t...)
}

// SigMethod builds a MethodDefSig blob from encoded return and parameter
// types.
func SigMethod(hasThis bool, ret []byte, params ...[]byte) []byte {
	conv := byte(0)
	if hasThis {
		conv |= 0x20
	}
	out := append([]byte{conv}, compress(uint32(len(params)))...)
	out = append(out, ret...)
	for _, p := range params {
		out = append(out, p...)
	}
	return out
}

// SigGenericMethod is SigMethod with a method generic parameter count.
func SigGenericMethod(hasThis bool, genericCount uint32, ret []byte, params ...[]byte) []byte {
	conv := byte(0x10)
	if hasThis {
		conv |= 0x20
	}
	out := append([]byte{conv}, compress(genericCount)...)
	out = append(out, compress(uint32(len(params)))...)
	out = append(out, ret...)
	for _, p := range params {
		out = append(out, p...)
	}
	return out
}

// SigProperty builds a PropertySig blob with no index parameters.
func SigProperty(hasThis bool, t []byte) []byte {
	conv := byte(0x08)
	if hasThis {
		conv |= 0x20
	}
	return append([]byte{conv, 0x00}, t...)
}
