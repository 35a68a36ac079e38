package cil

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	ElemVoid:       "Void",
	ElemBoolean:    "Boolean",
	ElemChar:       "Char",
	ElemI1:         "SByte",
	ElemU1:         "Byte",
	ElemI2:         "Int16",
	ElemU2:         "UInt16",
	ElemI4:         "Int32",
	ElemU4:         "UInt32",
	ElemI8:         "Int64",
	ElemU8:         "UInt64",
	ElemR4:         "Single",
	ElemR8:         "Double",
	ElemString:     "String",
	ElemObject:     "Object",
	ElemI:          "IntPtr",
	ElemU:          "UIntPtr",
	ElemTypedByRef: "TypedReference",
	ElemFnPtr:      "IntPtr",
}

// NameContext supplies generic parameter names for rendering Var/MVar
// slots. Either list may be nil.
type NameContext struct {
	TypeParams   []string
	MethodParams []string
}

// FriendlyName renders a decoded type the way reflection-based tooling
// does: arrays as Elem[], Nullable<T> as T?, generic instantiations as
// Name<Arg, ...> with the arity suffix stripped, everything else by its
// simple name.
func FriendlyName(sig TypeSig, ctx NameContext) string {
	if n, ok := primitiveNames[sig.Code]; ok {
		return n
	}
	switch sig.Code {
	case ElemSZArray:
		return FriendlyName(*sig.Elem, ctx) + "[]"
	case ElemArray:
		commas := ""
		if sig.Rank > 1 {
			commas = strings.Repeat(",", sig.Rank-1)
		}
		return FriendlyName(*sig.Elem, ctx) + "[" + commas + "]"
	case ElemGenericInst:
		if sig.Namespace == "System" && StripArity(sig.Name) == "Nullable" && len(sig.Args) == 1 {
			return FriendlyName(sig.Args[0], ctx) + "?"
		}
		args := make([]string, len(sig.Args))
		for i, a := range sig.Args {
			args[i] = FriendlyName(a, ctx)
		}
		return StripArity(sig.Name) + "<" + strings.Join(args, ", ") + ">"
	case ElemValueType, ElemClass:
		return StripArity(sig.Name)
	case ElemVar:
		return paramName(ctx.TypeParams, sig.Index)
	case ElemMVar:
		return paramName(ctx.MethodParams, sig.Index)
	case ElemPtr:
		return FriendlyName(*sig.Elem, ctx) + "*"
	case ElemByRef:
		return "ref " + FriendlyName(*sig.Elem, ctx)
	}
	return "?"
}

// StripArity removes the compiler-generated arity suffix from a generic
// type name ("List`1" -> "List").
func StripArity(name string) string {
	if i := strings.IndexByte(name, '`'); i >= 0 {
		return name[:i]
	}
	return name
}

func paramName(params []string, index uint32) string {
	if int(index) < len(params) && params[index] != "" {
		return params[index]
	}
	return fmt.Sprintf("T%d", index)
}
