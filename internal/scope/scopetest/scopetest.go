// Package scopetest encodes symbols in the analyzer's wire format so tests
// can fake analyzer responses.
package scopetest

import (
	"github.com/ponylang/pony-lsp/internal/scope"
	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeScope encodes a dump-scope response.
func EncodeScope(sc scope.Scope) []byte {
	var b []byte
	for _, sym := range sc.Symbols {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeSymbol(sym))
	}
	return b
}

// EncodeSymbol encodes a get-symbol response. Unknown kinds and caps are
// written as out-of-range enum values.
func EncodeSymbol(sym scope.Symbol) []byte {
	var b []byte
	b = appendEnum(b, 1, int(sym.Kind))
	b = appendString(b, 2, sym.Name)
	if sym.Type != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTypeRef(sym.Type))
	}
	for _, p := range sym.Parameters {
		var pb []byte
		pb = appendString(pb, 1, p.Name)
		if p.Type != nil {
			pb = protowire.AppendTag(pb, 2, protowire.BytesType)
			pb = protowire.AppendBytes(pb, encodeTypeRef(p.Type))
		}
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, pb)
	}
	b = appendEnum(b, 5, int(sym.Cap))
	b = appendString(b, 6, sym.Docstring)
	if loc := sym.DefinitionLocation; loc != nil {
		var lb []byte
		lb = appendString(lb, 1, loc.File)
		lb = protowire.AppendTag(lb, 2, protowire.VarintType)
		lb = protowire.AppendVarint(lb, uint64(loc.Line))
		lb = protowire.AppendTag(lb, 3, protowire.VarintType)
		lb = protowire.AppendVarint(lb, uint64(loc.Column))
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}
	return b
}

// Function returns a fun symbol with the given parameters and return type.
func Function(name, returns string, params ...scope.Parameter) scope.Symbol {
	sym := scope.Symbol{Kind: scope.SymbolKindFun, Name: name, Cap: scope.RefCapBox, Parameters: params}
	if returns != "" {
		sym.Type = &scope.TypeRef{Name: returns}
	}
	return sym
}

// Param returns a parameter; an empty type name leaves the type absent.
func Param(name, typ string) scope.Parameter {
	p := scope.Parameter{Name: name}
	if typ != "" {
		p.Type = &scope.TypeRef{Name: typ}
	}
	return p
}

func encodeTypeRef(ref *scope.TypeRef) []byte {
	// A type reference is a nested Symbol; only its name is meaningful.
	return appendString(nil, 2, ref.Name)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendEnum(b []byte, num protowire.Number, v int) []byte {
	if v < 0 {
		v = 1000
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}
