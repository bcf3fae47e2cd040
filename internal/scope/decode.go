// Package scope decodes the analyzer's protobuf responses into symbols.
package scope

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed analyzer response")

// Field numbers of the analyzer's wire schema.
const (
	scopeSymbols protowire.Number = 1

	symbolKind       protowire.Number = 1
	symbolName       protowire.Number = 2
	symbolType       protowire.Number = 3
	symbolParameters protowire.Number = 4
	symbolCap        protowire.Number = 5
	symbolDocstring  protowire.Number = 6
	symbolLocation   protowire.Number = 7

	parameterName protowire.Number = 1
	parameterType protowire.Number = 2

	locationFile   protowire.Number = 1
	locationLine   protowire.Number = 2
	locationColumn protowire.Number = 3
)

// DecodeScope decodes a dump-scope response. An empty payload is a valid,
// empty scope.
func DecodeScope(b []byte) (Scope, error) {
	sc := Scope{Symbols: []Symbol{}}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != scopeSymbols {
			return nil
		}
		if typ != protowire.BytesType {
			return wireTypeError("Scope.symbols", typ)
		}
		sym, err := DecodeSymbol(v)
		if err != nil {
			return fmt.Errorf("symbol %d: %w", len(sc.Symbols), err)
		}
		sc.Symbols = append(sc.Symbols, sym)
		return nil
	})
	if err != nil {
		return Scope{}, err
	}
	return sc, nil
}

// DecodeSymbol decodes a get-symbol response.
func DecodeSymbol(b []byte) (Symbol, error) {
	var sym Symbol
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch num {
		case symbolKind:
			if typ != protowire.VarintType {
				return wireTypeError("Symbol.kind", typ)
			}
			sym.Kind = symbolKindFromWire(n)
		case symbolName:
			if typ != protowire.BytesType {
				return wireTypeError("Symbol.name", typ)
			}
			sym.Name = string(v)
		case symbolType:
			if typ != protowire.BytesType {
				return wireTypeError("Symbol.type", typ)
			}
			ref, err := decodeTypeRef(v)
			if err != nil {
				return fmt.Errorf("type: %w", err)
			}
			sym.Type = ref
		case symbolParameters:
			if typ != protowire.BytesType {
				return wireTypeError("Symbol.parameters", typ)
			}
			p, err := decodeParameter(v)
			if err != nil {
				return fmt.Errorf("parameter %d: %w", len(sym.Parameters), err)
			}
			sym.Parameters = append(sym.Parameters, p)
		case symbolCap:
			if typ != protowire.VarintType {
				return wireTypeError("Symbol.cap", typ)
			}
			sym.Cap = refCapFromWire(n)
		case symbolDocstring:
			if typ != protowire.BytesType {
				return wireTypeError("Symbol.docstring", typ)
			}
			sym.Docstring = string(v)
		case symbolLocation:
			if typ != protowire.BytesType {
				return wireTypeError("Symbol.definition_location", typ)
			}
			loc, err := decodeLocation(v)
			if err != nil {
				return fmt.Errorf("definition location: %w", err)
			}
			sym.DefinitionLocation = loc
		}
		return nil
	})
	if err != nil {
		return Symbol{}, err
	}
	return sym, nil
}

// decodeTypeRef reads only the name of a referenced symbol.
func decodeTypeRef(b []byte) (*TypeRef, error) {
	ref := &TypeRef{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != symbolName {
			return nil
		}
		if typ != protowire.BytesType {
			return wireTypeError("Symbol.name", typ)
		}
		ref.Name = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func decodeParameter(b []byte) (Parameter, error) {
	var p Parameter
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case parameterName:
			if typ != protowire.BytesType {
				return wireTypeError("Parameter.name", typ)
			}
			p.Name = string(v)
		case parameterType:
			if typ != protowire.BytesType {
				return wireTypeError("Parameter.type", typ)
			}
			ref, err := decodeTypeRef(v)
			if err != nil {
				return fmt.Errorf("type: %w", err)
			}
			p.Type = ref
		}
		return nil
	})
	return p, err
}

func decodeLocation(b []byte) (*Location, error) {
	loc := &Location{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch num {
		case locationFile:
			if typ != protowire.BytesType {
				return wireTypeError("Location.file", typ)
			}
			loc.File = string(v)
		case locationLine:
			if typ != protowire.VarintType {
				return wireTypeError("Location.line", typ)
			}
			loc.Line = int(n)
		case locationColumn:
			if typ != protowire.VarintType {
				return wireTypeError("Location.column", typ)
			}
			loc.Column = int(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// fieldFunc receives one field. For length-delimited fields v holds the
// payload; for varint fields n holds the value.
type fieldFunc func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error

// walk iterates over the top-level fields of a message, skipping unknown
// wire types after validating them.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var (
			payload []byte
			value   uint64
		)
		switch typ {
		case protowire.VarintType:
			value, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			payload, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, payload, value); err != nil {
			return err
		}
	}
	return nil
}

func wireTypeError(field string, typ protowire.Type) error {
	return fmt.Errorf("%w: unexpected wire type %d for %s", ErrMalformed, typ, field)
}
