package scope_test

import (
	"testing"

	"github.com/ponylang/pony-lsp/internal/scope"
	"github.com/ponylang/pony-lsp/internal/scope/scopetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeSymbol_AllFields(t *testing.T) {
	want := scope.Symbol{
		Kind:       scope.SymbolKindFun,
		Name:       "apply",
		Type:       &scope.TypeRef{Name: "String"},
		Parameters: []scope.Parameter{scopetest.Param("x", "U32"), scopetest.Param("y", "")},
		Cap:        scope.RefCapVal,
		Docstring:  "Applies the thing.",
		DefinitionLocation: &scope.Location{
			File:   "/usr/share/pony/packages/builtin/string.pony",
			Line:   120,
			Column: 7,
		},
	}

	got, err := scope.DecodeSymbol(scopetest.EncodeSymbol(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeScope_PreservesOrder(t *testing.T) {
	in := scope.Scope{Symbols: []scope.Symbol{
		{Kind: scope.SymbolKindVar, Name: "zeta", Cap: scope.RefCapRef},
		{Kind: scope.SymbolKindLet, Name: "alpha", Cap: scope.RefCapVal},
		scopetest.Function("create", "", scopetest.Param("env", "Env")),
	}}

	got, err := scope.DecodeScope(scopetest.EncodeScope(in))
	require.NoError(t, err)
	require.Len(t, got.Symbols, 3)
	assert.Equal(t, "zeta", got.Symbols[0].Name)
	assert.Equal(t, "alpha", got.Symbols[1].Name)
	assert.Equal(t, "create", got.Symbols[2].Name)
	assert.Equal(t, scope.SymbolKindFun, got.Symbols[2].Kind)
}

func TestDecodeScope_Empty(t *testing.T) {
	got, err := scope.DecodeScope(nil)
	require.NoError(t, err)
	assert.NotNil(t, got.Symbols)
	assert.Empty(t, got.Symbols)
}

func TestDecodeSymbol_Empty(t *testing.T) {
	got, err := scope.DecodeSymbol([]byte{})
	require.NoError(t, err)
	assert.Nil(t, got.DefinitionLocation)
	assert.Equal(t, scope.SymbolKindActor, got.Kind)
}

func TestDecode_Malformed(t *testing.T) {
	valid := scopetest.EncodeScope(scope.Scope{Symbols: []scope.Symbol{
		scopetest.Function("foo", "None"),
	}})

	tests := []struct {
		name  string
		input []byte
		// a varint in field 1 is a valid Symbol.kind but not a valid Scope
		scopeOnly bool
	}{
		{name: "truncated length", input: []byte{0x0a, 0x05, 0x01}},
		{name: "truncated message", input: valid[:len(valid)-2]},
		{name: "incomplete varint tag", input: []byte{0xff}},
		{name: "field number zero", input: []byte{0x07}},
		{name: "garbage", input: []byte("this is not protobuf at all")},
		{name: "wrong wire type for symbols", input: []byte{0x08, 0x01}, scopeOnly: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scope.DecodeScope(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, scope.ErrMalformed)

			if tt.scopeOnly {
				return
			}
			_, err = scope.DecodeSymbol(tt.input)
			assert.ErrorIs(t, err, scope.ErrMalformed)
		})
	}
}

func TestDecodeSymbol_WrongWireTypeForName(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	_, err := scope.DecodeSymbol(b)
	assert.ErrorIs(t, err, scope.ErrMalformed)
}

func TestDecodeSymbol_SkipsUnknownFields(t *testing.T) {
	b := scopetest.EncodeSymbol(scope.Symbol{Kind: scope.SymbolKindClass, Name: "Foo", Cap: scope.RefCapRef})
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)
	b = protowire.AppendTag(b, 100, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := scope.DecodeSymbol(b)
	require.NoError(t, err)
	assert.Equal(t, "Foo", got.Name)
	assert.Equal(t, scope.SymbolKindClass, got.Kind)
}

func TestDecodeSymbol_UnknownEnums(t *testing.T) {
	b := scopetest.EncodeSymbol(scope.Symbol{Kind: scope.SymbolKindUnknown, Name: "mystery", Cap: scope.RefCapUnknown})

	got, err := scope.DecodeSymbol(b)
	require.NoError(t, err)
	assert.Equal(t, scope.SymbolKindUnknown, got.Kind)
	assert.Equal(t, scope.RefCapUnknown, got.Cap)
	assert.Equal(t, "unknown", got.Kind.String())
	assert.Equal(t, "unknown", got.Cap.String())
}

func TestSymbolKindString(t *testing.T) {
	assert.Equal(t, "fun", scope.SymbolKindFun.String())
	assert.Equal(t, "be", scope.SymbolKindBe.String())
	assert.Equal(t, "flet", scope.SymbolKindFieldLet.String())
	assert.Equal(t, "new", scope.SymbolKindNew.String())
	assert.Equal(t, "tag", scope.RefCapTag.String())
}
