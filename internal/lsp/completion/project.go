// Package completion turns the analyzer's scope listing into LSP
// completion items.
package completion

import (
	"strings"

	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
)

const unknownType = "*unknown*"

var itemKinds = map[scope.SymbolKind]protocol.CompletionItemKind{
	scope.SymbolKindActor:     protocol.CompletionItemKindClass,
	scope.SymbolKindClass:     protocol.CompletionItemKindClass,
	scope.SymbolKindStruct:    protocol.CompletionItemKindClass,
	scope.SymbolKindPrimitive: protocol.CompletionItemKindClass,
	scope.SymbolKindInterface: protocol.CompletionItemKindInterface,
	scope.SymbolKindTrait:     protocol.CompletionItemKindInterface,
	scope.SymbolKindType:      protocol.CompletionItemKindInterface,
	scope.SymbolKindParam:     protocol.CompletionItemKindVariable,
	scope.SymbolKindLet:       protocol.CompletionItemKindVariable,
	scope.SymbolKindVar:       protocol.CompletionItemKindVariable,
	scope.SymbolKindNew:       protocol.CompletionItemKindConstructor,
	scope.SymbolKindFieldLet:  protocol.CompletionItemKindField,
	scope.SymbolKindFieldVar:  protocol.CompletionItemKindField,
	scope.SymbolKindFun:       protocol.CompletionItemKindFunction,
	scope.SymbolKindBe:        protocol.CompletionItemKindMethod,
}

// ItemKind maps a symbol kind to a completion item kind. Kinds outside the
// table, SymbolKindUnknown included, become plain text.
func ItemKind(k scope.SymbolKind) protocol.CompletionItemKind {
	if kind, ok := itemKinds[k]; ok {
		return kind
	}
	return protocol.CompletionItemKindText
}

// Project converts a scope into completion items in analyzer order. The
// result is never nil.
func Project(sc scope.Scope) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(sc.Symbols))
	for _, sym := range sc.Symbols {
		items = append(items, Item(sym))
	}
	return items
}

// Item converts a single symbol.
func Item(sym scope.Symbol) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:         sym.Name,
		Kind:          ItemKind(sym.Kind),
		Detail:        Detail(sym),
		Documentation: sym.Docstring,
	}
}

// Detail renders a one-line signature such as
// "fun apply(x: U32, y: *unknown*) => Bool box".
func Detail(sym scope.Symbol) string {
	var b strings.Builder
	b.WriteString(sym.Kind.String())
	b.WriteByte(' ')
	b.WriteString(sym.Name)

	if len(sym.Parameters) > 0 {
		b.WriteByte('(')
		for i, p := range sym.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			if p.Type != nil {
				b.WriteString(p.Type.Name)
			} else {
				b.WriteString(unknownType)
			}
		}
		b.WriteByte(')')
	}

	if sym.Type != nil {
		b.WriteString(" => ")
		b.WriteString(sym.Type.Name)
	}

	b.WriteByte(' ')
	b.WriteString(sym.Cap.String())
	return b.String()
}
