// Package definition resolves go-to-definition requests through the
// analyzer's get-symbol mode.
package definition

import (
	"unicode/utf16"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
)

// Project converts a resolved symbol into an LSP location spanning the
// symbol's name. It returns nil when the analyzer reported no definition
// site, or one without a 1-based line and column. The file path is used as
// reported.
func Project(sym scope.Symbol) *protocol.Location {
	loc := sym.DefinitionLocation
	if !HasPosition(loc) {
		return nil
	}

	start := analyzer.EditorPosition(loc.Line, loc.Column)
	return &protocol.Location{
		URI: analyzer.URIFromPath(loc.File),
		Range: protocol.Range{
			Start: protocol.Position{Line: start.Line, Character: start.Character},
			End:   protocol.Position{Line: start.Line, Character: start.Character + utf16Len(sym.Name)},
		},
	}
}

// HasPosition reports whether loc carries a usable 1-based position.
// Missing fields decode as 0.
func HasPosition(loc *scope.Location) bool {
	return loc != nil && loc.Line >= 1 && loc.Column >= 1
}

// utf16Len counts UTF-16 code units, the LSP character unit.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
