package analyzer

// Position is an editor position: zero-based line and character.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// AnalyzerPosition is a position in the analyzer's addressing: one-based
// line, and a column whose base depends on the request mode.
type AnalyzerPosition struct {
	Line   int
	Column int
}

// CompletionPosition translates a completion request position. Only the
// line is shifted; dump-scope takes the character offset as is.
func CompletionPosition(p Position) AnalyzerPosition {
	return AnalyzerPosition{Line: p.Line + 1, Column: p.Character}
}

// DefinitionPosition translates a definition request position. Both line
// and column become one-based.
func DefinitionPosition(p Position) AnalyzerPosition {
	return AnalyzerPosition{Line: p.Line + 1, Column: p.Character + 1}
}

// EditorPosition translates a one-based location reported by the analyzer
// back to the editor. It is the inverse of DefinitionPosition.
func EditorPosition(line, column int) Position {
	return Position{Line: line - 1, Character: column - 1}
}
