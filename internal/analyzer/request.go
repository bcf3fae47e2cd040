package analyzer

import (
	"fmt"
	"net/url"
	"strings"
)

const fileScheme = "file://"

// Mode selects the analyzer's operation.
type Mode string

const (
	// ModeDumpScope lists the symbols visible at a position (completion).
	ModeDumpScope Mode = "dump-scope"
	// ModeGetSymbol resolves the symbol at a position (definition).
	ModeGetSymbol Mode = "get-symbol"
)

// Translate applies the mode's coordinate rule.
func (m Mode) Translate(p Position) AnalyzerPosition {
	if m == ModeGetSymbol {
		return DefinitionPosition(p)
	}
	return CompletionPosition(p)
}

// Request is one position-addressed editor request.
type Request struct {
	URI      string
	Path     string
	Position Position
}

// NewRequest validates the document URI and position. Only file:// URIs
// can be handed to the analyzer.
func NewRequest(uri string, line, character int) (Request, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return Request{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
	if line < 0 || character < 0 {
		return Request{}, fmt.Errorf("%w: line %d, character %d", ErrInvalidPosition, line, character)
	}

	path, err := PathFromURI(uri)
	if err != nil {
		return Request{}, err
	}

	return Request{
		URI:      uri,
		Path:     path,
		Position: Position{Line: line, Character: character},
	}, nil
}

// PathFromURI returns the unescaped filesystem path of a file:// URI.
func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid document uri %q: %w", uri, err)
	}
	return u.Path, nil
}

// URIFromPath builds a file:// URI from an absolute path.
func URIFromPath(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
