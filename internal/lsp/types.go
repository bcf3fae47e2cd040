package lsp

import (
	"context"

	"github.com/ponylang/pony-lsp/internal/journal"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
)

// CompletionProvider is an interface for providing completion items
type CompletionProvider interface {
	// GetCompletions returns completion items for the given parameters.
	// It never returns nil.
	GetCompletions(ctx context.Context, params *protocol.CompletionParams) []protocol.CompletionItem
	// GetTriggerCharacters returns the characters that trigger this completion provider
	GetTriggerCharacters() []string
}

// GotoDefinitionProvider is an interface for providing definition locations
type GotoDefinitionProvider interface {
	// GetDefinition returns the definition of the symbol at the given
	// position, or nil.
	GetDefinition(ctx context.Context, params *protocol.DefinitionParams) *protocol.Location
}

// InvocationJournal is the read side of the analyzer invocation journal.
type InvocationJournal interface {
	Entries(filePath string, limit int) ([]journal.Entry, error)
	Entry(id string) (journal.Entry, bool, error)
	ClearFile(filePath string) error
	Clear() error
}
