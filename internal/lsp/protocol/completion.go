package protocol

// CompletionItemKind is the kind of a completion item.
type CompletionItemKind int

const (
	CompletionItemKindText        CompletionItemKind = 1
	CompletionItemKindMethod      CompletionItemKind = 2
	CompletionItemKindFunction    CompletionItemKind = 3
	CompletionItemKindConstructor CompletionItemKind = 4
	CompletionItemKindField       CompletionItemKind = 5
	CompletionItemKindVariable    CompletionItemKind = 6
	CompletionItemKindClass       CompletionItemKind = 7
	CompletionItemKindInterface   CompletionItemKind = 8
)

// CompletionParams represents the parameters for a completion request
type CompletionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
	Context      *CompletionContext     `json:"context,omitempty"`

	// Buffer text captured when the request was received. Not part of LSP.
	DocumentContent []byte `json:"-"`
}

// CompletionContext describes how completion was triggered
type CompletionContext struct {
	TriggerKind      int    `json:"triggerKind"`
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

// CompletionItem represents a completion item
type CompletionItem struct {
	Label  string             `json:"label"`
	Kind   CompletionItemKind `json:"kind"`
	Detail string             `json:"detail,omitempty"`
	// Documentation is sent as a plain LSP string.
	Documentation string `json:"documentation,omitempty"`
}
