package lsp

import (
	"sync"
)

// TextDocument represents a document open in the editor
type TextDocument struct {
	URI     string
	Text    []byte
	Version int
}

// DocumentManager manages text documents. Only full-text sync is supported,
// so every update replaces the stored text.
type DocumentManager struct {
	documents map[string]*TextDocument
	mu        sync.RWMutex
}

// NewDocumentManager creates a new document manager
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*TextDocument),
	}
}

// OpenDocument adds or replaces a document
func (m *DocumentManager) OpenDocument(uri string, text string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.documents[uri] = &TextDocument{
		URI:     uri,
		Text:    []byte(text),
		Version: version,
	}
}

// UpdateDocument replaces the text of a document, creating it if needed.
// Stored text slices are never mutated, so readers may keep them.
func (m *DocumentManager) UpdateDocument(uri string, text string, version int) {
	m.OpenDocument(uri, text, version)
}

// CloseDocument removes a document
func (m *DocumentManager) CloseDocument(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.documents, uri)
}

// GetDocumentText returns the text of a document by URI
func (m *DocumentManager) GetDocumentText(uri string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if doc, ok := m.documents[uri]; ok {
		return doc.Text, true
	}
	return nil, false
}

// Close drops all documents
func (m *DocumentManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.documents)
}
