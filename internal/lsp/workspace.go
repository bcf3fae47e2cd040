package lsp

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/journal"
	"github.com/sourcegraph/jsonrpc2"
)

var errJournalDisabled = errors.New("invocation journal is disabled")

type invocationsParams struct {
	URI   string `json:"uri"`
	Limit int    `json:"limit,omitempty"`
}

type invocationParams struct {
	ID string `json:"id"`
}

// clearJournalParams limits pony/clearJournal to one document when URI is set.
type clearJournalParams struct {
	URI string `json:"uri,omitempty"`
}

// didChangeConfiguration replaces the client settings layer. Invalid
// settings are logged and the previous snapshot stays active.
func (s *Server) didChangeConfiguration(req *jsonrpc2.Request) error {
	if req.Params == nil {
		return nil
	}

	overrides, err := config.ClientOverrides(*req.Params)
	if err != nil {
		return fmt.Errorf("client settings: %w", err)
	}
	if _, err := s.settings.Set(config.LayerClient, overrides); err != nil {
		return fmt.Errorf("client settings: %w", err)
	}
	return nil
}

// invocations lists journaled analyzer runs for a document, newest first
func (s *Server) invocations(params *invocationsParams) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, errJournalDisabled
	}

	path, err := analyzer.PathFromURI(params.URI)
	if err != nil {
		return nil, err
	}

	return s.journal.Entries(filepath.Clean(path), params.Limit)
}

// invocation returns a single journaled run, or nil when the ID is unknown.
func (s *Server) invocation(params *invocationParams) (*journal.Entry, error) {
	if s.journal == nil {
		return nil, errJournalDisabled
	}

	entry, ok, err := s.journal.Entry(params.ID)
	if err != nil || !ok {
		return nil, err
	}
	return &entry, nil
}

func (s *Server) clearJournal(params *clearJournalParams) error {
	if s.journal == nil {
		return errJournalDisabled
	}
	if params.URI == "" {
		return s.journal.Clear()
	}

	path, err := analyzer.PathFromURI(params.URI)
	if err != nil {
		return err
	}
	return s.journal.ClearFile(filepath.Clean(path))
}
