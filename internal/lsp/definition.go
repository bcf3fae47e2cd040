package lsp

import (
	"context"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/sourcegraph/jsonrpc2"
)

// handleDefinition validates a textDocument/definition request and answers
// it asynchronously.
func (s *Server) handleDefinition(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params protocol.DefinitionParams
	if err := decodeParams(req, &params); err != nil {
		s.replyError(ctx, conn, req, rpcError(err))
		return
	}
	if _, err := analyzer.NewRequest(params.TextDocument.URI, params.Position.Line, params.Position.Character); err != nil {
		s.replyError(ctx, conn, req, rpcError(err))
		return
	}

	text, ok := s.documentManager.GetDocumentText(params.TextDocument.URI)
	if !ok {
		s.logger.Warn("definition requested for a document that is not open", "uri", params.TextDocument.URI)
		if err := conn.Reply(ctx, req.ID, nil); err != nil {
			s.logger.Warn("failed to reply", "method", req.Method, "error", err)
		}
		return
	}
	params.DocumentContent = text

	s.runAsync(ctx, conn, req, func(ctx context.Context) any {
		return s.definition(ctx, &params)
	})
}

// definition returns the first location any provider resolves
func (s *Server) definition(ctx context.Context, params *protocol.DefinitionParams) *protocol.Location {
	for _, provider := range s.definitionProviders {
		if loc := provider.GetDefinition(ctx, params); loc != nil {
			return loc
		}
	}
	return nil
}
