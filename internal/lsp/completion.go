package lsp

import (
	"context"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/sourcegraph/jsonrpc2"
)

// handleCompletion validates a textDocument/completion request and answers
// it asynchronously. Invalid document URIs are rejected before any provider
// runs.
func (s *Server) handleCompletion(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params protocol.CompletionParams
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
		s.logger.Warn("completion requested for a document that is not open", "uri", params.TextDocument.URI)
		if err := conn.Reply(ctx, req.ID, []protocol.CompletionItem{}); err != nil {
			s.logger.Warn("failed to reply", "method", req.Method, "error", err)
		}
		return
	}
	params.DocumentContent = text

	s.runAsync(ctx, conn, req, func(ctx context.Context) any {
		return s.completion(ctx, &params)
	})
}

// completion collects completion items from all providers
func (s *Server) completion(ctx context.Context, params *protocol.CompletionParams) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	for _, provider := range s.completionProviders {
		items = append(items, provider.GetCompletions(ctx, params)...)
	}
	return items
}
