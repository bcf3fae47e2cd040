package completion

import (
	"context"
	"log/slog"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
)

// Provider answers completion requests by asking the analyzer for the
// scope at the cursor.
type Provider struct {
	runner analyzer.Runner
	logger *slog.Logger
}

func NewProvider(runner analyzer.Runner, logger *slog.Logger) *Provider {
	return &Provider{runner: runner, logger: logger}
}

// GetCompletions runs the analyzer in dump-scope mode against the captured
// buffer text. Any failure is logged and yields an empty list.
func (p *Provider) GetCompletions(ctx context.Context, params *protocol.CompletionParams) []protocol.CompletionItem {
	req, err := analyzer.NewRequest(params.TextDocument.URI, params.Position.Line, params.Position.Character)
	if err != nil {
		p.logger.Warn("skipping completion", "uri", params.TextDocument.URI, "error", err)
		return []protocol.CompletionItem{}
	}

	inv := analyzer.NewInvocation(config.FromContext(ctx), req, analyzer.ModeDumpScope, params.DocumentContent)
	out, err := p.runner.Run(ctx, inv)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("analyzer run failed", "mode", inv.Mode, "file", inv.FilePath, "error", err)
		}
		return []protocol.CompletionItem{}
	}

	sc, err := scope.DecodeScope(out)
	if err != nil {
		analyzer.RecordDecodeFailure(inv.Mode)
		p.logger.Error("failed to decode analyzer scope", "file", inv.FilePath, "bytes", len(out), "error", err)
		return []protocol.CompletionItem{}
	}

	for _, sym := range sc.Symbols {
		if sym.Kind == scope.SymbolKindUnknown {
			p.logger.Warn("analyzer reported an unknown symbol kind", "symbol", sym.Name)
		}
	}

	return Project(sc)
}

func (p *Provider) GetTriggerCharacters() []string {
	return []string{".", ".>", "~"}
}
