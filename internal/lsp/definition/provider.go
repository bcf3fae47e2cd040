package definition

import (
	"context"
	"log/slog"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
)

// Provider answers definition requests by asking the analyzer for the
// symbol under the cursor.
type Provider struct {
	runner analyzer.Runner
	logger *slog.Logger
}

func NewProvider(runner analyzer.Runner, logger *slog.Logger) *Provider {
	return &Provider{runner: runner, logger: logger}
}

// GetDefinition runs the analyzer in get-symbol mode. Any failure is logged
// and yields nil.
func (p *Provider) GetDefinition(ctx context.Context, params *protocol.DefinitionParams) *protocol.Location {
	req, err := analyzer.NewRequest(params.TextDocument.URI, params.Position.Line, params.Position.Character)
	if err != nil {
		p.logger.Warn("skipping definition", "uri", params.TextDocument.URI, "error", err)
		return nil
	}

	inv := analyzer.NewInvocation(config.FromContext(ctx), req, analyzer.ModeGetSymbol, params.DocumentContent)
	out, err := p.runner.Run(ctx, inv)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("analyzer run failed", "mode", inv.Mode, "file", inv.FilePath, "error", err)
		}
		return nil
	}

	sym, err := scope.DecodeSymbol(out)
	if err != nil {
		analyzer.RecordDecodeFailure(inv.Mode)
		p.logger.Error("failed to decode analyzer symbol", "file", inv.FilePath, "bytes", len(out), "error", err)
		return nil
	}

	switch loc := sym.DefinitionLocation; {
	case loc == nil:
		p.logger.Debug("symbol has no definition site", "symbol", sym.Name)
	case !HasPosition(loc):
		p.logger.Warn("analyzer reported a definition without a position", "symbol", sym.Name, "file", loc.File, "line", loc.Line, "column", loc.Column)
	}
	return Project(sym)
}
