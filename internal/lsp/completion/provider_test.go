package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/logging"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
	"github.com/ponylang/pony-lsp/internal/scope/scopetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out   []byte
	err   error
	calls []analyzer.Invocation
}

func (f *fakeRunner) Run(_ context.Context, inv analyzer.Invocation) ([]byte, error) {
	f.calls = append(f.calls, inv)
	return f.out, f.err
}

func completionParams(uri string, line, character int) *protocol.CompletionParams {
	return &protocol.CompletionParams{
		TextDocument:    protocol.TextDocumentIdentifier{URI: uri},
		Position:        protocol.Position{Line: line, Character: character},
		DocumentContent: []byte("actor Main\n  new create(env: Env) =>\n    env.\n"),
	}
}

func TestProvider_RunsDumpScope(t *testing.T) {
	runner := &fakeRunner{out: scopetest.EncodeScope(scope.Scope{Symbols: []scope.Symbol{
		scopetest.Function("print", "None", scopetest.Param("data", "ByteSeq")),
	}})}
	p := NewProvider(runner, logging.Nop())

	settings := config.Settings{AnalyzerPath: "/opt/pony/analyzer", PonyPath: "/opt/pony/packages", Timeout: 3 * time.Second}
	ctx := config.WithSettings(context.Background(), settings)

	items := p.GetCompletions(ctx, completionParams("file:///work/app/main.pony", 2, 8))
	require.Len(t, items, 1)
	assert.Equal(t, "print", items[0].Label)
	assert.Equal(t, "fun print(data: ByteSeq) => None box", items[0].Detail)

	require.Len(t, runner.calls, 1)
	inv := runner.calls[0]
	assert.Equal(t, analyzer.ModeDumpScope, inv.Mode)
	assert.Equal(t, analyzer.AnalyzerPosition{Line: 3, Column: 8}, inv.Position)
	assert.Equal(t, "/opt/pony/analyzer", inv.Executable)
	assert.Equal(t, "/opt/pony/packages", inv.PonyPath)
	assert.Equal(t, 3*time.Second, inv.Timeout)
	assert.Equal(t, "/work/app/main.pony", inv.FilePath)
	assert.Contains(t, string(inv.Stdin), "env.")
}

func TestProvider_FailuresYieldEmptyList(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		uri    string
	}{
		{name: "analyzer failed", runner: &fakeRunner{err: analyzer.ErrAnalyzerFailed}, uri: "file:///a.pony"},
		{name: "garbage output", runner: &fakeRunner{out: []byte{0x0a, 0xff}}, uri: "file:///a.pony"},
		{name: "other error", runner: &fakeRunner{err: errors.New("boom")}, uri: "file:///a.pony"},
		{name: "non-file uri", runner: &fakeRunner{}, uri: "untitled:Untitled-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(tt.runner, logging.Nop())
			items := p.GetCompletions(context.Background(), completionParams(tt.uri, 0, 0))
			require.NotNil(t, items)
			assert.Empty(t, items)
		})
	}
}

func TestProvider_NonFileURINeverRunsAnalyzer(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProvider(runner, logging.Nop())

	p.GetCompletions(context.Background(), completionParams("untitled:Untitled-1", 0, 0))
	assert.Empty(t, runner.calls)
}

func TestProvider_TriggerCharacters(t *testing.T) {
	p := NewProvider(&fakeRunner{}, logging.Nop())
	assert.Equal(t, []string{".", ".>", "~"}, p.GetTriggerCharacters())
}
