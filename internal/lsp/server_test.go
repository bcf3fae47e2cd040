package lsp_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/journal"
	"github.com/ponylang/pony-lsp/internal/logging"
	"github.com/ponylang/pony-lsp/internal/lsp"
	"github.com/ponylang/pony-lsp/internal/lsp/completion"
	"github.com/ponylang/pony-lsp/internal/lsp/definition"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/ponylang/pony-lsp/internal/scope"
	"github.com/ponylang/pony-lsp/internal/scope/scopetest"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainURI = "file:///work/app/main.pony"

// writeAnalyzer creates a fake analyzer that discards its input and prints
// the given response.
func writeAnalyzer(t *testing.T, response []byte, extra string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake analyzer requires /bin/sh")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "response.bin"), response, 0o644))

	script := "#!/bin/sh\ndir=$(dirname \"$0\")\ncat > /dev/null\n" + extra + "cat \"$dir/response.bin\"\n"
	path := filepath.Join(dir, "analyzer.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

type harness struct {
	client *jsonrpc2.Conn
	server *lsp.Server
	store  *config.Store
	done   chan struct{}
}

type fakeJournal struct {
	entries     []journal.Entry
	path        string
	limit       int
	cleared     bool
	clearedFile string
}

func (f *fakeJournal) Entries(filePath string, limit int) ([]journal.Entry, error) {
	f.path, f.limit = filePath, limit
	return f.entries, nil
}

func (f *fakeJournal) Entry(id string) (journal.Entry, bool, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return journal.Entry{}, false, nil
}

func (f *fakeJournal) ClearFile(filePath string) error {
	f.clearedFile = filePath
	return nil
}

func (f *fakeJournal) Clear() error {
	f.cleared = true
	return nil
}

func newHarness(t *testing.T, analyzerPath string, j lsp.InvocationJournal) *harness {
	t.Helper()
	logger := logging.Nop()

	store, err := config.NewStore(config.Overrides{AnalyzerPath: analyzerPath, PonyPath: "/pkgs", Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)

	opts := lsp.Options{Name: "pony-lsp", Version: "test", Settings: store, Logger: logger}
	if j != nil {
		opts.Journal = j
	}
	srv := lsp.NewServer(opts)

	invoker := analyzer.NewInvoker(2, io.Discard, logger)
	srv.RegisterCompletionProvider(completion.NewProvider(invoker, logger))
	srv.RegisterDefinitionProvider(definition.NewProvider(invoker, logger))

	serverSide, clientSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(context.Background(), serverSide)
	}()

	client := jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
			return nil, nil
		}))

	h := &harness{client: client, server: srv, store: store, done: done}
	t.Cleanup(func() {
		_ = client.Close()
		_ = serverSide.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return h
}

func (h *harness) call(t *testing.T, method string, params, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.client.Call(ctx, method, params, result)
}

func (h *harness) notify(t *testing.T, method string, params any) {
	t.Helper()
	require.NoError(t, h.client.Notify(context.Background(), method, params))
}

func (h *harness) open(t *testing.T, uri, text string) {
	h.notify(t, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "pony", Version: 1, Text: text},
	})
}

func rpcCode(t *testing.T, err error) int64 {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "expected a JSON-RPC error, got %v", err)
	return rpcErr.Code
}

func completionAt(uri string, line, character int) protocol.CompletionParams {
	return protocol.CompletionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

func TestServer_Initialize(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	var result json.RawMessage
	require.NoError(t, h.call(t, "initialize", protocol.InitializeParams{RootURI: "file:///work/app"}, &result))

	assert.JSONEq(t, `{
		"capabilities": {
			"textDocumentSync": {"openClose": true, "change": 1},
			"completionProvider": {"resolveProvider": true, "triggerCharacters": [".", ".>", "~"]},
			"definitionProvider": true
		},
		"serverInfo": {"name": "pony-lsp", "version": "test"}
	}`, string(result))
	assert.Equal(t, "/work/app", h.server.RootPath())
}

func TestServer_Completion(t *testing.T) {
	response := scopetest.EncodeScope(scope.Scope{Symbols: []scope.Symbol{
		scopetest.Function("apply", "Bool", scopetest.Param("x", "U32"), scopetest.Param("y", "")),
		{Kind: scope.SymbolKindLet, Name: "env", Type: &scope.TypeRef{Name: "Env"}, Cap: scope.RefCapVal},
	}})
	h := newHarness(t, writeAnalyzer(t, response, ""), nil)
	h.open(t, mainURI, "actor Main\n")

	var items []protocol.CompletionItem
	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 5), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "apply", items[0].Label)
	assert.Equal(t, protocol.CompletionItemKindFunction, items[0].Kind)
	assert.Contains(t, items[0].Detail, "(x: U32, y: *unknown*)")
	assert.Equal(t, protocol.CompletionItemKindVariable, items[1].Kind)

	var resolved protocol.CompletionItem
	require.NoError(t, h.call(t, "completionItem/resolve", items[0], &resolved))
	assert.Equal(t, items[0], resolved)
}

func TestServer_ResolveReturnsItemUnchanged(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	for _, item := range []string{
		`{"label":"apply","kind":3,"detail":"fun apply box","data":{"id":7},"sortText":"a","insertText":"apply()"}`,
		`{"label":"apply","kind":3,"documentation":"plain docs"}`,
	} {
		var resolved json.RawMessage
		require.NoError(t, h.call(t, "completionItem/resolve", json.RawMessage(item), &resolved))
		assert.JSONEq(t, item, string(resolved))
	}
}

func TestServer_CompletionEmptyScopeIsEmptyArray(t *testing.T) {
	h := newHarness(t, writeAnalyzer(t, nil, ""), nil)
	h.open(t, mainURI, "actor Main\n")

	var raw json.RawMessage
	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), &raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestServer_UndecodableOutputKeepsServing(t *testing.T) {
	h := newHarness(t, writeAnalyzer(t, []byte{0x0a, 0xff, 0xff}, ""), nil)
	h.open(t, mainURI, "actor Main\n")

	var items []protocol.CompletionItem
	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), &items))
	assert.Empty(t, items)

	var loc *protocol.Location
	require.NoError(t, h.call(t, "textDocument/definition", protocol.DefinitionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: mainURI},
	}, &loc))
	assert.Nil(t, loc)

	var result json.RawMessage
	require.NoError(t, h.call(t, "initialize", protocol.InitializeParams{}, &result))
}

func TestServer_NonFileURIIsInvalidParams(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	h := newHarness(t, writeAnalyzer(t, nil, "touch "+marker+"\n"), nil)
	h.open(t, "untitled:Untitled-1", "actor Main\n")

	err := h.call(t, "textDocument/completion", completionAt("untitled:Untitled-1", 0, 0), nil)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcCode(t, err))

	err = h.call(t, "textDocument/definition", protocol.DefinitionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "untitled:Untitled-1"},
	}, nil)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcCode(t, err))

	assert.NoFileExists(t, marker, "analyzer must not run for non-file documents")
}

func TestServer_DocumentNotOpen(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	var raw json.RawMessage
	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), &raw))
	assert.JSONEq(t, `[]`, string(raw))

	require.NoError(t, h.call(t, "textDocument/definition", protocol.DefinitionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: mainURI},
	}, &raw))
	assert.JSONEq(t, `null`, string(raw))
}

func TestServer_DocumentSync(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)
	h.open(t, mainURI, "actor Main\n")
	h.notify(t, "textDocument/didChange", protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: mainURI, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "actor Main\n  new create(env: Env) => None\n"}},
	})

	require.Eventually(t, func() bool {
		text, ok := h.server.DocumentManager().GetDocumentText(mainURI)
		return ok && strings.Contains(string(text), "new create")
	}, 2*time.Second, 10*time.Millisecond)

	h.notify(t, "textDocument/didClose", protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: mainURI},
	})
	require.Eventually(t, func() bool {
		_, ok := h.server.DocumentManager().GetDocumentText(mainURI)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Definition(t *testing.T) {
	response := scopetest.EncodeSymbol(scope.Symbol{
		Kind:               scope.SymbolKindFun,
		Name:               "foo",
		DefinitionLocation: &scope.Location{File: "/a/b.pony", Line: 10, Column: 5},
	})
	h := newHarness(t, writeAnalyzer(t, response, ""), nil)
	h.open(t, mainURI, "actor Main\n")

	var loc protocol.Location
	require.NoError(t, h.call(t, "textDocument/definition", protocol.DefinitionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: mainURI},
		Position:     protocol.Position{Line: 3, Character: 2},
	}, &loc))
	assert.Equal(t, protocol.Location{
		URI: "file:///a/b.pony",
		Range: protocol.Range{
			Start: protocol.Position{Line: 9, Character: 4},
			End:   protocol.Position{Line: 9, Character: 7},
		},
	}, loc)
}

func TestServer_CancelRequest(t *testing.T) {
	dir := t.TempDir()
	started := filepath.Join(dir, "started")
	h := newHarness(t, writeAnalyzer(t, nil, "touch "+started+"\nexec sleep 10\n"), nil)
	h.open(t, mainURI, "actor Main\n")

	id := jsonrpc2.ID{Num: 4242}
	errc := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		errc <- h.client.Call(ctx, "textDocument/completion", completionAt(mainURI, 0, 0), nil, jsonrpc2.PickID(id))
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(started)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	h.notify(t, "$/cancelRequest", protocol.CancelParams{ID: id})

	select {
	case err := <-errc:
		assert.Equal(t, protocol.CodeRequestCancelled, rpcCode(t, err))
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(8 * time.Second):
		t.Fatal("cancelled request never replied")
	}
}

func TestServer_DidChangeConfiguration(t *testing.T) {
	response := scopetest.EncodeScope(scope.Scope{Symbols: []scope.Symbol{{Kind: scope.SymbolKindVar, Name: "count"}}})
	script := writeAnalyzer(t, response, "")

	h := newHarness(t, filepath.Join(t.TempDir(), "missing-analyzer"), nil)
	h.open(t, mainURI, "actor Main\n")

	var items []protocol.CompletionItem
	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), &items))
	assert.Empty(t, items)

	h.notify(t, "workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{
			"ponyLang": map[string]any{"ponyIntellisensePath": script, "ponyPath": "/client/pkgs"},
		},
	})
	require.Eventually(t, func() bool {
		return h.store.Load().AnalyzerPath == script
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "/client/pkgs", h.store.Load().PonyPath)

	require.NoError(t, h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "count", items[0].Label)
}

func TestServer_Journal(t *testing.T) {
	j := &fakeJournal{entries: []journal.Entry{{ID: "1", Mode: "dump-scope", Outcome: analyzer.OutcomeFailed}}}
	h := newHarness(t, "/nonexistent", j)

	var entries []journal.Entry
	require.NoError(t, h.call(t, "pony/invocations", map[string]any{"uri": mainURI, "limit": 5}, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, analyzer.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "/work/app/main.pony", j.path)
	assert.Equal(t, 5, j.limit)

	err := h.call(t, "pony/invocations", map[string]any{"uri": "untitled:x"}, nil)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcCode(t, err))

	var entry *journal.Entry
	require.NoError(t, h.call(t, "pony/invocation", map[string]any{"id": "1"}, &entry))
	require.NotNil(t, entry)
	assert.Equal(t, "dump-scope", entry.Mode)

	var raw json.RawMessage
	require.NoError(t, h.call(t, "pony/invocation", map[string]any{"id": "missing"}, &raw))
	assert.JSONEq(t, `null`, string(raw))

	require.NoError(t, h.call(t, "pony/clearJournal", map[string]any{"uri": mainURI}, nil))
	assert.Equal(t, "/work/app/main.pony", j.clearedFile)
	assert.False(t, j.cleared)

	require.NoError(t, h.call(t, "pony/clearJournal", nil, nil))
	assert.True(t, j.cleared)
}

func TestServer_JournalDisabled(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	err := h.call(t, "pony/invocations", map[string]any{"uri": mainURI}, nil)
	assert.Equal(t, protocol.CodeRequestFailed, rpcCode(t, err))
}

func TestServer_UnknownMethod(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	err := h.call(t, "textDocument/hover", map[string]any{}, nil)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcCode(t, err))
}

func TestServer_ShutdownAndExit(t *testing.T) {
	h := newHarness(t, "/nonexistent", nil)

	require.NoError(t, h.call(t, "shutdown", nil, nil))
	assert.True(t, h.server.ShutdownRequested())

	err := h.call(t, "textDocument/completion", completionAt(mainURI, 0, 0), nil)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcCode(t, err))

	h.notify(t, "exit", nil)
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after exit")
	}
}
