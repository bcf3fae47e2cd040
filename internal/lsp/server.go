// Package lsp implements the JSON-RPC side of the language server: the
// request loop, the open-document store and dispatch to completion and
// definition providers.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/sourcegraph/jsonrpc2"
)

var errInvalidParams = errors.New("invalid params")

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Settings is the live configuration. Each request captures one snapshot.
	Settings *config.Store
	// Journal is optional; without it the journal methods fail.
	Journal InvocationJournal
	Logger  *slog.Logger
	// OnInitialize is called with the workspace root once the client has
	// sent 'initialize'.
	OnInitialize func(rootPath string)
}

// Server represents the LSP server
type Server struct {
	name                string
	version             string
	rootPath            string
	completionProviders []CompletionProvider
	definitionProviders []GotoDefinitionProvider
	documentManager     *DocumentManager
	settings            *config.Store
	journal             InvocationJournal
	logger              *slog.Logger
	onInitialize        func(rootPath string)

	inflightMu sync.Mutex
	inflight   map[jsonrpc2.ID]context.CancelFunc
	pending    sync.WaitGroup
	shutdown   atomic.Bool
}

// NewServer creates a new LSP server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		name:            opts.Name,
		version:         opts.Version,
		documentManager: NewDocumentManager(),
		settings:        opts.Settings,
		journal:         opts.Journal,
		logger:          logger,
		onInitialize:    opts.OnInitialize,
		inflight:        make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// RegisterCompletionProvider registers a completion provider with the server
func (s *Server) RegisterCompletionProvider(provider CompletionProvider) {
	s.completionProviders = append(s.completionProviders, provider)
}

// RegisterDefinitionProvider registers a definition provider with the server
func (s *Server) RegisterDefinitionProvider(provider GotoDefinitionProvider) {
	s.definitionProviders = append(s.definitionProviders, provider)
}

// Start serves LSP over the given reader and writer until the client exits.
func (s *Server) Start(in io.Reader, out io.Writer) error {
	return s.Serve(context.Background(), rwc{in, out})
}

// Serve serves LSP over stream until the connection closes or ctx ends.
// It returns once all in-flight requests have replied.
func (s *Server) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}), s)

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
			s.logger.Warn("error closing connection", "error", err)
		}
	}

	s.cancelAll()
	s.pending.Wait()
	s.documentManager.Close()
	return nil
}

// ShutdownRequested reports whether the client sent 'shutdown' before
// exiting.
func (s *Server) ShutdownRequested() bool {
	return s.shutdown.Load()
}

// DocumentManager returns the open-document store.
func (s *Server) DocumentManager() *DocumentManager {
	return s.documentManager
}

// RootPath returns the workspace root reported by the client.
func (s *Server) RootPath() string {
	return s.rootPath
}

// rwc combines a reader and writer into a single ReadWriteCloser
type rwc struct {
	io.Reader
	io.Writer
}

// Close implements io.Closer
func (rwc) Close() error {
	return nil
}

// Handle implements jsonrpc2.Handler. It is called from the connection's
// read loop, so notifications are applied in arrival order. Requests that
// run the analyzer are answered from their own goroutine.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if s.shutdown.Load() && !req.Notif && req.Method != "shutdown" {
		s.replyError(ctx, conn, req, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "server is shutting down",
		})
		return
	}

	switch req.Method {
	case "textDocument/completion":
		s.handleCompletion(ctx, conn, req)
		return
	case "textDocument/definition":
		s.handleDefinition(ctx, conn, req)
		return
	}

	result, err := s.handle(ctx, conn, req)
	if req.Notif {
		if err != nil {
			s.logger.Warn("failed to handle notification", "method", req.Method, "error", err)
		}
		return
	}
	if err != nil {
		s.replyError(ctx, conn, req, rpcError(err))
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		s.logger.Warn("failed to reply", "method", req.Method, "error", err)
	}
}

// handle processes requests and notifications that are answered inline
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		return s.initialize(&params), nil

	case "initialized":
		s.logger.Info("client initialized", "root", s.rootPath)
		return nil, nil

	case "shutdown":
		s.shutdown.Store(true)
		s.cancelAll()
		s.logger.Info("received shutdown request, waiting for exit notification")
		return nil, nil

	case "exit":
		s.logger.Info("received exit notification, exiting")
		if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
			s.logger.Warn("error closing connection", "error", err)
		}
		return nil, nil

	case "$/cancelRequest":
		var params protocol.CancelParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		s.cancelRequest(params.ID)
		return nil, nil

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		s.documentManager.OpenDocument(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
		return nil, nil

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		// full sync: the last change holds the complete text
		if n := len(params.ContentChanges); n > 0 {
			s.documentManager.UpdateDocument(params.TextDocument.URI, params.ContentChanges[n-1].Text, params.TextDocument.Version)
		}
		return nil, nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		s.documentManager.CloseDocument(params.TextDocument.URI)
		return nil, nil

	case "completionItem/resolve":
		// items are complete when listed; echo the client's item untouched
		if req.Params == nil {
			return nil, fmt.Errorf("%w: %s requires params", errInvalidParams, req.Method)
		}
		return req.Params, nil

	case "workspace/didChangeConfiguration":
		return nil, s.didChangeConfiguration(req)

	case "pony/invocations":
		var params invocationsParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		return s.invocations(&params)

	case "pony/invocation":
		var params invocationParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		return s.invocation(&params)

	case "pony/clearJournal":
		var params clearJournalParams
		if req.Params != nil {
			if err := decodeParams(req, &params); err != nil {
				return nil, err
			}
		}
		return nil, s.clearJournal(&params)

	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
	}
}

// initialize handles the LSP initialize request
func (s *Server) initialize(params *protocol.InitializeParams) *protocol.InitializeResult {
	s.extractRootPath(params)
	if s.onInitialize != nil {
		s.onInitialize(s.rootPath)
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncFull,
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider:   true,
				TriggerCharacters: s.collectTriggerCharacters(),
			},
			DefinitionProvider: len(s.definitionProviders) > 0,
		},
		ServerInfo: &protocol.ServerInfo{Name: s.name, Version: s.version},
	}
}

// extractRootPath extracts the root path from the initialize params
func (s *Server) extractRootPath(params *protocol.InitializeParams) {
	if params.RootPath != "" {
		s.rootPath = params.RootPath
		return
	}

	for _, uri := range rootURIs(params) {
		if path, err := analyzer.PathFromURI(uri); err == nil {
			s.rootPath = path
			return
		}
	}

	s.rootPath, _ = os.Getwd()
}

func rootURIs(params *protocol.InitializeParams) []string {
	uris := make([]string, 0, 1+len(params.WorkspaceFolders))
	if params.RootURI != "" {
		uris = append(uris, params.RootURI)
	}
	for _, folder := range params.WorkspaceFolders {
		uris = append(uris, folder.URI)
	}
	return uris
}

// collectTriggerCharacters collects the trigger characters of all providers,
// keeping registration order
func (s *Server) collectTriggerCharacters() []string {
	seen := make(map[string]bool)
	triggerChars := make([]string, 0)

	for _, provider := range s.completionProviders {
		for _, char := range provider.GetTriggerCharacters() {
			if !seen[char] {
				seen[char] = true
				triggerChars = append(triggerChars, char)
			}
		}
	}

	return triggerChars
}

// runAsync runs fn on its own goroutine with a cancellable context that
// carries the current settings snapshot, and replies with its result.
func (s *Server) runAsync(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, fn func(ctx context.Context) any) {
	reqCtx, cancel := context.WithCancel(config.WithSettings(ctx, s.settings.Load()))

	s.inflightMu.Lock()
	s.inflight[req.ID] = cancel
	s.inflightMu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.forget(req.ID)

		result := fn(reqCtx)

		if reqCtx.Err() != nil {
			s.replyError(ctx, conn, req, &jsonrpc2.Error{
				Code:    protocol.CodeRequestCancelled,
				Message: "request cancelled",
			})
			return
		}
		if err := conn.Reply(ctx, req.ID, result); err != nil {
			s.logger.Warn("failed to reply", "method", req.Method, "error", err)
		}
	}()
}

func (s *Server) cancelRequest(id jsonrpc2.ID) {
	s.inflightMu.Lock()
	cancel, ok := s.inflight[id]
	s.inflightMu.Unlock()

	if ok {
		s.logger.Debug("cancelling request", "id", id.String())
		cancel()
	}
}

func (s *Server) forget(id jsonrpc2.ID) {
	s.inflightMu.Lock()
	cancel, ok := s.inflight[id]
	delete(s.inflight, id)
	s.inflightMu.Unlock()

	if ok {
		cancel()
	}
}

func (s *Server) cancelAll() {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	for _, cancel := range s.inflight {
		cancel()
	}
}

func (s *Server) replyError(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, rpcErr *jsonrpc2.Error) {
	if req.Notif {
		return
	}
	if err := conn.ReplyWithError(ctx, req.ID, rpcErr); err != nil {
		s.logger.Warn("failed to reply with error", "method", req.Method, "error", err)
	}
}

func decodeParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return fmt.Errorf("%w: %s requires params", errInvalidParams, req.Method)
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

// rpcError maps handler errors onto JSON-RPC error codes.
func rpcError(err error) *jsonrpc2.Error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	code := int64(jsonrpc2.CodeInternalError)
	switch {
	case errors.Is(err, errInvalidParams),
		errors.Is(err, analyzer.ErrUnsupportedScheme),
		errors.Is(err, analyzer.ErrInvalidPosition):
		code = jsonrpc2.CodeInvalidParams
	case errors.Is(err, errJournalDisabled):
		code = protocol.CodeRequestFailed
	}
	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}
