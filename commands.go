package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/logging"
	"github.com/ponylang/pony-lsp/internal/lsp/completion"
	"github.com/ponylang/pony-lsp/internal/lsp/definition"
	"github.com/ponylang/pony-lsp/internal/lsp/protocol"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

var (
	analyzerPath   string
	ponyPath       string
	timeout        time.Duration
	configFile     string
	logLevel       string
	logFormat      string
	maxConcurrent  int
	journalEnabled bool
	journalPath    string
	metricsAddr    string

	rootCmd = &cobra.Command{
		Use:          "pony-lsp",
		Short:        "Language server for Pony backed by pony_intellisense_cli",
		Version:      version,
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the Language Server Protocol on stdin/stdout (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	queryCmd = &cobra.Command{
		Use:   "query (completion|definition) <file> <line> <character>",
		Short: "Run a single completion or definition request and print the LSP result",
		Long: `Runs the analyzer once against a file on disk, exactly as the server
would for an editor request, and prints the result as JSON.
Line and character are zero-based, as in LSP.`,
		Args: cobra.ExactArgs(4),
		RunE: runQuery,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&analyzerPath, "analyzer", "", "path to pony_intellisense_cli (default "+config.DefaultAnalyzerPath+")")
	flags.StringVar(&ponyPath, "pony-path", "", "package search path passed as PONYPATH (default $PONYPATH or "+config.DefaultPonyPath+")")
	flags.DurationVar(&timeout, "timeout", 0, "analyzer timeout per request (default "+config.DefaultTimeout.String()+")")
	flags.StringVar(&configFile, "config", "", "workspace config file (default <root>/"+config.FileName+")")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default $"+logging.LevelEnv+" or info)")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json (default $"+logging.FormatEnv+" or text)")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 1, "maximum number of analyzer processes running at once")
		cmd.Flags().BoolVar(&journalEnabled, "journal", true, "record analyzer invocations for pony/invocations")
		cmd.Flags().StringVar(&journalPath, "journal-path", "", "journal database (default in the user config directory)")
		cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. localhost:9464")
	}

	rootCmd.AddCommand(serveCmd, queryCmd)
}

func newLogger() *slog.Logger {
	cfg := logging.ConfigFromEnv()
	if level, ok := logging.ParseLevel(logLevel); ok {
		cfg.Level = level
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	return logging.New(cfg)
}

func flagOverrides() config.Overrides {
	return config.Overrides{
		AnalyzerPath: analyzerPath,
		PonyPath:     ponyPath,
		Timeout:      timeout,
	}
}

// queryRequest is one parsed query invocation.
type queryRequest struct {
	mode      analyzer.Mode
	path      string
	line      int
	character int
}

func parseQueryArgs(args []string) (queryRequest, error) {
	var q queryRequest
	switch args[0] {
	case "completion":
		q.mode = analyzer.ModeDumpScope
	case "definition":
		q.mode = analyzer.ModeGetSymbol
	default:
		return q, fmt.Errorf("unknown query %q, want completion or definition", args[0])
	}

	path, err := filepath.Abs(args[1])
	if err != nil {
		return q, err
	}
	q.path = path

	if q.line, err = strconv.Atoi(args[2]); err != nil {
		return q, fmt.Errorf("invalid line %q: %w", args[2], err)
	}
	if q.character, err = strconv.Atoi(args[3]); err != nil {
		return q, fmt.Errorf("invalid character %q: %w", args[3], err)
	}
	return q, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	q, err := parseQueryArgs(args)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(q.path)
	if err != nil {
		return err
	}

	store, err := config.NewStore(flagOverrides(), logger)
	if err != nil {
		return err
	}
	cfgPath := configFile
	if cfgPath == "" {
		cfgPath = config.FilePath(filepath.Dir(q.path))
	}
	fileOverrides, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}
	settings, err := store.Set(config.LayerFile, fileOverrides)
	if err != nil {
		return err
	}

	ctx := config.WithSettings(cmd.Context(), settings)
	invoker := analyzer.NewInvoker(1, os.Stderr, logger)

	start := time.Now()
	result, err := runQueryRequest(ctx, invoker, logger, q, text)
	if err != nil {
		return err
	}

	return writeQueryResult(cmd.OutOrStdout(), q, result, time.Since(start))
}

func runQueryRequest(ctx context.Context, runner analyzer.Runner, logger *slog.Logger, q queryRequest, text []byte) (any, error) {
	uri := analyzer.URIFromPath(q.path)
	position := protocol.Position{Line: q.line, Character: q.character}

	if _, err := analyzer.NewRequest(uri, q.line, q.character); err != nil {
		return nil, err
	}

	if q.mode == analyzer.ModeGetSymbol {
		return definition.NewProvider(runner, logger).GetDefinition(ctx, &protocol.DefinitionParams{
			TextDocument:    protocol.TextDocumentIdentifier{URI: uri},
			Position:        position,
			DocumentContent: text,
		}), nil
	}
	return completion.NewProvider(runner, logger).GetCompletions(ctx, &protocol.CompletionParams{
		TextDocument:    protocol.TextDocumentIdentifier{URI: uri},
		Position:        position,
		DocumentContent: text,
	}), nil
}

// writeQueryResult prints the result wrapped with request details, coloured
// when out is a terminal.
func writeQueryResult(out io.Writer, q queryRequest, result any, elapsed time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}

	doc := []byte(`{}`)
	for _, set := range []struct {
		path  string
		value any
	}{
		{"request.mode", string(q.mode)},
		{"request.file", q.path},
		{"request.line", q.line},
		{"request.character", q.character},
		{"elapsed", elapsed.String()},
	} {
		if doc, err = sjson.SetBytes(doc, set.path, set.value); err != nil {
			return err
		}
	}
	if doc, err = sjson.SetRawBytes(doc, "result", raw); err != nil {
		return err
	}

	doc = pretty.Pretty(doc)
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		doc = pretty.Color(doc, nil)
	}

	_, err = out.Write(doc)
	return err
}
