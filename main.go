package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/ponylang/pony-lsp/internal/analyzer"
	"github.com/ponylang/pony-lsp/internal/config"
	"github.com/ponylang/pony-lsp/internal/journal"
	"github.com/ponylang/pony-lsp/internal/lsp"
	"github.com/ponylang/pony-lsp/internal/lsp/completion"
	"github.com/ponylang/pony-lsp/internal/lsp/definition"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var version = "dev"

var errExitWithoutShutdown = errors.New("client exited without shutdown")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe runs the language server on stdio until the client exits.
func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	slog.SetDefault(logger)

	store, err := config.NewStore(flagOverrides(), logger)
	if err != nil {
		return err
	}

	invoker := analyzer.NewInvoker(maxConcurrent, os.Stderr, logger)

	var invocationJournal lsp.InvocationJournal
	if journalEnabled {
		j, err := openJournal(logger)
		if err != nil {
			logger.Warn("invocation journal disabled", "error", err)
		} else {
			defer func() {
				if err := j.Close(); err != nil {
					logger.Warn("error closing journal", "error", err)
				}
			}()
			invoker.SetRecorder(j)
			invocationJournal = j
		}
	}

	if metricsAddr != "" {
		metricsServer := serveMetrics(metricsAddr, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}()
	}

	var watcher atomic.Pointer[config.FileWatcher]
	server := lsp.NewServer(lsp.Options{
		Name:     "pony-lsp",
		Version:  version,
		Settings: store,
		Journal:  invocationJournal,
		Logger:   logger,
		OnInitialize: func(rootPath string) {
			path := configFile
			if path == "" {
				path = config.FilePath(rootPath)
			}
			fw, err := config.WatchFile(path, store, logger)
			if err != nil {
				logger.Warn("not watching config file", "path", path, "error", err)
				return
			}
			if old := watcher.Swap(fw); old != nil {
				_ = old.Close()
			}
		},
	})

	server.RegisterCompletionProvider(completion.NewProvider(invoker, logger))
	server.RegisterDefinitionProvider(definition.NewProvider(invoker, logger))

	logger.Info("starting pony-lsp", "version", version, "analyzer", store.Load().AnalyzerPath)
	if err := server.Start(os.Stdin, os.Stdout); err != nil {
		return err
	}

	if fw := watcher.Load(); fw != nil {
		if err := fw.Close(); err != nil {
			logger.Warn("error closing config watcher", "error", err)
		}
	}

	if !server.ShutdownRequested() {
		return errExitWithoutShutdown
	}
	return nil
}

func openJournal(logger *slog.Logger) (*journal.Journal, error) {
	path := journalPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = defaultJournalPath(cwd); err != nil {
			return nil, err
		}
	}
	logger.Debug("opening invocation journal", "path", path)
	return journal.Open(path, journal.DefaultKeep, logger)
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
