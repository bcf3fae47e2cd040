package analyzer

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ponylang/pony-lsp/internal/config"
)

// Invocation is everything needed to run the analyzer once. It is built
// fresh for every request and never reused.
type Invocation struct {
	Executable string
	ModulePath string
	FilePath   string
	Mode       Mode
	Position   AnalyzerPosition
	PonyPath   string
	Timeout    time.Duration
	Stdin      []byte
}

// NewInvocation builds the invocation for req from a settings snapshot.
// text is the current buffer contents, piped to the analyzer's stdin.
func NewInvocation(settings config.Settings, req Request, mode Mode, text []byte) Invocation {
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		abs = req.Path
	}

	return Invocation{
		Executable: settings.AnalyzerPath,
		ModulePath: filepath.Dir(abs),
		FilePath:   abs,
		Mode:       mode,
		Position:   mode.Translate(req.Position),
		PonyPath:   settings.PonyPath,
		Timeout:    settings.Timeout,
		Stdin:      text,
	}
}

// Args returns the analyzer's argument vector.
func (inv Invocation) Args() []string {
	return []string{
		"--path", inv.ModulePath,
		"--file", inv.FilePath,
		"--stdin", string(inv.Mode),
		"--line", strconv.Itoa(inv.Position.Line),
		"--pos", strconv.Itoa(inv.Position.Column),
	}
}

// Env returns the host environment with PONYPATH set to the resolved
// package search path. exec keeps the last value of duplicated keys.
func (inv Invocation) Env() []string {
	return append(os.Environ(), config.PonyPathEnv+"="+inv.PonyPath)
}
