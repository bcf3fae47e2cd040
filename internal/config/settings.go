// Package config resolves the analyzer settings from defaults, the
// environment, command-line flags, the workspace config file and the
// client's workspace/didChangeConfiguration notifications.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultAnalyzerPath = "/usr/local/bin/pony_intellisense_cli"
	DefaultPonyPath     = "/usr/share/pony/packages"
	DefaultTimeout      = 10 * time.Second

	// PonyPathEnv is read as a fallback for the package search path and is
	// also the variable handed to the analyzer.
	PonyPathEnv = "PONYPATH"
)

// Settings is an immutable snapshot of everything an analyzer invocation
// needs. A new value is published whenever any source changes.
type Settings struct {
	AnalyzerPath string        `json:"analyzerPath" validate:"required"`
	PonyPath     string        `json:"ponyPath" validate:"required"`
	Timeout      time.Duration `json:"timeout" validate:"min=0,max=5m"`
}

// Overrides is one configuration source. Zero fields are unset and leave
// the lower layers' values in place.
type Overrides struct {
	AnalyzerPath string        `yaml:"analyzerPath"`
	PonyPath     string        `yaml:"ponyPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in settings with the PONYPATH environment
// variable applied.
func Defaults() Settings {
	s := Settings{
		AnalyzerPath: DefaultAnalyzerPath,
		PonyPath:     DefaultPonyPath,
		Timeout:      DefaultTimeout,
	}
	if env := os.Getenv(PonyPathEnv); env != "" {
		s.PonyPath = env
	}
	return s
}

// Resolve applies the layers in order, later layers winning. Both
// completion and definition requests use this one rule.
func Resolve(layers ...Overrides) Settings {
	s := Defaults()
	for _, l := range layers {
		if l.AnalyzerPath != "" {
			s.AnalyzerPath = l.AnalyzerPath
		}
		if l.PonyPath != "" {
			s.PonyPath = l.PonyPath
		}
		if l.Timeout > 0 {
			s.Timeout = l.Timeout
		}
	}
	return s
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports whether the snapshot can be used to run the analyzer.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

type settingsKey struct{}

// WithSettings attaches the snapshot captured for one request.
func WithSettings(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// FromContext returns the snapshot attached by WithSettings, or the
// defaults when none is present.
func FromContext(ctx context.Context) Settings {
	if s, ok := ctx.Value(settingsKey{}).(Settings); ok {
		return s
	}
	return Defaults()
}
