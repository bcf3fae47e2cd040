package config

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Layer identifies a configuration source. Higher layers win.
type Layer int

const (
	LayerFlags Layer = iota
	LayerFile
	LayerClient
	numLayers
)

func (l Layer) String() string {
	switch l {
	case LayerFlags:
		return "flags"
	case LayerFile:
		return "file"
	case LayerClient:
		return "client"
	default:
		return "unknown"
	}
}

// Store publishes the current Settings snapshot. Readers never block;
// writers replace one layer wholesale and swap in a freshly resolved
// snapshot.
type Store struct {
	mu      sync.Mutex
	layers  [numLayers]Overrides
	current atomic.Pointer[Settings]
	logger  *slog.Logger
}

// NewStore creates a store whose flag layer is set to flags.
func NewStore(flags Overrides, logger *slog.Logger) (*Store, error) {
	s := &Store{logger: logger}
	s.layers[LayerFlags] = flags

	settings := Resolve(s.layers[:]...)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s.current.Store(&settings)
	return s, nil
}

// Load returns the current snapshot.
func (s *Store) Load() Settings {
	return *s.current.Load()
}

// Set replaces one layer. An invalid result is rejected and the previous
// snapshot stays active.
func (s *Store) Set(layer Layer, o Overrides) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layers := s.layers
	layers[layer] = o

	settings := Resolve(layers[:]...)
	if err := settings.Validate(); err != nil {
		return s.Load(), err
	}

	s.layers = layers
	s.current.Store(&settings)

	s.logger.Info("settings updated",
		"source", layer.String(),
		"analyzer", settings.AnalyzerPath,
		"ponyPath", settings.PonyPath,
		"timeout", settings.Timeout)

	return settings, nil
}
