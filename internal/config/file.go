package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace-level configuration file.
const FileName = ".pony-lsp.yaml"

// fileSchema mirrors the YAML layout:
//
//	ponyLang:
//	  ponyIntellisensePath: /opt/pony/bin/pony_intellisense_cli
//	  ponyPath: /opt/pony/packages
//	  timeout: 5s
type fileSchema struct {
	PonyLang struct {
		AnalyzerPath string `yaml:"ponyIntellisensePath"`
		PonyPath     string `yaml:"ponyPath"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"ponyLang"`
}

// LoadFile reads overrides from a YAML file. A missing file yields empty
// overrides and no error.
func LoadFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overrides{}, nil
		}
		return Overrides{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile decodes the YAML config file contents.
func ParseFile(data []byte) (Overrides, error) {
	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Overrides{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	o := Overrides{
		AnalyzerPath: f.PonyLang.AnalyzerPath,
		PonyPath:     f.PonyLang.PonyPath,
	}
	if f.PonyLang.Timeout != "" {
		d, err := parseTimeout(f.PonyLang.Timeout)
		if err != nil {
			return Overrides{}, err
		}
		o.Timeout = d
	}
	return o, nil
}

// FilePath returns the config file location for a workspace root.
func FilePath(root string) string {
	return filepath.Join(root, FileName)
}
