// Package manifest handles cinder.toml build configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a cinder.toml build configuration: the entry
// source file, codegen options, and where to place build output.
type Manifest struct {
	Project Project `toml:"project"`
	Build   Build   `toml:"build"`

	// Dir is the directory containing the cinder.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures the codegen core's entry point and behavior.
type Build struct {
	Entry      string `toml:"entry"`
	Optimize   bool   `toml:"optimize"`
	Output     string `toml:"output"`
	CacheDir   string `toml:"cache-dir"`
	EnableTail bool   `toml:"enable-tail-call"`
}

// Load parses a cinder.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "cinder.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Build.Entry == "" {
		m.Build.Entry = "main.rb"
	}
	if m.Build.Output == "" {
		m.Build.Output = "out.circ"
	}
	if m.Build.CacheDir == "" {
		m.Build.CacheDir = ".cinder-cache"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a cinder.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "cinder.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path to the configured entry source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Build.Entry)
}

// CachePath returns the absolute path to the compile cache directory.
func (m *Manifest) CachePath() string {
	return filepath.Join(m.Dir, m.Build.CacheDir)
}
