// Package manifest handles runic.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a runic.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	Source  Source   `toml:"source"`
	VM      VMConfig `toml:"vm"`
	Cache   CacheCfg `toml:"cache"`

	// Dir is the directory containing the runic.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations and the default surface syntax.
type Source struct {
	Dirs   []string `toml:"dirs"`
	Entry  string   `toml:"entry"`
	Syntax string   `toml:"syntax"` // "runic" or "ascii" to require one; empty accepts either
}

// VMConfig configures the interpreter.
type VMConfig struct {
	Trace bool  `toml:"trace"`
	Seed  int64 `toml:"seed"` // 0 = time-seeded
}

// CacheCfg configures the compiled-plan cache.
type CacheCfg struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load parses a runic.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "runic.toml")
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

	switch m.Source.Syntax {
	case "", "runic", "ascii":
	default:
		return nil, fmt.Errorf("%s: invalid source syntax %q (want runic or ascii)", path, m.Source.Syntax)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Cache.Enabled && m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".runic", "plans.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a runic.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "runic.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// EntryPath returns the absolute path of the configured entry file, or ""
// when no entry is set.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}

// CachePath returns the absolute plan-cache path, or "" when caching is off.
func (m *Manifest) CachePath() string {
	if !m.Cache.Enabled {
		return ""
	}
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
