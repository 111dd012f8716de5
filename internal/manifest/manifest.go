// Package manifest handles peach.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest looked up by FindAndLoad.
const FileName = "peach.toml"

// Manifest represents a peach.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Cache   CacheConfig `toml:"cache"`
	Run     RunConfig   `toml:"run"`

	// Dir is the directory containing the peach.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata and the entry point.
type Project struct {
	Name  string `toml:"name"`
	Root  string `toml:"root"`  // module files are looked up here
	Entry string `toml:"entry"` // file loaded into the root scope
	Main  string `toml:"main"`  // function evaluated by `peach run`
}

// CacheConfig configures the build cache.
type CacheConfig struct {
	Enabled *bool  `toml:"enabled"`
	Path    string `toml:"path"`
}

// RunConfig configures evaluation.
type RunConfig struct {
	MaxDepth int `toml:"max-depth"`
}

// Default returns the configuration used when no peach.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Project.Root == "" {
		m.Project.Root = "."
	}
	if m.Project.Entry == "" {
		m.Project.Entry = "main.rs"
	}
	if m.Project.Main == "" {
		m.Project.Main = "main"
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".peach", "cache.db")
	}
}

// Load parses a peach.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
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
	if m.Run.MaxDepth < 0 {
		return nil, fmt.Errorf("%s: run.max-depth must not be negative", path)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a peach.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
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

// RootPath returns the absolute project root for module lookup.
func (m *Manifest) RootPath() string {
	return m.resolve(m.Project.Root)
}

// EntryPath returns the absolute path of the entry file.
func (m *Manifest) EntryPath() string {
	return m.resolve(filepath.Join(m.Project.Root, m.Project.Entry))
}

// CacheEnabled reports whether builds go through the cache; on by default.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
