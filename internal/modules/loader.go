package modules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"

	"peach/internal/ast"
	"peach/internal/parser"
)

// Ext is the extension of peach source files.
const Ext = ".rs"

var (
	ErrNotFound = errors.New("module file not found")
	ErrRead     = errors.New("cannot read source")
	ErrParse    = errors.New("cannot parse source")
)

var log = commonlog.GetLogger("peach.modules")

// Source is a parsed file together with the digest of the bytes it was
// parsed from.
type Source struct {
	Path   string
	Digest [32]byte
	File   *ast.File
}

// Root returns the absolute project root. An empty dir means the working
// directory.
func Root(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve project root %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// Locate finds the file holding the body of `mod name;`: <root>/name.rs,
// falling back to <root>/name/mod.rs.
func Locate(root, name string) (string, error) {
	candidates := []string{
		filepath.Join(root, name+Ext),
		filepath.Join(root, name, "mod"+Ext),
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: module %q (looked for %s)", ErrNotFound, name, candidates[0])
}

// Load reads and parses one file.
func Load(path string) (*Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrRead, path, err)
	}

	f, err := parser.ParseFile(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrParse, path, err)
	}

	src := &Source{
		Path:   path,
		Digest: blake2b.Sum256(content),
		File:   f,
	}
	log.Debugf("loaded %s (%d items, digest %x)", path, len(f.Items), src.Digest[:6])
	return src, nil
}

// Digest hashes the current contents of path.
func Digest(path string) ([32]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(content), nil
}
