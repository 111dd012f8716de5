package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a peach.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "calc"
root = "src"
entry = "lib.rs"
main = "start"

[cache]
enabled = false
path = "build/cache.db"

[run]
max-depth = 500
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "calc" {
		t.Errorf("project name = %q, want calc", m.Project.Name)
	}
	if m.Project.Main != "start" {
		t.Errorf("project main = %q, want start", m.Project.Main)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "src", "lib.rs"); got != want {
		t.Errorf("entry path = %q, want %q", got, want)
	}
	if got, want := m.RootPath(), filepath.Join(m.Dir, "src"); got != want {
		t.Errorf("root path = %q, want %q", got, want)
	}
	if m.CacheEnabled() {
		t.Error("cache enabled = true, want false")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "build", "cache.db"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
	if m.Run.MaxDepth != 500 {
		t.Errorf("max depth = %d, want 500", m.Run.MaxDepth)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Entry != "main.rs" || m.Project.Main != "main" || m.Project.Root != "." {
		t.Errorf("unexpected defaults: %+v", m.Project)
	}
	if !m.CacheEnabled() {
		t.Error("cache should default to enabled")
	}
}

func TestLoadManifestRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[project\nname = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[project]\nname = \"up\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "up" {
		t.Fatalf("expected manifest from parent dir, got %+v", m)
	}
}
