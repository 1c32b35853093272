package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "hello"
version = "0.1.0"

[build]
entry = "app.rb"
optimize = true
output = "hello.circ"
cache-dir = ".build-cache"
enable-tail-call = true
`
	if err := os.WriteFile(filepath.Join(dir, "cinder.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "hello" {
		t.Errorf("project name = %q, want hello", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Build.Entry != "app.rb" {
		t.Errorf("build entry = %q, want app.rb", m.Build.Entry)
	}
	if !m.Build.Optimize {
		t.Error("build optimize = false, want true")
	}
	if m.Build.Output != "hello.circ" {
		t.Errorf("build output = %q, want hello.circ", m.Build.Output)
	}
	if m.Build.CacheDir != ".build-cache" {
		t.Errorf("build cache-dir = %q, want .build-cache", m.Build.CacheDir)
	}
	if !m.Build.EnableTail {
		t.Error("build enable-tail-call = false, want true")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
version = "0.0.1"
`
	if err := os.WriteFile(filepath.Join(dir, "cinder.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Build.Entry != "main.rb" {
		t.Errorf("default build entry = %q, want main.rb", m.Build.Entry)
	}
	if m.Build.Output != "out.circ" {
		t.Errorf("default build output = %q, want out.circ", m.Build.Output)
	}
	if m.Build.CacheDir != ".cinder-cache" {
		t.Errorf("default build cache-dir = %q, want .cinder-cache", m.Build.CacheDir)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Error("Load should fail when cinder.toml is missing")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
version = "1.0.0"
`
	if err := os.WriteFile(filepath.Join(dir, "cinder.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no cinder.toml exists")
	}
}

func TestEntryPath(t *testing.T) {
	m := &Manifest{
		Dir:   "/app",
		Build: Build{Entry: "src/main.rb"},
	}
	want := filepath.Join("/app", "src/main.rb")
	if got := m.EntryPath(); got != want {
		t.Errorf("EntryPath() = %q, want %q", got, want)
	}
}

func TestCachePath(t *testing.T) {
	m := &Manifest{
		Dir:   "/app",
		Build: Build{CacheDir: ".cinder-cache"},
	}
	want := filepath.Join("/app", ".cinder-cache")
	if got := m.CachePath(); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
}
