package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_BigDoc(t *testing.T) {
	c := New(WithUserConfigDir(t.TempDir()), WithWatcher(false))
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()

	if bigdoc.Filesize != 2 {
		t.Errorf("Filesize = %d, want 2", bigdoc.Filesize)
	}
	if bigdoc.FilesizeUnit != "MiB" {
		t.Errorf("FilesizeUnit = %q, want 'MiB'", bigdoc.FilesizeUnit)
	}
	if len(bigdoc.Patterns) != 1 || bigdoc.Patterns[0] != "*" {
		t.Errorf("Patterns = %v, want ['*']", bigdoc.Patterns)
	}
	if len(bigdoc.Features) != 8 {
		t.Fatalf("Features length = %d, want 8", len(bigdoc.Features))
	}
	if bigdoc.Features[0] != "syntax" {
		t.Errorf("Features[0] = %q, want 'syntax'", bigdoc.Features[0])
	}
	if bigdoc.Features[7] != "lsp" {
		t.Errorf("Features[7] = %q, want 'lsp'", bigdoc.Features[7])
	}
	if bigdoc.PredicateScript != "" {
		t.Errorf("PredicateScript = %q, want ''", bigdoc.PredicateScript)
	}
	if len(bigdoc.FeatureScripts) != 0 {
		t.Errorf("FeatureScripts = %v, want empty", bigdoc.FeatureScripts)
	}
}

func TestConfig_BigDocWithOverride(t *testing.T) {
	tmpDir := t.TempDir()

	// Create user settings file with overrides
	settingsPath := filepath.Join(tmpDir, "settings.toml")
	settingsContent := `
[bigdoc]
filesize = 10
filesizeUnit = "bytes"
pattern = ["*.log", "*.csv"]
features = ["highlight", "lsp"]
`
	if err := os.WriteFile(settingsPath, []byte(settingsContent), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()

	if bigdoc.Filesize != 10 {
		t.Errorf("Filesize = %d, want 10", bigdoc.Filesize)
	}
	if bigdoc.FilesizeUnit != "bytes" {
		t.Errorf("FilesizeUnit = %q, want 'bytes'", bigdoc.FilesizeUnit)
	}
	if len(bigdoc.Patterns) != 2 || bigdoc.Patterns[0] != "*.log" || bigdoc.Patterns[1] != "*.csv" {
		t.Errorf("Patterns = %v, want ['*.log', '*.csv']", bigdoc.Patterns)
	}
	if len(bigdoc.Features) != 2 || bigdoc.Features[0] != "highlight" || bigdoc.Features[1] != "lsp" {
		t.Errorf("Features = %v, want ['highlight', 'lsp']", bigdoc.Features)
	}
}

func TestConfig_BigDocPatternString(t *testing.T) {
	tmpDir := t.TempDir()

	settingsPath := filepath.Join(tmpDir, "settings.toml")
	if err := os.WriteFile(settingsPath, []byte("[bigdoc]\npattern = \"*.log\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()

	if len(bigdoc.Patterns) != 1 || bigdoc.Patterns[0] != "*.log" {
		t.Errorf("Patterns = %v, want ['*.log']", bigdoc.Patterns)
	}
}

func TestConfig_BigDocPatternTypeError(t *testing.T) {
	tmpDir := t.TempDir()

	settingsPath := filepath.Join(tmpDir, "settings.toml")
	if err := os.WriteFile(settingsPath, []byte("[bigdoc]\npattern = 42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()

	// A bad pattern falls back to the default and records the problem.
	if len(bigdoc.Patterns) != 1 || bigdoc.Patterns[0] != "*" {
		t.Errorf("Patterns = %v, want default ['*']", bigdoc.Patterns)
	}

	cfgErrors := c.ConfigErrors()
	if cfgErrors == nil {
		t.Fatal("ConfigErrors() = nil, want recorded error for bigdoc.pattern")
	}
	if _, ok := cfgErrors["bigdoc.pattern"]; !ok {
		t.Errorf("ConfigErrors() missing bigdoc.pattern, got %v", cfgErrors)
	}
}

func TestConfig_BigDocFeatureScripts(t *testing.T) {
	tmpDir := t.TempDir()

	settingsPath := filepath.Join(tmpDir, "settings.toml")
	settingsContent := `
[bigdoc]
featureScripts = ["features/minimap.lua", "features/folding.lua"]
`
	if err := os.WriteFile(settingsPath, []byte(settingsContent), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()

	if len(bigdoc.FeatureScripts) != 2 {
		t.Fatalf("FeatureScripts length = %d, want 2", len(bigdoc.FeatureScripts))
	}
	if bigdoc.FeatureScripts[0] != "features/minimap.lua" {
		t.Errorf("FeatureScripts[0] = %q, want 'features/minimap.lua'", bigdoc.FeatureScripts[0])
	}
}

func TestConfig_Logging(t *testing.T) {
	c := New(WithUserConfigDir(t.TempDir()), WithWatcher(false))
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	logging := c.Logging()

	if logging.Level != "info" {
		t.Errorf("Level = %q, want 'info'", logging.Level)
	}
	if logging.Format != "text" {
		t.Errorf("Format = %q, want 'text'", logging.Format)
	}
}

func TestConfig_LoggingWithOverride(t *testing.T) {
	tmpDir := t.TempDir()

	settingsPath := filepath.Join(tmpDir, "settings.toml")
	settingsContent := `
[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(settingsPath, []byte(settingsContent), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	logging := c.Logging()

	if logging.Level != "debug" {
		t.Errorf("Level = %q, want 'debug'", logging.Level)
	}
	if logging.Format != "json" {
		t.Errorf("Format = %q, want 'json'", logging.Format)
	}
}

func TestConfig_ConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	// filesize has the wrong type; the accessor falls back to the
	// default and records the problem.
	settingsPath := filepath.Join(tmpDir, "settings.toml")
	if err := os.WriteFile(settingsPath, []byte("[bigdoc]\nfilesize = \"huge\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()
	if bigdoc.Filesize != 2 {
		t.Errorf("Filesize = %d, want default 2", bigdoc.Filesize)
	}

	cfgErrors := c.ConfigErrors()
	if cfgErrors == nil {
		t.Fatal("ConfigErrors() = nil, want recorded error")
	}
	err, ok := cfgErrors["bigdoc.filesize"]
	if !ok {
		t.Fatalf("ConfigErrors() missing bigdoc.filesize, got %v", cfgErrors)
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("recorded error = %v, want ErrTypeMismatch match", err)
	}

	c.ClearConfigErrors()
	if c.ConfigErrors() != nil {
		t.Error("ConfigErrors() after Clear should be nil")
	}
}

func TestConfig_SectionSnapshot(t *testing.T) {
	c := New(WithUserConfigDir(t.TempDir()), WithWatcher(false))
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Mutating a returned snapshot must not affect later reads.
	first := c.BigDoc()
	first.Features[0] = "mutated"

	second := c.BigDoc()
	if second.Features[0] != "syntax" {
		t.Errorf("Features[0] = %q after snapshot mutation, want 'syntax'", second.Features[0])
	}
}

func TestConfig_SectionsWithNoConfig(t *testing.T) {
	// Sections return defaults when no settings file exists.
	tmpDir := t.TempDir()

	c := New(
		WithUserConfigDir(tmpDir),
		WithWatcher(false),
	)
	defer c.Close()
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bigdoc := c.BigDoc()
	if bigdoc.Filesize != 2 {
		t.Errorf("BigDoc.Filesize = %d, want 2 (default)", bigdoc.Filesize)
	}
	if bigdoc.FilesizeUnit != "MiB" {
		t.Errorf("BigDoc.FilesizeUnit = %q, want 'MiB' (default)", bigdoc.FilesizeUnit)
	}

	logging := c.Logging()
	if logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want 'info' (default)", logging.Level)
	}
}
