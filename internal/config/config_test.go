package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MDTASKS_ROOT_PATH", root)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.ToggleDebounce != 30*time.Millisecond || cfg.EditDebounce != 300*time.Millisecond || cfg.ScrollDebounce != 10*time.Millisecond {
		t.Fatalf("unexpected debounce defaults %+v", cfg)
	}
	if cfg.DataPath != filepath.Join(root, ".mdtasks") {
		t.Fatalf("expected data path under root, got %q", cfg.DataPath)
	}
	if len(cfg.Include) != 1 || cfg.Include[0] != "**/*.md" {
		t.Fatalf("unexpected include %v", cfg.Include)
	}
	if !cfg.ShowHeaders || !cfg.Watch {
		t.Fatalf("expected headers and watch on by default")
	}
	if cfg.AuthFilePath() != filepath.Join(root, ".mdtasks", "auth.txt") {
		t.Fatalf("unexpected auth file %q", cfg.AuthFilePath())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MDTASKS_ROOT_PATH", t.TempDir())
	t.Setenv("MDTASKS_EDIT_DEBOUNCE", "1s")
	t.Setenv("MDTASKS_TOGGLE_RATE_PER_MIN", "5")
	t.Setenv("MDTASKS_SHOW_HEADERS", "false")
	t.Setenv("MDTASKS_AUTH_USER", "alice")
	t.Setenv("MDTASKS_AUTH_PASS", "secret")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EditDebounce != time.Second {
		t.Fatalf("expected 1s, got %s", cfg.EditDebounce)
	}
	if cfg.ToggleRatePerMin != 5 {
		t.Fatalf("expected 5, got %d", cfg.ToggleRatePerMin)
	}
	if cfg.ShowHeaders {
		t.Fatalf("expected headers off")
	}
	if cfg.AuthUser != "alice" || cfg.AuthPass != "secret" {
		t.Fatalf("unexpected auth %q/%q", cfg.AuthUser, cfg.AuthPass)
	}
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "mdtasks.yaml")
	content := "listen_addr: 0.0.0.0:9000\nscroll_debounce: 25ms\nexclude:\n  - archive/**\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--root", root, "--listen", "127.0.0.1:7000"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigFile != file {
		t.Fatalf("expected config file %q, got %q", file, cfg.ConfigFile)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("expected flag to win, got %q", cfg.ListenAddr)
	}
	if cfg.ScrollDebounce != 25*time.Millisecond {
		t.Fatalf("expected 25ms from file, got %s", cfg.ScrollDebounce)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "archive/**" {
		t.Fatalf("expected exclude from file, got %v", cfg.Exclude)
	}
	if !cfg.Watch {
		t.Fatalf("expected unset flag to keep default")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("MDTASKS_ROOT_PATH", t.TempDir())
	t.Setenv("MDTASKS_TOGGLE_DEBOUNCE", "0s")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected zero debounce to be rejected")
	}

	t.Setenv("MDTASKS_TOGGLE_DEBOUNCE", "30ms")
	t.Setenv("MDTASKS_AUTH_USER", "alice")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected auth user without password to be rejected")
	}
}
