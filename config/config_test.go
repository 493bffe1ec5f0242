package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	text := "addr: \":9999\"\nlog_level: debug\nloop_cap: 500\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr: expected :9999, got %s", cfg.Addr)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level: expected debug, got %v", cfg.Level())
	}
	if cfg.LoopCap != 500 {
		t.Errorf("loop_cap: expected 500, got %d", cfg.LoopCap)
	}
	// Untouched keys keep their defaults.
	if cfg.DataRoot != "forge-data" {
		t.Errorf("data_root default lost: %s", cfg.DataRoot)
	}
}

// The store already nests its files under a data/ directory inside the
// root, so the default root must not be named data itself.
func TestDefaultDataRootAvoidsNestedDataDir(t *testing.T) {
	if root := Default().DataRoot; root == "data" {
		t.Errorf("default data_root %q collides with the store's internal layout", root)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FORGE_ADDR", ":7777")
	t.Setenv("CURRENT_PATH", "/var/forge")
	t.Setenv("TMP_PASSWORD", "hunter2")

	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7777" {
		t.Errorf("addr: expected :7777, got %s", cfg.Addr)
	}
	if cfg.DataRoot != "/var/forge" {
		t.Errorf("data_root: expected /var/forge, got %s", cfg.DataRoot)
	}
	if cfg.TmpPassword != "hunter2" {
		t.Errorf("tmp_password not applied")
	}
}

func TestLoadFromFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	if err := os.WriteFile(path, []byte("{{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("invalid YAML should fail")
	}
}

func TestFileWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "constraints.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var fired atomic.Int32
	w := NewFileWatcher(path, func() { fired.Add(1) },
		WithWatchDebounce(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Error("watcher should fire after a write")
	}
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "constraints.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var fired atomic.Int32
	w := NewFileWatcher(path, func() { fired.Add(1) },
		WithWatchDebounce(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("sibling writes must not fire the watcher")
	}
}
