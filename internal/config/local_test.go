package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTestbankDir(t *testing.T) {
	dir, err := TestbankDir()
	if err != nil {
		t.Fatalf("TestbankDir() error = %v", err)
	}

	if filepath.Base(dir) != ".testbank" {
		t.Errorf("TestbankDir() = %q, want ending with .testbank", dir)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("TestbankDir() = %q, want absolute path", dir)
	}
}

func TestEnsureTestbankDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir, err := EnsureTestbankDir()
	if err != nil {
		t.Fatalf("EnsureTestbankDir() error = %v", err)
	}

	expectedDir := filepath.Join(tmpHome, ".testbank")
	if dir != expectedDir {
		t.Errorf("EnsureTestbankDir() = %q, want %q", dir, expectedDir)
	}

	subdirs := []string{"logs", "questions", "attempts"}
	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("EnsureTestbankDir() should create %s", subdir)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()
	if cfg == nil {
		t.Fatal("DefaultLocalConfig() returned nil")
	}

	if cfg.Daemon.Port != 7433 {
		t.Errorf("Daemon.Port = %d, want 7433", cfg.Daemon.Port)
	}
	if cfg.Daemon.Bind != "127.0.0.1" {
		t.Errorf("Daemon.Bind = %q, want 127.0.0.1", cfg.Daemon.Bind)
	}
	if !cfg.Bank.EscapeArgNames {
		t.Error("Bank.EscapeArgNames should default to true")
	}
	if cfg.Runner.Executor != "docker" {
		t.Errorf("Runner.Executor = %q, want docker", cfg.Runner.Executor)
	}
	if cfg.Queue.Enabled {
		t.Error("Queue.Enabled should default to false")
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoadLocalConfigMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}

	// Missing config file falls back to defaults
	if cfg.Daemon.Port != 7433 {
		t.Errorf("Daemon.Port = %d, want default 7433", cfg.Daemon.Port)
	}
}

func TestSaveAndLoadLocalConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultLocalConfig()
	cfg.Daemon.Port = 9999
	cfg.Bank.Paths = []string{"/srv/questions"}
	cfg.Storage.Driver = "postgres"
	cfg.Storage.URL = "postgres://localhost/testbank"

	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}

	if loaded.Daemon.Port != 9999 {
		t.Errorf("Daemon.Port = %d, want 9999", loaded.Daemon.Port)
	}
	if len(loaded.Bank.Paths) != 1 || loaded.Bank.Paths[0] != "/srv/questions" {
		t.Errorf("Bank.Paths = %v", loaded.Bank.Paths)
	}
	if loaded.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want postgres", loaded.Storage.Driver)
	}

	// Unset fields keep their defaults
	if loaded.Runner.Docker.Image != "golang:1.25-alpine" {
		t.Errorf("Runner.Docker.Image = %q", loaded.Runner.Docker.Image)
	}
}
