package config_test

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/testbank/internal/config"
)

func TestApplyEnvNoOverrides(t *testing.T) {
	cfg := config.DefaultLocalConfig()
	config.ApplyEnv(cfg)

	if cfg.Daemon.Port != 7433 {
		t.Errorf("Port = %d, want 7433", cfg.Daemon.Port)
	}
	if cfg.Runner.Executor != "docker" {
		t.Errorf("RunnerExecutor = %q", cfg.Runner.Executor)
	}
	if !cfg.Bank.EscapeArgNames {
		t.Error("EscapeArgNames should stay true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("QUESTION_PATHS", "a:b")
	t.Setenv("RUNNER_CPU_LIMIT", "1.5")
	t.Setenv("SKIP_BROKEN", "true")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/testbank")

	cfg := config.DefaultLocalConfig()
	config.ApplyEnv(cfg)

	if cfg.Daemon.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Daemon.Port)
	}
	if len(cfg.Bank.Paths) != 2 || cfg.Bank.Paths[0] != "a" {
		t.Errorf("Paths = %v", cfg.Bank.Paths)
	}
	if cfg.Runner.Docker.CPULimit != 1.5 {
		t.Errorf("CPULimit = %v", cfg.Runner.Docker.CPULimit)
	}
	if !cfg.Bank.SkipBroken {
		t.Error("SkipBroken not read")
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.URL == "" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestApplyEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("SKIP_BROKEN", "maybe")

	cfg := config.DefaultLocalConfig()
	config.ApplyEnv(cfg)

	if cfg.Daemon.Port != 7433 {
		t.Errorf("Port = %d, want default kept", cfg.Daemon.Port)
	}
	if cfg.Bank.SkipBroken {
		t.Error("SkipBroken should keep default on parse failure")
	}
}

func TestLocalConfigRoundTrip(t *testing.T) {
	cfg := config.DefaultLocalConfig()
	cfg.Daemon.Port = 7500
	cfg.Bank.Paths = []string{"/tmp/questions"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded := config.DefaultLocalConfig()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.Daemon.Port != 7500 {
		t.Errorf("Port = %d", loaded.Daemon.Port)
	}
	if len(loaded.Bank.Paths) != 1 || loaded.Bank.Paths[0] != "/tmp/questions" {
		t.Errorf("Paths = %v", loaded.Bank.Paths)
	}
	if loaded.Runner.Docker.Image == "" {
		t.Error("defaults were lost on unmarshal")
	}
}
