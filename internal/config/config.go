// Package config holds the daemon's YAML configuration and its environment
// overrides for containerized deployments.
package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv layers environment overrides over a loaded config. Containerized
// deployments have no ~/.testbank; every setting that matters there is
// reachable through the environment.
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("LOG_LEVEL", cfg.Daemon.LogLevel)

	if paths := getEnv("QUESTION_PATHS", ""); paths != "" {
		cfg.Bank.Paths = splitPaths(paths)
	}
	cfg.Bank.SkipBroken = getEnvBool("SKIP_BROKEN", cfg.Bank.SkipBroken)
	cfg.Bank.EscapeArgNames = getEnvBool("ESCAPE_ARG_NAMES", cfg.Bank.EscapeArgNames)

	cfg.Runner.Executor = getEnv("RUNNER_EXECUTOR", cfg.Runner.Executor)
	cfg.Runner.Docker.Image = getEnv("RUNNER_IMAGE", cfg.Runner.Docker.Image)
	cfg.Runner.Docker.MemoryMB = getEnvInt("RUNNER_MEMORY_MB", cfg.Runner.Docker.MemoryMB)
	cfg.Runner.Docker.CPULimit = getEnvFloat("RUNNER_CPU_LIMIT", cfg.Runner.Docker.CPULimit)
	cfg.Runner.Docker.TimeoutSeconds = getEnvInt("RUNNER_TIMEOUT", cfg.Runner.Docker.TimeoutSeconds)

	cfg.Queue.Enabled = getEnvBool("QUEUE_ENABLED", cfg.Queue.Enabled)
	cfg.Queue.URL = getEnv("RABBITMQ_URL", cfg.Queue.URL)
	cfg.Queue.Workers = getEnvInt("QUEUE_WORKERS", cfg.Queue.Workers)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.URL = getEnv("DATABASE_URL", cfg.Storage.URL)
}

func splitPaths(value string) []string {
	var paths []string
	for _, p := range strings.Split(value, ":") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
