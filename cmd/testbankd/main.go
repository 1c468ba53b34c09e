package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/config"
	"github.com/felixgeelhaar/testbank/internal/daemon"
	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/grader"
	"github.com/felixgeelhaar/testbank/internal/question"
	"github.com/felixgeelhaar/testbank/internal/queue"
	"github.com/felixgeelhaar/testbank/internal/runner"
	"github.com/felixgeelhaar/testbank/internal/storage/postgres"
	"github.com/felixgeelhaar/testbank/internal/storage/sqlite"
)

const pidFileName = "testbankd.pid"

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.testbank directory exists
	testbankDir, err := config.EnsureTestbankDir()
	if err != nil {
		return fmt.Errorf("ensure testbank dir: %w", err)
	}

	// Load configuration
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(cfg)

	// Setup logging
	logLevel := parseLogLevel(cfg.Daemon.LogLevel)
	logFile, err := setupLogging(testbankDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Write PID file
	pidPath := filepath.Join(testbankDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	// Load the question bank (try current dir first, then ~/.testbank)
	paths := cfg.Bank.Paths
	if len(paths) == 0 {
		path := "./questions"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(testbankDir, "questions")
		}
		paths = []string{path}
	}

	b := bank.New(bank.Config{Paths: paths, SkipBroken: cfg.Bank.SkipBroken}, slog.Default())
	if err := b.Load(); err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Attempt storage
	attempts, closeStore, err := openAttemptStore(ctx, cfg, testbankDir)
	if err != nil {
		return fmt.Errorf("open attempt store: %w", err)
	}
	defer closeStore()

	// Grading pipeline
	g := grader.New(b, buildEvaluator(cfg), question.CheckOptions{
		EscapeArgNames: cfg.Bank.EscapeArgNames,
	}, slog.Default())

	serverCfg := daemon.ServerConfig{
		Config:   cfg,
		Bank:     b,
		Grader:   g,
		Attempts: attempts,
	}

	if cfg.Queue.Enabled {
		conn, err := queue.NewConnection(cfg.Queue.URL)
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
		defer conn.Close()

		serverCfg.Producer = queue.NewProducer(conn)

		consumer := queue.NewConsumer(conn, checkHandler(g), queue.ConsumerConfig{
			Workers: cfg.Queue.Workers,
		})
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start queue consumer: %w", err)
		}
		defer consumer.Stop()
	}

	server, err := daemon.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	// Start server
	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// openAttemptStore opens the attempt store named by the config.
func openAttemptStore(ctx context.Context, cfg *config.LocalConfig, testbankDir string) (domain.AttemptStore, func(), error) {
	if cfg.Storage.Driver == "postgres" {
		store, err := postgres.Connect(ctx, cfg.Storage.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	db, err := sqlite.Open(filepath.Join(testbankDir, "attempts", "attempts.db"))
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return sqlite.NewAttemptStore(db), func() { db.Close() }, nil
}

// buildEvaluator picks the sandbox named by the config, falling back to the
// local toolchain when Docker is unavailable.
func buildEvaluator(cfg *config.LocalConfig) runner.Evaluator {
	var inner runner.Evaluator

	if cfg.Runner.Executor == "docker" {
		docker, err := runner.NewDockerEvaluator(runner.DockerConfig{
			Image:      cfg.Runner.Docker.Image,
			MemoryMB:   int64(cfg.Runner.Docker.MemoryMB),
			CPULimit:   cfg.Runner.Docker.CPULimit,
			NetworkOff: cfg.Runner.Docker.NetworkOff,
			Timeout:    time.Duration(cfg.Runner.Docker.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			slog.Warn("Docker evaluator not available, using local evaluator", "error", err)
			inner = runner.NewLocalEvaluator()
		} else {
			inner = docker
		}
	} else {
		inner = runner.NewLocalEvaluator()
	}

	return runner.NewResilientEvaluator(inner, runner.DefaultResilientConfig())
}

// checkHandler grades queued jobs.
func checkHandler(g *grader.Grader) queue.JobHandler {
	return func(ctx context.Context, job *queue.CheckJob) (*queue.CheckReport, error) {
		var reports []grader.Report
		if job.Tag != "" {
			reports = []grader.Report{g.Check(ctx, job.Tag, job.Source)}
		} else {
			reports = g.CheckSubmission(ctx, job.Source)
		}

		return &queue.CheckReport{
			JobID:   job.ID,
			Status:  "completed",
			Reports: reports,
		}, nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(testbankDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(testbankDir, "logs", "testbankd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	multiHandler := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(multiHandler))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
