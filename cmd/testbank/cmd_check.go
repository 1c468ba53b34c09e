package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/config"
	"github.com/felixgeelhaar/testbank/internal/grader"
	"github.com/felixgeelhaar/testbank/internal/question"
	"github.com/felixgeelhaar/testbank/internal/runner"
)

// cmdCheck grades submission files locally, without the daemon
func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	tag := fs.String("tag", "", "grade against one question instead of resolving tags")
	paths := fs.String("paths", "", "comma-separated question directories (default: configured bank)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// No files means read the submission from stdin
	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bankPaths := cfg.Bank.Paths
	if *paths != "" {
		bankPaths = strings.Split(*paths, ",")
	}
	if len(bankPaths) == 0 {
		bankPaths = []string{"./questions"}
	}

	b := bank.New(bank.Config{Paths: bankPaths, SkipBroken: cfg.Bank.SkipBroken}, slog.Default())
	if err := b.Load(); err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	g := grader.New(b, localEvaluator(cfg), question.CheckOptions{
		EscapeArgNames: cfg.Bank.EscapeArgNames,
	}, slog.Default())

	ctx := context.Background()
	failed := 0

	for _, file := range files {
		var source []byte
		if file == "-" {
			source, err = io.ReadAll(os.Stdin)
			file = "(stdin)"
		} else {
			source, err = os.ReadFile(file)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}

		var reports []grader.Report
		if *tag != "" {
			reports = []grader.Report{g.Check(ctx, *tag, string(source))}
		} else {
			reports = g.CheckSubmission(ctx, string(source))
		}

		fmt.Println(file)
		for _, rep := range reports {
			printReport(rep)
			if rep.Status != grader.StatusPass {
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) did not pass", failed)
	}
	return nil
}

func printReport(rep grader.Report) {
	switch rep.Status {
	case grader.StatusPass:
		fmt.Printf("  ✓ %s pass (%d/%d cases)\n", rep.Tag, rep.Passed, rep.Cases)
	case grader.StatusFail:
		fmt.Printf("  ✗ %s fail", rep.Tag)
		if rep.Stage != "" {
			fmt.Printf(" at %s", rep.Stage)
		}
		if rep.Detail != "" {
			fmt.Printf(": %s", rep.Detail)
		}
		fmt.Println()
	default:
		fmt.Printf("  ! %s error: %s\n", rep.Tag, rep.Detail)
	}
}

// localEvaluator builds the same sandbox the daemon uses, preferring Docker
// and falling back to the local toolchain.
func localEvaluator(cfg *config.LocalConfig) runner.Evaluator {
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
			inner = runner.NewLocalEvaluator()
		} else {
			inner = docker
		}
	} else {
		inner = runner.NewLocalEvaluator()
	}

	return runner.NewResilientEvaluator(inner, runner.DefaultResilientConfig())
}
