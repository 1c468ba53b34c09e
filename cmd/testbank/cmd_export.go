package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/config"
	"github.com/felixgeelhaar/testbank/internal/export"
)

// cmdExport writes the rendered question bank to a zip archive
func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	paths := fs.String("paths", "", "comma-separated question directories (default: configured bank)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out := "testbank-export.zip"
	if fs.NArg() > 0 {
		out = fs.Arg(0)
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

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	if err := export.Write(f, b, time.Now()); err != nil {
		os.Remove(out)
		return fmt.Errorf("export: %w", err)
	}

	stats := b.Stats()
	fmt.Printf("Exported %d questions (%d groups) to %s\n", stats.Questions, stats.Groups, out)
	return nil
}
