package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/testbank/internal/config"
)

const sampleDoc = `# Sample Questions

These questions ship with testbank as a starting point. Replace them with
your own course material.

` + "```" + `yaml {question}
questions:
  - name: Sum
    kind: function
    text: "Write a function ` + "`{func}`" + ` that returns the sum of two integers."
    func: sum
    annotations:
      a: int
      b: int
      return: int
    cases:
      - args: [1, 2]
        want: 3
      - args: [-4, 4]
        want: 0
` + "```" + `
`

// cmdInit initializes Testbank for first-time use
func cmdInit() error {
	fmt.Println("Testbank - First-Time Setup")
	fmt.Println("===========================")
	fmt.Println()

	// 1. Create directory structure
	fmt.Print("Creating ~/.testbank directory structure... ")
	testbankDir, err := config.EnsureTestbankDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	// 2. Create default config if it doesn't exist
	configPath := filepath.Join(testbankDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	// 3. Seed the question directory
	fmt.Print("Setting up question bank... ")
	samplePath := filepath.Join(testbankDir, "questions", "sample.md")
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		if err := os.WriteFile(samplePath, []byte(sampleDoc), 0644); err != nil {
			return fmt.Errorf("write sample questions: %w", err)
		}
		fmt.Println("✓ (sample questions created)")
	} else {
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Setup complete. Next steps:")
	fmt.Println("  testbank start              # Start the daemon")
	fmt.Println("  testbank questions list     # See the sample questions")
	fmt.Println("  testbank check solution.go  # Grade a submission")

	return nil
}

// cmdConfig prints the active configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
