package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LocalEvaluator runs jobs with the host Go toolchain. It offers no
// isolation and exists for development and for trusted corpora; production
// deployments use the Docker evaluator.
type LocalEvaluator struct {
	goBin string
}

// NewLocalEvaluator creates a local evaluator using the `go` binary on PATH.
func NewLocalEvaluator() *LocalEvaluator {
	return &LocalEvaluator{goBin: "go"}
}

func (e *LocalEvaluator) Run(ctx context.Context, job Job) (*Result, error) {
	files, err := BuildHarness(job)
	if err != nil {
		return nil, fmt.Errorf("build harness: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "testbank-run-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	cmd := exec.CommandContext(ctx, e.goBin, "run", ".")
	cmd.Dir = tmpDir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod", "GO111MODULE=on")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("evaluation: %w", ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); ok {
			// The artifact failed to build or crashed; that belongs to the
			// submission, not the framework.
			return &Result{Fail: failureDetail(stdout.String(), stderr.String())}, nil
		}
		return nil, fmt.Errorf("run sandbox: %w", err)
	}

	return readEnvelope(filepath.Join(tmpDir, ResultFile), stdout.String())
}

// readEnvelope decodes the harness result file. Numbers stay json.Number so
// int and float values remain distinguishable for return-type checks.
func readEnvelope(path, stdout string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result envelope: %w", err)
	}
	return decodeEnvelopeBytes(data, stdout)
}

func decodeEnvelopeBytes(data []byte, stdout string) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode result envelope: %w", err)
	}

	return &Result{
		Value:  env.Value,
		Void:   env.Void,
		Fail:   env.Fail,
		Stdout: stdout,
	}, nil
}

// failureDetail condenses compiler or runtime output into a message a
// student can act on.
func failureDetail(stdout, stderr string) string {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = strings.TrimSpace(stdout)
	}
	// Strip the sandbox temp path prefix from compiler diagnostics.
	lines := strings.Split(detail, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "main.go:"); idx > 0 {
			lines[i] = line[idx:]
		}
	}
	detail = strings.Join(lines, "\n")
	if detail == "" {
		detail = "the solution failed to run"
	}
	return detail
}
