package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type countingEvaluator struct {
	calls    atomic.Int32
	failures int32
	result   *Result
}

func (e *countingEvaluator) Run(ctx context.Context, job Job) (*Result, error) {
	n := e.calls.Add(1)
	if n <= e.failures {
		return nil, errors.New("sandbox unavailable")
	}
	return e.result, nil
}

func TestResilientEvaluatorPassThrough(t *testing.T) {
	inner := &countingEvaluator{result: &Result{Value: "ok"}}
	re := NewResilientEvaluator(inner, DefaultResilientConfig())

	res, err := re.Run(context.Background(), Job{Source: "func f() {}"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Value != "ok" {
		t.Errorf("Value = %v", res.Value)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", inner.calls.Load())
	}
}

func TestResilientEvaluatorRetriesInfrastructureErrors(t *testing.T) {
	inner := &countingEvaluator{failures: 1, result: &Result{Value: "ok"}}
	re := NewResilientEvaluator(inner, ResilientConfig{MaxAttempts: 2, MaxConcurrent: 1})

	res, err := re.Run(context.Background(), Job{Source: "func f() {}"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Value != "ok" {
		t.Errorf("Value = %v", res.Value)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", inner.calls.Load())
	}
}

func TestResilientEvaluatorDoesNotRetryGradedFailures(t *testing.T) {
	inner := &countingEvaluator{result: &Result{Fail: "panic: divide by zero"}}
	re := NewResilientEvaluator(inner, DefaultResilientConfig())

	res, err := re.Run(context.Background(), Job{Source: "func f() {}"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Fail == "" {
		t.Error("graded failure lost")
	}
	if inner.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry for graded failures)", inner.calls.Load())
	}
}
