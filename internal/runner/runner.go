// Package runner executes graded artifacts outside the core process. The
// Evaluator interface is the sandbox boundary: the core never runs untrusted
// code itself, it describes a job and waits for the result.
package runner

import "context"

// Call describes an invocation of a named function defined by the artifact.
type Call struct {
	Name string
	Args []any
}

// Job describes one evaluation of an artifact. Exactly one of Call or
// Result is set: Call invokes a function the artifact defines, Result
// re-executes the artifact under Bindings and reports the value of the
// named expression.
type Job struct {
	Source    string
	Bindings  map[string]any
	Call      *Call
	Result    string
	WantValue bool
}

// Result is the outcome of a completed evaluation. Fail carries a contract
// violation attributable to the submission (compile failure, runtime panic,
// a value returned where none was declared); infrastructure problems are
// returned as ordinary errors instead.
type Result struct {
	Value  any
	Void   bool
	Fail   string
	Stdout string
}

// Evaluator runs jobs in some isolated environment.
type Evaluator interface {
	Run(ctx context.Context, job Job) (*Result, error)
}
