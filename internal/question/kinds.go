package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/extract"
	"github.com/felixgeelhaar/testbank/internal/runner"
)

// CheckOptions tunes the structural checks.
type CheckOptions struct {
	// EscapeArgNames enables the underscore convention: a declared
	// argument name wrapped in underscores (such as _n_) matches any
	// submitted name at that position.
	EscapeArgNames bool
}

// Callable invokes the bound artifact with one set of arguments. Each call
// runs the artifact fresh; results are never cached between invocations.
// A graded failure (the artifact's fault) is returned as a StudentError,
// anything else is an infrastructure error.
type Callable func(ctx context.Context, args ...any) (*runner.Result, error)

// escapedArg reports whether a declared name opts out of name matching.
func escapedArg(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "_") && strings.HasSuffix(name, "_")
}

// bindingName is the variable name a cell question looks for: the declared
// name with the escape underscores stripped.
func bindingName(name string) string {
	if escapedArg(name) {
		return name[1 : len(name)-1]
	}
	return name
}

// CheckStructure asserts the kind-specific shape of the artifact against
// the extracted facts. All violations are StudentErrors at the structure
// stage.
func (q *Question) CheckStructure(facts *extract.Facts, opts CheckOptions) error {
	switch q.Kind {
	case KindFunction:
		return q.checkFunctionShape(facts, opts)
	case KindCell:
		return q.checkCellShape(facts)
	case KindClass:
		return q.checkClassShape(facts)
	}
	return nil
}

func (q *Question) checkFunctionShape(facts *extract.Facts, opts CheckOptions) error {
	fn, ok := facts.Functions[q.Func]
	if !ok {
		return domain.Studentf(domain.StageStructure, "the solution does not define a function named %s", q.Func)
	}
	if strings.HasPrefix(q.Func, "_") {
		// Internal helpers are exempt from the interface checks.
		return nil
	}
	if !fn.HasDoc {
		return domain.Studentf(domain.StageStructure, "the function %s has no doc comment", q.Func)
	}

	want := q.mustArgNames()
	if len(fn.Args) != len(want) {
		return domain.Studentf(domain.StageStructure, "the function %s takes %d arguments, the question requires %d",
			q.Func, len(fn.Args), len(want))
	}
	for i, name := range want {
		if opts.EscapeArgNames && escapedArg(name) {
			continue
		}
		if fn.Args[i] != name {
			return domain.Studentf(domain.StageStructure, "argument %d of %s must be named %s, got %s",
				i+1, q.Func, name, fn.Args[i])
		}
	}
	return nil
}

func (q *Question) checkCellShape(facts *extract.Facts) error {
	for _, name := range q.mustArgNames() {
		if !facts.Assignments[bindingName(name)] {
			return domain.Studentf(domain.StageStructure, "the solution must assign a variable named %s", bindingName(name))
		}
	}
	return nil
}

func (q *Question) checkClassShape(facts *extract.Facts) error {
	tf, ok := facts.Types[q.Class]
	if !ok {
		return domain.Studentf(domain.StageStructure, "the solution does not define a type named %s", q.Class)
	}
	if !tf.HasDoc {
		return domain.Studentf(domain.StageStructure, "the type %s has no doc comment", q.Class)
	}
	return nil
}

// Bind turns a structure-checked artifact into a Callable over the given
// evaluator. Only function and cell questions are bindable.
func (q *Question) Bind(eval runner.Evaluator, source string) (Callable, error) {
	switch q.Kind {
	case KindFunction:
		return q.bindFunction(eval, source), nil
	case KindCell:
		return q.bindCell(eval, source), nil
	}
	return nil, fmt.Errorf("%s questions cannot be bound", q.Kind)
}

func (q *Question) bindFunction(eval runner.Evaluator, source string) Callable {
	ret := q.ReturnType()
	return func(ctx context.Context, args ...any) (*runner.Result, error) {
		job := runner.Job{
			Source:    source,
			Call:      &runner.Call{Name: q.Func, Args: args},
			WantValue: ret != "none",
		}
		res, err := eval.Run(ctx, job)
		if err != nil {
			return nil, err
		}
		if res.Fail != "" {
			return res, domain.Studentf(domain.StageExecute, "%s", res.Fail)
		}
		if err := q.checkReturn(q.Func, ret, res); err != nil {
			return res, err
		}
		return res, nil
	}
}

func (q *Question) bindCell(eval runner.Evaluator, source string) Callable {
	names := q.mustArgNames()
	ret := q.ReturnType()
	return func(ctx context.Context, args ...any) (*runner.Result, error) {
		if len(args) != len(names) {
			return nil, fmt.Errorf("cell %s: got %d arguments, the question declares %d", q.Name, len(args), len(names))
		}
		bindings := make(map[string]any, len(names))
		for i, name := range names {
			bindings[bindingName(name)] = args[i]
		}
		job := runner.Job{
			Source:    source,
			Bindings:  bindings,
			Result:    q.Result,
			WantValue: true,
		}
		res, err := eval.Run(ctx, job)
		if err != nil {
			return nil, err
		}
		if res.Fail != "" {
			return res, domain.Studentf(domain.StageExecute, "%s", res.Fail)
		}
		if err := q.checkReturn(q.Result, ret, res); err != nil {
			return res, err
		}
		return res, nil
	}
}

// checkReturn enforces the declared return policy on an execution result.
func (q *Question) checkReturn(subject, declared string, res *runner.Result) error {
	switch declared {
	case "none":
		if !res.Void {
			return domain.Studentf(domain.StageExecute, "%s must not produce a value, got %v", subject, res.Value)
		}
		return nil
	case "any", "":
		return nil
	}
	if res.Void {
		return domain.Studentf(domain.StageExecute, "%s did not produce a value, expected a %s", subject, declared)
	}
	if kind := ValueKind(res.Value); kind != declared {
		return domain.Studentf(domain.StageExecute, "%s produced %v (a %s) not a %s", subject, res.Value, kind, declared)
	}
	return nil
}

// ValueKind classifies a decoded result value into the annotation type
// vocabulary.
func ValueKind(v any) string {
	switch v := v.(type) {
	case nil:
		return "none"
	case bool:
		return "bool"
	case string:
		return "string"
	case int, int64:
		return "int"
	case float32, float64:
		return "float"
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "int"
		}
		return "float"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	}
	return fmt.Sprintf("%T", v)
}
