// Package grader drives a submission through the grading stages: resolve
// the tag, check syntax, check structure, bind the artifact and execute
// the declared cases. It turns every outcome into a Report that separates
// the student's failures from the author's and the operator's.
package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/corpus"
	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/extract"
	"github.com/felixgeelhaar/testbank/internal/question"
	"github.com/felixgeelhaar/testbank/internal/runner"
)

// Status is the overall outcome of one check.
type Status string

const (
	// StatusPass means the artifact met every requirement of the question.
	StatusPass Status = "pass"
	// StatusFail means the artifact was graded and found wanting.
	StatusFail Status = "fail"
	// StatusError means grading could not complete; the cause is not the
	// student's artifact.
	StatusError Status = "error"
)

// Report is the outcome of checking one artifact against one question.
type Report struct {
	Tag      string       `json:"tag"`
	Question string       `json:"question,omitempty"`
	Status   Status       `json:"status"`
	Stage    domain.Stage `json:"stage,omitempty"`
	Detail   string       `json:"detail,omitempty"`
	Cases    int          `json:"cases,omitempty"`
	Passed   int          `json:"passed,omitempty"`
}

// Grader binds a question bank to an evaluator.
type Grader struct {
	bank   *bank.Bank
	eval   runner.Evaluator
	opts   question.CheckOptions
	logger *slog.Logger
}

// New creates a grader over the given bank and evaluator.
func New(b *bank.Bank, eval runner.Evaluator, opts question.CheckOptions, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{bank: b, eval: eval, opts: opts, logger: logger}
}

// Check grades one artifact against the question behind a tag. The caller
// named the tag explicitly, so failing to resolve it is a framework-level
// error, not a grading verdict.
func (g *Grader) Check(ctx context.Context, tag, source string) Report {
	q, err := g.bank.Find(tag)
	if err != nil {
		if errors.Is(err, domain.ErrTagNotFound) {
			g.logger.Error("grading failed", "tag", tag, "error", err)
			return Report{Tag: tag, Status: StatusError, Stage: domain.StageResolve, Detail: err.Error()}
		}
		return g.errorReport(tag, "", err)
	}
	return g.check(ctx, q, tag, source)
}

// CheckSubmission grades every tagged code block of a submission, which
// may be a markdown document or a bare source file. Tags scraped out of
// the submission are the student's claims, so an unknown one is a missing
// solution and fails at the resolve stage.
func (g *Grader) CheckSubmission(ctx context.Context, submission string) []Report {
	doc := corpus.ParseSubmission(submission)

	var reports []Report
	for _, block := range doc.Blocks {
		if block.Type != corpus.BlockCode || block.Lang == "yaml" {
			continue
		}
		tags := blockTags(block)
		if len(tags) == 0 {
			continue
		}
		for _, tag := range tags {
			q, err := g.bank.Find(tag)
			switch {
			case errors.Is(err, domain.ErrTagNotFound):
				reports = append(reports, Report{Tag: tag, Status: StatusFail, Stage: domain.StageResolve, Detail: err.Error()})
			case err != nil:
				reports = append(reports, g.errorReport(tag, "", err))
			default:
				reports = append(reports, g.check(ctx, q, tag, block.Text))
			}
		}
	}
	if len(reports) == 0 {
		reports = append(reports, Report{
			Status: StatusFail,
			Stage:  domain.StageResolve,
			Detail: "the submission carries no tags",
		})
	}
	return reports
}

func blockTags(block corpus.Block) []string {
	seen := map[string]bool{}
	var tags []string
	for _, t := range block.Tags {
		if strings.HasPrefix(t, "@") && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	for _, t := range extract.CommentTags(block.Text) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return tags
}

func (g *Grader) check(ctx context.Context, q *question.Question, tag, source string) Report {
	report := Report{Tag: tag, Question: q.Name}

	facts, err := extract.Parse(source)
	if err != nil {
		return g.finish(report, domain.Studentf(domain.StageSyntax, "the solution does not parse: %v", err))
	}
	if err := q.CheckSyntax(facts); err != nil {
		return g.finish(report, err)
	}
	if err := q.CheckStructure(facts, g.opts); err != nil {
		return g.finish(report, err)
	}

	if q.Kind != question.KindFunction && q.Kind != question.KindCell {
		report.Status = StatusPass
		return report
	}

	call, err := q.Bind(g.eval, source)
	if err != nil {
		return g.errorReport(tag, q.Name, err)
	}

	report.Cases = len(q.Cases)
	for i, c := range q.Cases {
		res, err := call(ctx, c.Args...)
		if err != nil {
			report.Passed = i
			return g.finish(report, err)
		}
		if err := checkCase(i, c, res); err != nil {
			report.Passed = i
			return g.finish(report, err)
		}
	}
	report.Passed = len(q.Cases)
	report.Status = StatusPass
	return report
}

// finish classifies the terminal error of a check: a StudentError is a
// graded failure, anything else means grading broke.
func (g *Grader) finish(report Report, err error) Report {
	if domain.IsStudentError(err) {
		report.Status = StatusFail
		report.Stage = domain.FailedStage(err)
		report.Detail = err.Error()
		return report
	}
	return g.errorReport(report.Tag, report.Question, err)
}

func (g *Grader) errorReport(tag, name string, err error) Report {
	g.logger.Error("grading failed", "tag", tag, "question", name, "error", err)
	return Report{Tag: tag, Question: name, Status: StatusError, Detail: err.Error()}
}

// checkCase compares an execution result against a declared case.
func checkCase(i int, c question.Case, res *runner.Result) error {
	if c.Want != nil || !res.Void {
		if !valuesEqual(res.Value, c.Want) {
			return domain.Studentf(domain.StageExecute, "case %d: got %v, expected %v", i+1, res.Value, c.Want)
		}
	}
	if c.Stdout != nil {
		got := strings.TrimRight(res.Stdout, "\n")
		want := strings.TrimRight(*c.Stdout, "\n")
		if got != want {
			return domain.Studentf(domain.StageExecute, "case %d: printed %q, expected %q", i+1, got, want)
		}
	}
	return nil
}

// valuesEqual compares a decoded execution value against a declared
// expectation, normalizing the numeric representations the two sides use.
func valuesEqual(got, want any) bool {
	return reflect.DeepEqual(normalize(got), normalize(want))
}

func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return v.String()
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprintf("%v", k)] = normalize(e)
		}
		return out
	}
	return v
}

// normalizeFloat folds integral floats into ints so a case written as
// `want: 6` matches a result decoded as 6.0.
func normalizeFloat(f float64) any {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}
