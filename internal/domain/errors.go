package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Error taxonomy
//
// Every failure in the grading pipeline belongs to exactly one of three
// classes, and the classes must never be confused:
//
//   AuthorError  - a broken question definition. Fatal, reported to the
//                  question author, never shown to a student.
//   StudentError - a submission that violates a question's contract. Always
//                  recoverable; reported as a graded failure.
//   ConfigError  - a bad corpus path or unreadable document. Fatal at load
//                  time, reported to the operator.
// -----------------------------------------------------------------------------

// Sentinel errors for registry lookups.
var (
	ErrTagNotFound     = errors.New("tag not found")
	ErrNoMatch         = errors.New("no question tag found")
	ErrDuplicateName   = errors.New("duplicate question name")
	ErrUnknownMember   = errors.New("group references unknown question")
	ErrMissingSolution = errors.New("missing solution")
)

// Stage identifies the grading stage at which an attempt failed.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageSyntax    Stage = "syntax"
	StageStructure Stage = "structure"
	StageBind      Stage = "bind"
	StageExecute   Stage = "execute"
)

// AuthorError marks a defect in a question definition. The Question field
// names the offending question when known.
type AuthorError struct {
	Question string
	Err      error
}

func (e *AuthorError) Error() string {
	if e.Question == "" {
		return fmt.Sprintf("question definition: %v", e.Err)
	}
	return fmt.Sprintf("question %s: %v", e.Question, e.Err)
}

func (e *AuthorError) Unwrap() error { return e.Err }

// Authorf builds an AuthorError from a format string.
func Authorf(question, format string, args ...any) error {
	return &AuthorError{Question: question, Err: fmt.Errorf(format, args...)}
}

// StudentError marks a contract violation by a submission. Detail messages
// are written for students, not framework developers.
type StudentError struct {
	Stage Stage
	Err   error
}

func (e *StudentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StudentError) Unwrap() error { return e.Err }

// Studentf builds a StudentError from a format string.
func Studentf(stage Stage, format string, args ...any) error {
	return &StudentError{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// ConfigError marks an operator-facing configuration problem.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("configuration: %v", e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// IsAuthorError reports whether err is (or wraps) an AuthorError.
func IsAuthorError(err error) bool {
	var ae *AuthorError
	return errors.As(err, &ae)
}

// IsStudentError reports whether err is (or wraps) a StudentError.
func IsStudentError(err error) bool {
	var se *StudentError
	return errors.As(err, &se)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FailedStage returns the grading stage recorded on a StudentError, or ""
// when err carries no stage.
func FailedStage(err error) Stage {
	var se *StudentError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
