// Package question defines the question specification model: parameterized,
// self-validating descriptions of gradable exercises, their deterministic
// tags, variant derivation, and the structural contracts each question kind
// imposes on a submitted artifact.
package question

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/extract"
)

// Kind selects the structural contract a question imposes.
type Kind string

const (
	// KindFunction requires the artifact to define a named function with a
	// declared signature.
	KindFunction Kind = "function"
	// KindCell requires free variables assigned in a statement fragment; a
	// synthetic function is wrapped around the fragment at grading time.
	KindCell Kind = "cell"
	// KindClass requires the artifact to define a named type.
	KindClass Kind = "class"
	// KindSnippet imposes no structural contract beyond the syntax checks.
	KindSnippet Kind = "snippet"
)

// Question is an immutable specification of one gradable exercise. It is
// built by the corpus loader (or by Variant) and must pass Validate before
// registration; after that it is never mutated.
type Question struct {
	Name            string      `yaml:"name"`
	Kind            Kind        `yaml:"kind"`
	Text            string      `yaml:"text"`
	Params          Params      `yaml:"params"`
	TokensRequired  []string    `yaml:"tokens_required"`
	TokensForbidden []string    `yaml:"tokens_forbidden"`
	Func            string      `yaml:"func"`
	Annotations     Annotations `yaml:"annotations"`
	Result          string      `yaml:"result"`
	Class           string      `yaml:"class"`
	Cases           []Case      `yaml:"cases"`

	// base is the name of the root question a variant chain started from;
	// empty on authored questions.
	base string
}

// Case declares an expected invocation outcome: positional arguments, the
// value the bound callable must produce, and optionally the console output
// it must print.
type Case struct {
	Args   []any   `yaml:"args"`
	Want   any     `yaml:"want"`
	Stdout *string `yaml:"stdout"`
}

var (
	nameRe        = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	annotationRe  = regexp.MustCompile(`^\s*\{\s*(\S+)\s*\}\s*$`)
)

// ID returns the question's identity tag, derived from its declared name.
func (q *Question) ID() string {
	return "@" + q.Name
}

// Tag returns the opaque tag: a short fingerprint of the identity that
// authors embed in solution documents. The prefix keeps tags legible (the
// initials of the name), the hash keeps them unique.
func (q *Question) Tag() string {
	var prefix strings.Builder
	for i, r := range q.Name {
		if i == 0 {
			prefix.WriteRune(unicode.ToLower(r))
		} else if unicode.IsUpper(r) {
			prefix.WriteRune(unicode.ToLower(r))
		}
	}
	sum := sha1.Sum([]byte(q.Name))
	return fmt.Sprintf("@%s-%s", prefix.String(), hex.EncodeToString(sum[:])[:4])
}

// Validate checks the question definition itself. Every failure is an
// AuthorError: a question that does not validate is broken regardless of
// any submission.
func (q *Question) Validate() error {
	if q.Name == "" || !nameRe.MatchString(q.Name) {
		return domain.Authorf(q.Name, "the question needs a valid name, got %q", q.Name)
	}

	switch q.Kind {
	case KindFunction, KindCell, KindClass, KindSnippet:
	case "":
		return domain.Authorf(q.Name, "the question needs a kind (function, cell, class or snippet)")
	default:
		return domain.Authorf(q.Name, "unknown question kind %q", q.Kind)
	}

	if strings.TrimSpace(q.Text) == "" {
		return domain.Authorf(q.Name, "the question text must not be empty")
	}

	for _, list := range [][]string{q.TokensRequired, q.TokensForbidden} {
		for _, kind := range list {
			if !extract.KnownKind(kind) {
				return domain.Authorf(q.Name, "unknown syntax kind %q in token list", kind)
			}
		}
	}

	if err := q.checkPlaceholders(); err != nil {
		return err
	}

	switch q.Kind {
	case KindFunction:
		if q.Func == "" {
			return domain.Authorf(q.Name, "a function question needs the `func` attribute")
		}
		if err := q.checkAnnotations(); err != nil {
			return err
		}
	case KindCell:
		if q.Result == "" {
			return domain.Authorf(q.Name, "a cell question needs the `result` attribute")
		}
		if err := q.checkAnnotations(); err != nil {
			return err
		}
	case KindClass:
		if q.Class == "" {
			return domain.Authorf(q.Name, "a class question needs the `class` attribute")
		}
	}

	if q.Kind == KindFunction || q.Kind == KindCell {
		argCount := len(q.mustArgNames())
		for i, c := range q.Cases {
			if len(c.Args) != argCount {
				return domain.Authorf(q.Name, "case %d has %d arguments, the question declares %d", i, len(c.Args), argCount)
			}
		}
	}

	return nil
}

func (q *Question) checkAnnotations() error {
	if len(q.Annotations) == 0 {
		return domain.Authorf(q.Name, "the `annotations` mapping is required and must contain a \"return\" entry")
	}
	if _, ok := q.Annotations.Get("return"); !ok {
		return domain.Authorf(q.Name, "the `annotations` mapping must contain a \"return\" entry")
	}
	_, err := q.ResolveAnnotations()
	return err
}

// checkPlaceholders substitutes every placeholder in the question text and
// fails on any that is not declared, so a broken template surfaces when the
// question is defined, not when a student reads it.
func (q *Question) checkPlaceholders() error {
	declared := q.placeholderValues()
	for _, m := range placeholderRe.FindAllStringSubmatch(q.Text, -1) {
		if _, ok := declared[m[1]]; !ok {
			return domain.Authorf(q.Name, "the question text references {%s} which is not declared", m[1])
		}
	}
	return nil
}

// placeholderValues collects everything the text template may reference:
// the declared parameters plus the structural attributes. Structural
// attributes render plain, so a template written `{func}` produces one
// code span rather than a doubled one.
func (q *Question) placeholderValues() map[string]paramValue {
	values := map[string]paramValue{
		"name": {value: q.Name, plain: true},
	}
	if q.Func != "" {
		values["func"] = paramValue{value: q.Func, plain: true}
	}
	if q.Class != "" {
		values["class"] = paramValue{value: q.Class, plain: true}
	}
	if q.Result != "" {
		values["result"] = paramValue{value: q.Result, plain: true}
	}
	for _, p := range q.Params {
		values[p.Name] = paramValue{value: p.Value, plain: p.Plain}
	}
	return values
}

// Render produces the student-facing question text: the template with every
// parameter substituted, followed by the tagging instruction.
func (q *Question) Render() (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	values := q.placeholderValues()
	text := placeholderRe.ReplaceAllStringFunc(q.Text, func(m string) string {
		name := m[1 : len(m)-1]
		v := values[name]
		if v.plain {
			return fmt.Sprintf("%v", v.value)
		}
		return fmt.Sprintf("`%v`", v.value)
	})

	return fmt.Sprintf("%s\n\nAdd the tag `%s` to a comment in your solution.\n",
		strings.TrimRight(text, "\n"), q.Tag()), nil
}

// CheckSyntax asserts the artifact's syntax kinds against the question's
// required and forbidden sets. Violations are StudentErrors that name the
// offending kind, never a go/ast node type.
func (q *Question) CheckSyntax(facts *extract.Facts) error {
	for _, kind := range q.TokensRequired {
		if !facts.Kinds[kind] {
			return domain.Studentf(domain.StageSyntax, "the solution is missing required syntax: %s", kind)
		}
	}
	for _, kind := range q.TokensForbidden {
		if facts.Kinds[kind] {
			return domain.Studentf(domain.StageSyntax, "the solution uses forbidden syntax: %s", kind)
		}
	}
	return nil
}

// ResolveAnnotations resolves parameter references in annotation names. An
// annotation named "{p}" takes the value of parameter p as its name, which
// lets variants rename arguments.
func (q *Question) ResolveAnnotations() (Annotations, error) {
	resolved := make(Annotations, 0, len(q.Annotations))
	for _, a := range q.Annotations {
		name := a.Name
		if m := annotationRe.FindStringSubmatch(name); m != nil {
			v, ok := q.Params.Get(m[1])
			if !ok {
				return nil, domain.Authorf(q.Name, "the annotations reference {%s} but no such parameter is declared", m[1])
			}
			s, ok := v.(string)
			if !ok {
				return nil, domain.Authorf(q.Name, "the parameter %s used as an argument name must be a string, got %T", m[1], v)
			}
			name = s
		}
		resolved = append(resolved, Annotation{Name: name, Type: a.Type})
	}
	return resolved, nil
}

// ArgNames returns the declared argument names in order, excluding the
// return entry. It must only be called on a validated question.
func (q *Question) ArgNames() ([]string, error) {
	resolved, err := q.ResolveAnnotations()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, a := range resolved {
		if a.Name != "return" {
			names = append(names, a.Name)
		}
	}
	return names, nil
}

// mustArgNames is ArgNames for contexts where Validate already ran.
func (q *Question) mustArgNames() []string {
	names, err := q.ArgNames()
	if err != nil {
		return nil
	}
	return names
}

// ReturnType returns the declared return annotation, or "any" when none
// was declared.
func (q *Question) ReturnType() string {
	resolved, err := q.ResolveAnnotations()
	if err != nil {
		return "any"
	}
	for _, a := range resolved {
		if a.Name == "return" {
			return a.Type
		}
	}
	return "any"
}

// clone returns a deep copy so variants never alias the base's slices.
func (q *Question) clone() *Question {
	c := *q
	c.Params = append(Params(nil), q.Params...)
	c.TokensRequired = append([]string(nil), q.TokensRequired...)
	c.TokensForbidden = append([]string(nil), q.TokensForbidden...)
	c.Annotations = append(Annotations(nil), q.Annotations...)
	c.Cases = append([]Case(nil), q.Cases...)
	return &c
}
