package question_test

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/extract"
	"github.com/felixgeelhaar/testbank/internal/question"
)

func doubler() *question.Question {
	return &question.Question{
		Name:   "DoubleIt",
		Kind:   question.KindFunction,
		Text:   "Write a function `{func}` that doubles {n}.",
		Params: question.Params{{Name: "n", Value: 5}},
		Func:   "double",
		Annotations: question.Annotations{
			{Name: "x", Type: "int"},
			{Name: "return", Type: "int"},
		},
		Cases: []question.Case{{Args: []any{3}, Want: 6}},
	}
}

func TestTags(t *testing.T) {
	q := doubler()

	if got := q.ID(); got != "@DoubleIt" {
		t.Errorf("ID() = %q, want @DoubleIt", got)
	}

	tag := q.Tag()
	if !strings.HasPrefix(tag, "@di-") {
		t.Errorf("Tag() = %q, want @di- prefix", tag)
	}
	if len(tag) != len("@di-")+4 {
		t.Errorf("Tag() = %q, want a 4 character fingerprint", tag)
	}
	if q.Tag() != tag {
		t.Error("Tag() is not stable across calls")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *question.Question)
	}{
		{"empty name", func(q *question.Question) { q.Name = "" }},
		{"bad name", func(q *question.Question) { q.Name = "2fast" }},
		{"missing kind", func(q *question.Question) { q.Kind = "" }},
		{"unknown kind", func(q *question.Question) { q.Kind = "riddle" }},
		{"empty text", func(q *question.Question) { q.Text = "  \n" }},
		{"unknown required token", func(q *question.Question) { q.TokensRequired = []string{"telepathy"} }},
		{"unknown forbidden token", func(q *question.Question) { q.TokensForbidden = []string{"telepathy"} }},
		{"undeclared placeholder", func(q *question.Question) { q.Text = "Use {mystery}." }},
		{"function without func", func(q *question.Question) { q.Func = ""; q.Text = "Double {n}." }},
		{"missing return annotation", func(q *question.Question) {
			q.Annotations = question.Annotations{{Name: "x", Type: "int"}}
		}},
		{"case argument count", func(q *question.Question) {
			q.Cases = []question.Case{{Args: []any{1, 2}, Want: 3}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := doubler()
			tt.mutate(q)
			err := q.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !domain.IsAuthorError(err) {
				t.Errorf("Validate() = %v, want an author error", err)
			}
		})
	}

	if err := doubler().Validate(); err != nil {
		t.Errorf("Validate() on a well formed question = %v", err)
	}
}

func TestValidateKindContracts(t *testing.T) {
	cell := &question.Question{
		Name: "SumCell",
		Kind: question.KindCell,
		Text: "Compute the sum.",
		Annotations: question.Annotations{
			{Name: "total", Type: "int"},
			{Name: "return", Type: "int"},
		},
	}
	if err := cell.Validate(); err == nil {
		t.Error("cell question without result validated")
	}
	cell.Result = "total"
	if err := cell.Validate(); err != nil {
		t.Errorf("cell question with result = %v", err)
	}

	class := &question.Question{
		Name: "StackType",
		Kind: question.KindClass,
		Text: "Define a stack.",
	}
	if err := class.Validate(); err == nil {
		t.Error("class question without class validated")
	}
	class.Class = "Stack"
	if err := class.Validate(); err != nil {
		t.Errorf("class question with class = %v", err)
	}
}

func TestRender(t *testing.T) {
	q := doubler()
	text, err := q.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(text, "Write a function `double` that doubles `5`.") {
		t.Errorf("Render() did not substitute the parameters:\n%s", text)
	}
	if strings.Contains(text, "``") {
		t.Errorf("a structural attribute was wrapped in a second code span:\n%s", text)
	}
	if !strings.Contains(text, "Add the tag `"+q.Tag()+"`") {
		t.Errorf("Render() is missing the tag instruction:\n%s", text)
	}
}

func TestRenderPlainParam(t *testing.T) {
	q := doubler()
	q.Params = question.Params{{Name: "n", Value: 5, Plain: true}}
	text, err := q.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(text, "doubles 5.") {
		t.Errorf("plain parameter was rendered as a code span:\n%s", text)
	}
}

func TestVariant(t *testing.T) {
	base := doubler()

	a, err := base.Variant("", question.Params{{Name: "n", Value: 7}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	b, err := base.Variant("", question.Params{{Name: "n", Value: 7}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if a.Name != b.Name || a.Tag() != b.Tag() {
		t.Errorf("identical overrides produced different identities: %s vs %s", a.Name, b.Name)
	}
	if !strings.HasPrefix(a.Name, "DoubleIt_") {
		t.Errorf("derived name = %q, want DoubleIt_ prefix", a.Name)
	}

	c, err := base.Variant("", question.Params{{Name: "n", Value: 9}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if c.Name == a.Name {
		t.Error("different overrides produced the same derived name")
	}

	if v, _ := base.Params.Get("n"); v != 5 {
		t.Errorf("the base question was mutated: n = %v", v)
	}
	if v, _ := a.Params.Get("n"); v != 7 {
		t.Errorf("the variant did not take the override: n = %v", v)
	}

	named, err := base.Variant("DoubleSeven", question.Params{{Name: "n", Value: 7}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if named.Name != "DoubleSeven" {
		t.Errorf("explicit name ignored: %s", named.Name)
	}
}

func TestVariantOrderIndependentFingerprint(t *testing.T) {
	base := doubler()
	base.Params = question.Params{{Name: "n", Value: 5}, {Name: "m", Value: 1}}

	a, err := base.Variant("", question.Params{{Name: "n", Value: 7}, {Name: "m", Value: 2}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	b, err := base.Variant("", question.Params{{Name: "m", Value: 2}, {Name: "n", Value: 7}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if a.Name != b.Name {
		t.Errorf("override order changed the derived name: %s vs %s", a.Name, b.Name)
	}
}

func TestVariantDerivationIdempotent(t *testing.T) {
	base := doubler()
	p := question.Params{{Name: "n", Value: 7}}

	once, err := base.Variant("", p)
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	twice, err := once.Variant("", p)
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if twice.Name != once.Name || twice.Tag() != once.Tag() {
		t.Errorf("re-deriving with the same overrides changed the identity: %s vs %s", twice.Name, once.Name)
	}

	chained, err := once.Variant("", question.Params{{Name: "n", Value: 9}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	direct, err := base.Variant("", question.Params{{Name: "n", Value: 9}})
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if chained.Name != direct.Name {
		t.Errorf("chained and direct derivation to the same parameters disagree: %s vs %s", chained.Name, direct.Name)
	}
}

func TestResolveAnnotations(t *testing.T) {
	q := doubler()
	q.Params = question.Params{{Name: "n", Value: 5}, {Name: "arg", Value: "amount"}}
	q.Annotations = question.Annotations{
		{Name: "{arg}", Type: "int"},
		{Name: "return", Type: "int"},
	}

	resolved, err := q.ResolveAnnotations()
	if err != nil {
		t.Fatalf("ResolveAnnotations() error = %v", err)
	}
	if resolved[0].Name != "amount" {
		t.Errorf("resolved name = %q, want amount", resolved[0].Name)
	}

	q.Annotations[0].Name = "{missing}"
	if _, err := q.ResolveAnnotations(); !domain.IsAuthorError(err) {
		t.Errorf("unresolvable annotation reference = %v, want an author error", err)
	}
}

func TestCheckSyntax(t *testing.T) {
	q := doubler()
	q.TokensRequired = []string{extract.KindLoop}
	q.TokensForbidden = []string{extract.KindGoto}

	facts := &extract.Facts{Kinds: map[string]bool{extract.KindLoop: true}}
	if err := q.CheckSyntax(facts); err != nil {
		t.Errorf("CheckSyntax() = %v, want nil", err)
	}

	err := q.CheckSyntax(&extract.Facts{Kinds: map[string]bool{}})
	if !domain.IsStudentError(err) {
		t.Fatalf("missing required kind = %v, want a student error", err)
	}
	if domain.FailedStage(err) != domain.StageSyntax {
		t.Errorf("stage = %q, want %q", domain.FailedStage(err), domain.StageSyntax)
	}

	facts.Kinds[extract.KindGoto] = true
	if err := q.CheckSyntax(facts); !domain.IsStudentError(err) {
		t.Errorf("forbidden kind = %v, want a student error", err)
	}
}

const sampleNamespace = `questions:
  - name: DoubleIt
    kind: function
    text: "Write ` + "`{func}`" + ` to double {n}."
    params:
      n: 5
    func: double
    annotations:
      x: int
      return: int
    cases:
      - args: [3]
        want: 6
variants:
  - base: DoubleIt
    name: DoubleSeven
    params:
      n: 7
groups:
  - name: Doubles
    pick: 1
    members: [DoubleIt, DoubleSeven]
`

func TestDecodeNamespace(t *testing.T) {
	ns, err := question.DecodeNamespace(sampleNamespace)
	if err != nil {
		t.Fatalf("DecodeNamespace() error = %v", err)
	}

	if len(ns.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(ns.Questions))
	}
	if ns.Questions[0].Name != "DoubleIt" || ns.Questions[1].Name != "DoubleSeven" {
		t.Errorf("questions out of order: %s, %s", ns.Questions[0].Name, ns.Questions[1].Name)
	}
	if v, _ := ns.Questions[1].Params.Get("n"); v != 7 {
		t.Errorf("variant override lost: n = %v", v)
	}

	if len(ns.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(ns.Groups))
	}
	g := ns.Groups[0]
	if g.Name != "Doubles" || g.Pick != 1 || len(g.Members) != 2 {
		t.Errorf("group = %+v", g)
	}
	if g.Members[1] != ns.Questions[1] {
		t.Error("group members are not the registered question values")
	}
}

func TestDecodeNamespaceMultiDocument(t *testing.T) {
	source := sampleNamespace + "---\nquestions:\n  - name: Echo\n    kind: snippet\n    text: Print something.\n"
	ns, err := question.DecodeNamespace(source)
	if err != nil {
		t.Fatalf("DecodeNamespace() error = %v", err)
	}
	if len(ns.Questions) != 3 {
		t.Errorf("got %d questions, want 3", len(ns.Questions))
	}
}

func TestDecodeNamespaceErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unknown key", "questions:\n  - name: X\n    kindd: snippet\n    text: hi\n"},
		{"duplicate name", "questions:\n  - name: Echo\n    kind: snippet\n    text: a\n  - name: Echo\n    kind: snippet\n    text: b\n"},
		{"unknown variant base", "variants:\n  - base: Nope\n    params:\n      n: 1\n"},
		{"unknown group member", "questions:\n  - name: Echo\n    kind: snippet\n    text: a\ngroups:\n  - name: G\n    pick: 1\n    members: [Echo, Nope]\n"},
		{"pick out of range", "questions:\n  - name: Echo\n    kind: snippet\n    text: a\ngroups:\n  - name: G\n    pick: 3\n    members: [Echo]\n"},
		{"not yaml", "questions: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := question.DecodeNamespace(tt.source); err == nil {
				t.Error("DecodeNamespace() = nil, want error")
			}
		})
	}
}
