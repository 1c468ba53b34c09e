package bank_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/domain"
)

const fence = "```"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func questionDoc(body string) string {
	return "# Questions\n\nIntro prose.\n\n" + fence + "yaml {question}\n" + body + fence + "\n"
}

const doubleBody = `questions:
  - name: DoubleIt
    kind: function
    text: "Write ` + "`{func}`" + ` to double a number."
    func: double
    annotations:
      x: int
      return: int
variants:
  - base: DoubleIt
    name: DoubleAgain
groups:
  - name: Doubles
    pick: 1
    members: [DoubleIt, DoubleAgain]
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadedBank(t *testing.T) *bank.Bank {
	t.Helper()
	dir := t.TempDir()
	writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))
	b := bank.New(bank.Config{Paths: []string{dir}}, discard())
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return b
}

func TestLoadAndFind(t *testing.T) {
	b := loadedBank(t)

	q, err := b.Find("@DoubleIt")
	if err != nil {
		t.Fatalf("Find(@DoubleIt) error = %v", err)
	}
	if q.Func != "double" {
		t.Errorf("Func = %q", q.Func)
	}

	if _, err := b.Find(q.Tag()); err != nil {
		t.Errorf("Find by opaque tag error = %v", err)
	}
	if _, err := b.Find("DoubleIt"); err != nil {
		t.Errorf("Find without @ error = %v", err)
	}

	if _, err := b.Find("@Nope"); !errors.Is(err, domain.ErrTagNotFound) {
		t.Errorf("Find(@Nope) = %v, want ErrTagNotFound", err)
	}

	g, err := b.FindGroup("Doubles")
	if err != nil {
		t.Fatalf("FindGroup() error = %v", err)
	}
	if len(g.Members) != 2 || g.Pick != 1 {
		t.Errorf("group = %+v", g)
	}
}

func TestResolve(t *testing.T) {
	b := loadedBank(t)
	q, err := b.Find("@DoubleIt")
	if err != nil {
		t.Fatal(err)
	}

	submission := fmt.Sprintf("// %s\nfunc double(x int) int { return x * 2 }\n", q.Tag())
	matched, err := b.Resolve(submission)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(matched) != 1 || matched[0] != q {
		t.Errorf("Resolve() = %v", matched)
	}

	if _, err := b.Resolve("// @zz-0000\nfunc f() {}\n"); !errors.Is(err, domain.ErrNoMatch) {
		t.Errorf("unknown tag = %v, want ErrNoMatch", err)
	}
	if _, err := b.Resolve("func f() {}\n"); !errors.Is(err, domain.ErrNoMatch) {
		t.Errorf("untagged submission = %v, want ErrNoMatch", err)
	}
}

func TestLoadAtomicity(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))

	b := bank.New(bank.Config{Paths: []string{dir}}, discard())
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	writeDoc(t, dir, "broken.md", questionDoc("questions:\n  - name: Broken\n    kind: riddle\n    text: x\n"))
	if err := b.Load(); err == nil {
		t.Fatal("Load() with a broken document = nil, want error")
	}

	// The failed load must not have touched the live registry.
	if _, err := b.Find("@DoubleIt"); err != nil {
		t.Errorf("Find() after failed load = %v", err)
	}
}

func TestLoadDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))

	b := bank.New(bank.Config{Paths: []string{dir}}, discard())
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	first := b.Stats()
	var tags []string
	for _, q := range b.Questions() {
		tags = append(tags, q.ID(), q.Tag())
	}

	if err := b.Load(); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if got := b.Stats(); got != first {
		t.Errorf("Stats() changed across reloads: %+v vs %+v", got, first)
	}
	for _, tag := range tags {
		if _, err := b.Find(tag); err != nil {
			t.Errorf("Find(%s) after reload = %v", tag, err)
		}
	}
}

func TestLoadSkipBroken(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))
	writeDoc(t, dir, "broken.md", questionDoc("questions:\n  - name: Broken\n    kind: riddle\n    text: x\n"))

	b := bank.New(bank.Config{Paths: []string{dir}, SkipBroken: true}, discard())
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := b.Find("@DoubleIt"); err != nil {
		t.Errorf("Find() = %v", err)
	}
	if _, err := b.Find("@Broken"); err == nil {
		t.Error("the broken document was registered")
	}
}

func TestAddPath(t *testing.T) {
	b := bank.New(bank.Config{}, discard())
	err := b.AddPath(filepath.Join(t.TempDir(), "missing.md"))
	if !domain.IsConfigError(err) {
		t.Errorf("AddPath(missing) = %v, want a config error", err)
	}

	dir := t.TempDir()
	path := writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))
	if err := b.AddPath(path); err != nil {
		t.Fatalf("AddPath() error = %v", err)
	}
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := b.Find("@DoubleIt"); err != nil {
		t.Errorf("Find() = %v", err)
	}
}

func TestStats(t *testing.T) {
	b := loadedBank(t)

	got := b.Stats()
	want := bank.Stats{Documents: 1, Questions: 2, Groups: 1, GroupMembers: 2}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	// Reloading must not double-count anything.
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := b.Stats(); got != want {
		t.Errorf("Stats() after reload = %+v, want %+v", got, want)
	}
}

func TestSource(t *testing.T) {
	b := loadedBank(t)

	blob, err := b.Source("@DoubleIt")
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if !strings.Contains(blob, "questions:") || !strings.Contains(blob, "DoubleIt") {
		t.Errorf("Source() = %q", blob)
	}

	if _, err := b.Source("@Nope"); !errors.Is(err, domain.ErrTagNotFound) {
		t.Errorf("Source(@Nope) = %v, want ErrTagNotFound", err)
	}
}

func TestProselessDocumentIgnored(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "notes.md", "# Notes\n\nNothing gradable here.\n")
	writeDoc(t, dir, "doubles.md", questionDoc(doubleBody))

	b := bank.New(bank.Config{Paths: []string{dir}}, discard())
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := b.Stats().Documents; got != 1 {
		t.Errorf("Documents = %d, want 1", got)
	}
}
