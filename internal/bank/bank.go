// Package bank loads question documents from disk and serves the resulting
// registry: tag lookup, submission resolution and bank statistics.
package bank

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/testbank/internal/corpus"
	"github.com/felixgeelhaar/testbank/internal/domain"
	"github.com/felixgeelhaar/testbank/internal/extract"
	"github.com/felixgeelhaar/testbank/internal/question"
)

// Config controls how the bank loads its documents.
type Config struct {
	// Paths are the question documents or directories to load.
	Paths []string
	// SkipBroken downgrades a broken document from aborting the load to a
	// logged warning that skips the document.
	SkipBroken bool
}

// Bank is the loaded question registry. Lookups are safe for concurrent
// use with Load: a load builds a complete new registry and swaps it in,
// so readers never observe a half-loaded bank.
type Bank struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	state   *state
	version int
}

type state struct {
	byTag     map[string]*question.Question
	groups    map[string]*question.Group
	questions []*question.Question
	groupList []*question.Group
	origins   map[string]string
	sources   map[string]string
	documents int
}

func newState() *state {
	return &state{
		byTag:   map[string]*question.Question{},
		groups:  map[string]*question.Group{},
		origins: map[string]string{},
		sources: map[string]string{},
	}
}

// New creates an empty bank. Call Load before serving lookups.
func New(cfg Config, logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bank{cfg: cfg, logger: logger, state: newState()}
}

// AddPath registers another document path. A missing path is an operator
// mistake, reported as a ConfigError immediately rather than at load time.
func (b *Bank) AddPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return domain.Configf("question path %s: %v", path, err)
	}
	b.cfg.Paths = append(b.cfg.Paths, path)
	return nil
}

// Load reads every configured document and swaps the result in atomically.
// A broken document aborts the whole load unless SkipBroken is set; the
// previously loaded registry stays live either way.
func (b *Bank) Load() error {
	files, err := b.collectFiles()
	if err != nil {
		return err
	}

	next := newState()
	for _, path := range files {
		if err := b.loadDocument(next, path); err != nil {
			if b.cfg.SkipBroken && domain.IsAuthorError(err) {
				b.logger.Warn("skipping broken question document", "path", path, "error", err)
				continue
			}
			return err
		}
	}

	b.mu.Lock()
	b.state = next
	b.version++
	b.mu.Unlock()

	b.logger.Info("question bank loaded",
		"documents", next.documents,
		"questions", len(next.questions),
		"groups", len(next.groupList))
	return nil
}

func (b *Bank) collectFiles() ([]string, error) {
	var files []string
	for _, path := range b.cfg.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.Configf("question path %s: %v", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, ".md") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, domain.Configf("walking %s: %v", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (b *Bank) loadDocument(st *state, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Configf("reading %s: %v", path, err)
	}

	doc := corpus.Parse(path, string(content))

	source := doc.QuestionSource()
	if source == "" {
		b.logger.Debug("document declares no questions", "path", path)
		return nil
	}

	ns, err := question.DecodeNamespace(source)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	st.documents++
	st.sources[path] = source

	for _, q := range ns.Questions {
		if err := registerQuestion(st, q, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, g := range ns.Groups {
		if _, taken := st.groups[g.Name]; taken {
			return fmt.Errorf("%s: group %q: %w", path, g.Name, domain.ErrDuplicateName)
		}
		st.groups[g.Name] = g
		st.groupList = append(st.groupList, g)
	}
	return nil
}

func registerQuestion(st *state, q *question.Question, path string) error {
	for _, tag := range []string{q.ID(), q.Tag()} {
		if prev, taken := st.byTag[tag]; taken && prev != q {
			return domain.Authorf(q.Name, "tag %s: %w", tag, domain.ErrDuplicateName)
		}
		st.byTag[tag] = q
		st.origins[tag] = path
	}
	st.questions = append(st.questions, q)
	return nil
}

func (b *Bank) snapshot() *state {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Find looks a question up by either of its tags. The leading @ is
// optional.
func (b *Bank) Find(tag string) (*question.Question, error) {
	q, ok := b.snapshot().byTag[normalizeTag(tag)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tag, domain.ErrTagNotFound)
	}
	return q, nil
}

// FindGroup looks a group up by name.
func (b *Bank) FindGroup(name string) (*question.Group, error) {
	g, ok := b.snapshot().groups[name]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", name, domain.ErrTagNotFound)
	}
	return g, nil
}

// Resolve scans a submission for comment tags and maps every one to its
// question. Any tag the bank does not know makes the whole resolution
// fail, naming the unknown tags.
func (b *Bank) Resolve(source string) ([]*question.Question, error) {
	tags := extract.CommentTags(source)
	if len(tags) == 0 {
		return nil, fmt.Errorf("the submission carries no tags: %w", domain.ErrNoMatch)
	}

	st := b.snapshot()
	var matched []*question.Question
	var unknown []string
	for _, tag := range tags {
		q, ok := st.byTag[tag]
		if !ok {
			unknown = append(unknown, tag)
			continue
		}
		matched = append(matched, q)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown tags %s: %w", strings.Join(unknown, ", "), domain.ErrNoMatch)
	}
	return matched, nil
}

// Questions returns the loaded questions in registration order.
func (b *Bank) Questions() []*question.Question {
	st := b.snapshot()
	return append([]*question.Question(nil), st.questions...)
}

// Groups returns the loaded groups in registration order.
func (b *Bank) Groups() []*question.Group {
	st := b.snapshot()
	return append([]*question.Group(nil), st.groupList...)
}

// Source returns the question source blob of the document that defined a
// tag, for auditing what a student was actually graded against.
func (b *Bank) Source(tag string) (string, error) {
	st := b.snapshot()
	path, ok := st.origins[normalizeTag(tag)]
	if !ok {
		return "", fmt.Errorf("%s: %w", tag, domain.ErrTagNotFound)
	}
	return st.sources[path], nil
}

// Stats summarizes the loaded bank. Group membership does not inflate the
// question count: a question is counted once however many groups carry it.
type Stats struct {
	Documents    int `json:"documents"`
	Questions    int `json:"questions"`
	Groups       int `json:"groups"`
	GroupMembers int `json:"group_members"`
}

// Stats reports on the current registry.
func (b *Bank) Stats() Stats {
	st := b.snapshot()

	unique := map[*question.Question]bool{}
	for _, q := range st.questions {
		unique[q] = true
	}
	members := 0
	for _, g := range st.groupList {
		for q := range g.All() {
			unique[q] = true
			members++
		}
	}

	return Stats{
		Documents:    st.documents,
		Questions:    len(unique),
		Groups:       len(st.groupList),
		GroupMembers: members,
	}
}

func normalizeTag(tag string) string {
	if strings.HasPrefix(tag, "@") {
		return tag
	}
	return "@" + tag
}
