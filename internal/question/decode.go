package question

import (
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/testbank/internal/domain"
)

// Namespace is the outcome of decoding one question source: the declared
// questions, the variants derived from them, and the groups over both, in
// declaration order.
type Namespace struct {
	Questions []*Question
	Groups    []*Group
}

type variantDecl struct {
	Base   string `yaml:"base"`
	Name   string `yaml:"name"`
	Params Params `yaml:"params"`
}

type groupDecl struct {
	Name    string   `yaml:"name"`
	Pick    int      `yaml:"pick"`
	Members []string `yaml:"members"`
}

type questionDocument struct {
	Questions []*Question   `yaml:"questions"`
	Variants  []variantDecl `yaml:"variants"`
	Groups    []groupDecl   `yaml:"groups"`
}

// DecodeNamespace parses a question source, a YAML stream of question
// documents, into a validated namespace. Unknown mapping keys are
// rejected so a typoed attribute fails loudly instead of silently
// defining a weaker question. Any failure is an AuthorError.
func DecodeNamespace(source string) (*Namespace, error) {
	dec := yaml.NewDecoder(strings.NewReader(source))
	dec.KnownFields(true)

	ns := &Namespace{}
	byName := map[string]*Question{}
	seen := map[string]bool{}

	for {
		var doc questionDocument
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, domain.Authorf("", "the question source does not parse: %v", err)
		}

		for _, q := range doc.Questions {
			if err := q.Validate(); err != nil {
				return nil, err
			}
			if err := register(ns, byName, seen, q); err != nil {
				return nil, err
			}
		}

		for _, v := range doc.Variants {
			base, ok := byName[v.Base]
			if !ok {
				return nil, domain.Authorf(v.Name, "the variant derives from an unknown question %q", v.Base)
			}
			derived, err := base.Variant(v.Name, v.Params)
			if err != nil {
				return nil, err
			}
			if err := register(ns, byName, seen, derived); err != nil {
				return nil, err
			}
		}

		for _, gd := range doc.Groups {
			g := &Group{Name: gd.Name, Pick: gd.Pick}
			for _, member := range gd.Members {
				q, ok := byName[member]
				if !ok {
					return nil, domain.Authorf(gd.Name, "the group references %q: %w", member, domain.ErrUnknownMember)
				}
				g.Members = append(g.Members, q)
			}
			if err := g.Validate(); err != nil {
				return nil, err
			}
			if seen[g.Name] {
				return nil, domain.Authorf(g.Name, "%q: %w", g.Name, domain.ErrDuplicateName)
			}
			seen[g.Name] = true
			ns.Groups = append(ns.Groups, g)
		}
	}

	return ns, nil
}

func register(ns *Namespace, byName map[string]*Question, seen map[string]bool, q *Question) error {
	if seen[q.Name] {
		return domain.Authorf(q.Name, "%q: %w", q.Name, domain.ErrDuplicateName)
	}
	seen[q.Name] = true
	byName[q.Name] = q
	ns.Questions = append(ns.Questions, q)
	return nil
}
