package question

import (
	"iter"
	"math/rand/v2"

	"github.com/felixgeelhaar/testbank/internal/domain"
)

// Group is an ordered collection of questions published under a shared
// name, typically so an exam can draw a subset from a pool of equivalent
// variants.
type Group struct {
	Name    string
	Pick    int
	Members []*Question
}

// Validate checks the group and every member.
func (g *Group) Validate() error {
	if g.Name == "" || !nameRe.MatchString(g.Name) {
		return domain.Authorf(g.Name, "the group needs a valid name, got %q", g.Name)
	}
	if len(g.Members) == 0 {
		return domain.Authorf(g.Name, "the group has no members")
	}
	if g.Pick < 0 || g.Pick > len(g.Members) {
		return domain.Authorf(g.Name, "the group picks %d of %d members", g.Pick, len(g.Members))
	}
	for _, q := range g.Members {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// All iterates the members in declaration order. The sequence is
// restartable: ranging over it twice yields the members twice.
func (g *Group) All() iter.Seq[*Question] {
	return func(yield func(*Question) bool) {
		for _, q := range g.Members {
			if !yield(q) {
				return
			}
		}
	}
}

// Draw picks the group's configured number of members uniformly without
// replacement. Every call draws independently; a Pick of zero means the
// whole group, in a shuffled order.
func (g *Group) Draw() []*Question {
	n := g.Pick
	if n == 0 {
		n = len(g.Members)
	}
	perm := rand.Perm(len(g.Members))
	picked := make([]*Question, 0, n)
	for _, i := range perm[:n] {
		picked = append(picked, g.Members[i])
	}
	return picked
}
