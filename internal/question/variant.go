package question

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/testbank/internal/domain"
)

// Variant derives a new question from q with the given parameter overrides.
// The base is never mutated. When name is empty a deterministic one is
// built from the root question's name and a fingerprint of the merged
// parameter assignments, so derivation depends only on where the chain
// started and what the parameters ended up as: re-deriving with the same
// overrides reproduces the same identity, even from an already-derived
// question.
func (q *Question) Variant(name string, overrides Params) (*Question, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	v := q.clone()
	v.Params = q.Params.merge(overrides)
	root := q.base
	if root == "" {
		root = q.Name
	}
	v.base = root
	if name != "" {
		v.Name = name
	} else {
		v.Name = fmt.Sprintf("%s_%s", root, paramFingerprint(root, v.Params))
	}

	if err := v.Validate(); err != nil {
		return nil, domain.Authorf(q.Name, "variant %s is invalid: %w", v.Name, err)
	}
	return v, nil
}

// paramFingerprint hashes the full parameter assignment in a canonical
// order so the derived name does not depend on how the author listed the
// overrides, or on intermediate derivations that changed nothing.
func paramFingerprint(root string, params Params) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s:%v", p.Name, p.Value))
	}
	sort.Strings(parts)

	h := sha1.New()
	h.Write([]byte(root))
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:4]
}
