// Package corpus models the documents a test bank is built from and that
// students submit: markdown files whose fenced code blocks carry tag
// attributes. A raw Go file is also accepted as a degenerate single-block
// document whose tags come from its comments.
package corpus

import (
	"strings"

	"github.com/felixgeelhaar/testbank/internal/extract"
)

// QuestionTag is the sentinel tag marking a block as question-defining
// content. Blocks carrying it hold YAML question definitions, not Go code.
const QuestionTag = "question"

// BlockType distinguishes fenced code blocks from surrounding prose.
type BlockType string

const (
	BlockCode  BlockType = "code"
	BlockProse BlockType = "prose"
)

// Block is one ordered element of a document.
type Block struct {
	Type BlockType
	Lang string
	Tags []string
	Text string
}

// HasTag reports whether the block carries the given tag, either in its
// fence attributes or, for Go blocks, in a source comment.
func (b *Block) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	if b.Type == BlockCode && b.Lang != "yaml" {
		for _, t := range extract.CommentTags(b.Text) {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// Document is an ordered sequence of blocks read from one corpus file or
// one submission.
type Document struct {
	Path   string
	Blocks []Block
}

// QuestionSource concatenates the text of every question-defining code
// block, in document order, separated by a blank line.
func (d *Document) QuestionSource() string {
	var parts []string
	for _, b := range d.Blocks {
		if b.Type != BlockCode {
			continue
		}
		for _, t := range b.Tags {
			if t == QuestionTag {
				parts = append(parts, b.Text)
				break
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// FindBlock returns the first code block carrying any of the given tags.
func (d *Document) FindBlock(tags ...string) *Block {
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Type != BlockCode {
			continue
		}
		for _, tag := range tags {
			if b.HasTag(tag) {
				return b
			}
		}
	}
	return nil
}
