package corpus

import (
	"regexp"
	"strings"
)

// Fence info strings look like:
//
//	```go {@dbl-a1b2}
//	```yaml {question}
//
// The braced attribute list carries the block's tags, separated by commas
// or spaces.
var fencePattern = regexp.MustCompile("^(```+|~~~+)\\s*([A-Za-z0-9_+-]*)\\s*(\\{([^}]*)\\})?\\s*$")

// Parse splits markdown content into an ordered block sequence.
func Parse(path, content string) *Document {
	doc := &Document{Path: path}

	lines := strings.Split(content, "\n")
	var prose []string
	var code []string
	var fence string
	var lang string
	var tags []string
	inCode := false

	flushProse := func() {
		text := strings.TrimSpace(strings.Join(prose, "\n"))
		prose = prose[:0]
		if text != "" {
			doc.Blocks = append(doc.Blocks, Block{Type: BlockProse, Text: text})
		}
	}

	for _, line := range lines {
		if inCode {
			if strings.HasPrefix(strings.TrimSpace(line), fence) {
				doc.Blocks = append(doc.Blocks, Block{
					Type: BlockCode,
					Lang: lang,
					Tags: tags,
					Text: strings.Join(code, "\n"),
				})
				code = nil
				inCode = false
				continue
			}
			code = append(code, line)
			continue
		}

		if m := fencePattern.FindStringSubmatch(line); m != nil {
			flushProse()
			fence = m[1]
			lang = m[2]
			tags = splitTags(m[4])
			inCode = true
			continue
		}
		prose = append(prose, line)
	}

	// An unterminated fence still yields a block; truncated documents are
	// better surfaced as a bad block than silently dropped.
	if inCode {
		doc.Blocks = append(doc.Blocks, Block{Type: BlockCode, Lang: lang, Tags: tags, Text: strings.Join(code, "\n")})
	} else {
		flushProse()
	}

	return doc
}

// ParseSubmission interprets submitted source. Markdown submissions are
// parsed block by block; anything else is treated as a single Go code block
// whose tags come from its comments.
func ParseSubmission(source string) *Document {
	if strings.Contains(source, "```") || strings.Contains(source, "~~~") {
		doc := Parse("submission", source)
		if len(doc.Blocks) > 0 {
			for _, b := range doc.Blocks {
				if b.Type == BlockCode {
					return doc
				}
			}
		}
	}
	return &Document{
		Path: "submission",
		Blocks: []Block{{
			Type: BlockCode,
			Lang: "go",
			Text: source,
		}},
	}
}

func splitTags(attrs string) []string {
	fields := strings.FieldsFunc(attrs, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	var tags []string
	for _, f := range fields {
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
