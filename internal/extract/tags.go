package extract

import "regexp"

var tagPattern = regexp.MustCompile(`@[A-Za-z][A-Za-z0-9_-]*`)

// CommentTags returns every "@name" marker found in the comments of a Go
// artifact, in order of appearance. It is a lexical scan, so it works on
// source that does not parse; resolution must be able to find a tag before
// syntax checking runs.
func CommentTags(source string) []string {
	var tags []string
	seen := map[string]bool{}

	add := func(text string) {
		for _, m := range tagPattern.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				tags = append(tags, m)
			}
		}
	}

	for i := 0; i < len(source); i++ {
		switch {
		case source[i] == '"' || source[i] == '\'' || source[i] == '`':
			i = skipString(source, i)
		case source[i] == '/' && i+1 < len(source) && source[i+1] == '/':
			end := i
			for end < len(source) && source[end] != '\n' {
				end++
			}
			add(source[i:end])
			i = end
		case source[i] == '/' && i+1 < len(source) && source[i+1] == '*':
			end := len(source)
			for j := i + 2; j+1 < len(source); j++ {
				if source[j] == '*' && source[j+1] == '/' {
					end = j + 2
					break
				}
			}
			add(source[i:end])
			i = end - 1
		}
	}
	return tags
}

// skipString advances past a string or rune literal starting at i and
// returns the index of its closing quote.
func skipString(source string, i int) int {
	quote := source[i]
	for j := i + 1; j < len(source); j++ {
		switch {
		case quote != '`' && source[j] == '\\':
			j++
		case source[j] == quote:
			return j
		case quote != '`' && source[j] == '\n':
			return j // unterminated; stop at line end
		}
	}
	return len(source) - 1
}
