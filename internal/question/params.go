package question

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Param is one declared question parameter. Plain parameters are rendered
// verbatim into the question text; all others are rendered as code spans.
type Param struct {
	Name  string
	Value any
	Plain bool
}

// Params is the ordered parameter list of a question. Order matters twice:
// it is preserved in variant derivation and it keeps rendered text stable
// across loads.
type Params []Param

type paramValue struct {
	value any
	plain bool
}

// Get returns the value of the named parameter.
func (ps Params) Get(name string) (any, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// merge returns a copy of ps with overrides applied: existing parameters
// keep their position and are replaced in value, new ones are appended in
// the order given.
func (ps Params) merge(overrides Params) Params {
	merged := append(Params(nil), ps...)
	for _, o := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].Name == o.Name {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return merged
}

// UnmarshalYAML decodes a parameter mapping preserving declaration order.
// Each value is either a bare scalar/sequence, or a `{value: ..., plain:
// true}` mapping when the author wants to control rendering.
func (ps *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("params must be a mapping, got %s", nodeKindName(node.Kind))
	}
	out := make(Params, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		p := Param{Name: key.Value}
		if isValueHint(val) {
			var hint struct {
				Value any  `yaml:"value"`
				Plain bool `yaml:"plain"`
			}
			if err := val.Decode(&hint); err != nil {
				return fmt.Errorf("param %s: %w", key.Value, err)
			}
			p.Value = hint.Value
			p.Plain = hint.Plain
		} else {
			if err := val.Decode(&p.Value); err != nil {
				return fmt.Errorf("param %s: %w", key.Value, err)
			}
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

// isValueHint reports whether a mapping node is the explicit value/plain
// form rather than an arbitrary mapping value.
func isValueHint(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	hasValue := false
	for i := 0; i < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "value":
			hasValue = true
		case "plain":
		default:
			return false
		}
	}
	return hasValue
}

// Annotation declares one argument (or the return) of the function a
// question expects: a name and a type keyword (int, float, string, bool,
// list, map, none or any).
type Annotation struct {
	Name string
	Type string
}

// Annotations is the ordered annotation list. Argument order is the order
// of declaration; the "return" entry may appear anywhere.
type Annotations []Annotation

// Get returns the type of the named annotation.
func (as Annotations) Get(name string) (string, bool) {
	for _, a := range as {
		if a.Name == name {
			return a.Type, true
		}
	}
	return "", false
}

// UnmarshalYAML decodes an annotation mapping preserving declaration order.
func (as *Annotations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("annotations must be a mapping, got %s", nodeKindName(node.Kind))
	}
	out := make(Annotations, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("annotation %s: the type must be a scalar", key.Value)
		}
		out = append(out, Annotation{Name: key.Value, Type: val.Value})
	}
	*as = out
	return nil
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
