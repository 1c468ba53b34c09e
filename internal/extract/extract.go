// Package extract parses Go source artifacts and reports structured facts
// about them: which syntax kinds appear, which top-level functions and types
// are defined, and which names are assigned. Artifacts may be complete files,
// declaration fragments without a package clause, or bare statement sequences
// (the body of a "cell" submission).
package extract

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// Facts describes the statically observable structure of an artifact.
type Facts struct {
	Kinds       map[string]bool
	Functions   map[string]FuncFact
	Types       map[string]TypeFact
	Assignments map[string]bool
	Tags        map[string]bool
}

// FuncFact describes a top-level function definition.
type FuncFact struct {
	Args   []string
	HasDoc bool
}

// TypeFact describes a top-level type definition.
type TypeFact struct {
	HasDoc bool
}

// Mode records how an artifact had to be wrapped before it parsed.
type Mode int

const (
	// ModeFile is a complete file with a package clause.
	ModeFile Mode = iota
	// ModeDecls is a sequence of top-level declarations.
	ModeDecls
	// ModeStmts is a bare statement sequence (a cell body).
	ModeStmts
)

const (
	declPrefix = "package main\n\n"
	stmtPrefix = "package main\n\nfunc _cell() {\n"
	stmtSuffix = "\n}\n"
)

// Parse extracts facts from a Go artifact. The artifact may be a full file,
// a declaration fragment, or a statement fragment; Parse tries each form in
// turn. The returned error is a plain syntax error; callers decide whether
// it is the student's fault or the author's.
func Parse(source string) (*Facts, error) {
	file, mode, err := parseFragment(source)
	if err != nil {
		return nil, err
	}

	f := &Facts{
		Kinds:       map[string]bool{},
		Functions:   map[string]FuncFact{},
		Types:       map[string]TypeFact{},
		Assignments: map[string]bool{},
		Tags:        map[string]bool{},
	}

	for _, tag := range CommentTags(source) {
		f.Tags[tag] = true
	}

	if mode == ModeStmts {
		f.collectStmts(file)
		return f, nil
	}
	f.collectDecls(file)
	return f, nil
}

// parseFragment parses an artifact, wrapping it as needed.
func parseFragment(source string) (*ast.File, Mode, error) {
	fset := token.NewFileSet()

	if strings.HasPrefix(strings.TrimSpace(stripLeadingComments(source)), "package ") {
		file, err := parser.ParseFile(fset, "artifact.go", source, parser.ParseComments)
		if err != nil {
			return nil, ModeFile, fmt.Errorf("parse artifact: %w", err)
		}
		return file, ModeFile, nil
	}

	file, declErr := parser.ParseFile(fset, "artifact.go", declPrefix+source, parser.ParseComments)
	if declErr == nil {
		return file, ModeDecls, nil
	}

	file, stmtErr := parser.ParseFile(fset, "artifact.go", stmtPrefix+source+stmtSuffix, parser.ParseComments)
	if stmtErr == nil {
		return file, ModeStmts, nil
	}

	// Neither form parsed; the declaration error usually points closest to
	// the student's actual mistake.
	return nil, ModeDecls, fmt.Errorf("parse artifact: %w", declErr)
}

// collectDecls gathers facts from a file or declaration fragment.
func (f *Facts) collectDecls(file *ast.File) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil {
				break // methods are not top-level callables for grading
			}
			f.Functions[d.Name.Name] = FuncFact{
				Args:   paramNames(d.Type.Params),
				HasDoc: d.Doc != nil,
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					f.Types[s.Name.Name] = TypeFact{HasDoc: d.Doc != nil || s.Doc != nil}
				case *ast.ValueSpec:
					if d.Tok == token.VAR {
						for _, name := range s.Names {
							f.Assignments[name.Name] = true
						}
					}
				}
			}
		}
		f.walkKinds(decl)
	}
}

// collectStmts gathers facts from the synthetic wrapper around a statement
// fragment. The wrapper function itself must not leak into the kind set.
func (f *Facts) collectStmts(file *ast.File) {
	var body *ast.BlockStmt
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "_cell" {
			body = fn.Body
			break
		}
	}
	if body == nil {
		return
	}

	for _, stmt := range body.List {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			for _, lhs := range s.Lhs {
				if ident, ok := lhs.(*ast.Ident); ok && ident.Name != "_" {
					f.Assignments[ident.Name] = true
				}
			}
		case *ast.DeclStmt:
			if gd, ok := s.Decl.(*ast.GenDecl); ok && gd.Tok == token.VAR {
				for _, spec := range gd.Specs {
					if vs, ok := spec.(*ast.ValueSpec); ok {
						for _, name := range vs.Names {
							f.Assignments[name.Name] = true
						}
					}
				}
			}
		}
		f.walkKinds(stmt)
	}
}

// walkKinds records every syntax kind reachable from n.
func (f *Facts) walkKinds(n ast.Node) {
	ast.Inspect(n, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		for _, k := range nodeKinds(n) {
			f.Kinds[k] = true
		}
		return true
	})
}

func paramNames(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var names []string
	for _, field := range fields.List {
		if len(field.Names) == 0 {
			names = append(names, "_")
			continue
		}
		for _, name := range field.Names {
			names = append(names, name.Name)
		}
	}
	return names
}

// stripLeadingComments skips comments and blank lines so that the package
// clause probe sees the first real token.
func stripLeadingComments(source string) string {
	s := source
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "//"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
			} else {
				return ""
			}
		default:
			return s
		}
	}
}
