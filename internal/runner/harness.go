package runner

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// ResultFile is the sidecar file the harness writes its envelope to inside
// the working directory.
const ResultFile = "tb_result.json"

const (
	wrapPrefix = "package main\n\nfunc _cell() {\n"
	wrapSuffix = "\n}\n"
)

// Stdlib packages a fragment artifact may reference without writing its own
// import block. Only packages actually referenced are injected.
var injectable = []string{
	"bytes", "errors", "fmt", "maps", "math", "slices", "sort",
	"strconv", "strings", "time", "unicode",
}

// envelope is the JSON document the harness writes to ResultFile.
type envelope struct {
	Value any    `json:"value"`
	Void  bool   `json:"void"`
	Fail  string `json:"fail,omitempty"`
}

// BuildHarness turns a job into the set of files for a `go run .` sandbox
// invocation.
func BuildHarness(job Job) (map[string]string, error) {
	var mainSrc string
	var err error
	switch {
	case job.Call != nil:
		mainSrc, err = buildCallHarness(job)
	case job.Result != "":
		mainSrc, err = buildCellHarness(job)
	default:
		return nil, fmt.Errorf("job needs either a call or a result expression")
	}
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"main.go": mainSrc,
		"go.mod":  "module sandbox\n\ngo 1.25\n",
	}, nil
}

// buildCallHarness assembles a harness that calls a function the artifact
// defines and emits its return value.
func buildCallHarness(job Job) (string, error) {
	body, hasPackage := stripPackageClause(job.Source)

	args := make([]string, len(job.Call.Args))
	for i, a := range job.Call.Args {
		lit, err := renderValue(a)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = lit
	}
	call := fmt.Sprintf("%s(%s)", job.Call.Name, strings.Join(args, ", "))

	var b strings.Builder
	b.WriteString("package main\n\n")
	b.WriteString(harnessImports(!job.WantValue))
	if !hasPackage {
		b.WriteString(referencedImports(body))
	}
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(emitHelpers())
	b.WriteString("func main() {\n")
	if job.WantValue {
		fmt.Fprintf(&b, "\t__tbEmit(%s, false)\n", call)
	} else {
		fmt.Fprintf(&b, "\tif __tbreflect.TypeOf(%s).NumOut() != 0 {\n", job.Call.Name)
		b.WriteString("\t\t__tbFail(\"the function returned a value where none was declared\")\n")
		b.WriteString("\t}\n")
		fmt.Fprintf(&b, "\t%s\n", call)
		b.WriteString("\t__tbEmit(nil, true)\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// buildCellHarness assembles a harness that re-executes a statement
// fragment under the job's bindings and emits the result expression.
func buildCellHarness(job Job) (string, error) {
	literals := make(map[string]string, len(job.Bindings))
	for name, v := range job.Bindings {
		lit, err := renderValue(v)
		if err != nil {
			return "", fmt.Errorf("binding %s: %w", name, err)
		}
		literals[name] = lit
	}

	body, err := rewriteAssignments(job.Source, literals)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	b.WriteString(harnessImports(false))
	b.WriteString(referencedImports(wrapPrefix + body + wrapSuffix))
	b.WriteString(emitHelpers())
	b.WriteString("func main() {\n")
	b.WriteString(indent(body))
	fmt.Fprintf(&b, "\t__tbEmit(%s, false)\n", job.Result)
	b.WriteString("}\n")
	return b.String(), nil
}

func harnessImports(needReflect bool) string {
	var b strings.Builder
	b.WriteString("import (\n")
	b.WriteString("\t__tbjson \"encoding/json\"\n")
	b.WriteString("\t__tbos \"os\"\n")
	if needReflect {
		b.WriteString("\t__tbreflect \"reflect\"\n")
	}
	b.WriteString(")\n\n")
	return b.String()
}

func emitHelpers() string {
	return `func __tbEmit(v any, void bool) {
	f, err := __tbos.Create("` + ResultFile + `")
	if err != nil {
		__tbos.Exit(3)
	}
	__tbjson.NewEncoder(f).Encode(map[string]any{"value": v, "void": void})
	f.Close()
}

func __tbFail(msg string) {
	f, err := __tbos.Create("` + ResultFile + `")
	if err != nil {
		__tbos.Exit(3)
	}
	__tbjson.NewEncoder(f).Encode(map[string]any{"fail": msg})
	f.Close()
	__tbos.Exit(0)
}

`
}

// referencedImports injects imports for whitelisted stdlib packages the
// fragment refers to. Artifacts with a package clause write their own
// imports and are never passed here.
func referencedImports(wrapped string) string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "ref.go", wrapped, 0)
	if err != nil {
		// Try as declarations instead of statements.
		file, err = parser.ParseFile(fset, "ref.go", "package main\n\n"+wrapped, 0)
		if err != nil {
			return ""
		}
	}

	declared := map[string]bool{}
	used := map[string]bool{}
	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					declared[id.Name] = true
				}
			}
		case *ast.SelectorExpr:
			if id, ok := n.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
		}
		return true
	})

	var needed []string
	for _, pkg := range injectable {
		if used[pkg] && !declared[pkg] {
			needed = append(needed, pkg)
		}
	}
	if len(needed) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("import (\n")
	for _, pkg := range needed {
		fmt.Fprintf(&b, "\t%q\n", pkg)
	}
	b.WriteString(")\n\n")
	return b.String()
}

// rewriteAssignments replaces the right-hand side of each top-level
// assignment to a bound name with the bound literal, so the binding wins
// over whatever value the artifact assigned itself.
func rewriteAssignments(source string, literals map[string]string) (string, error) {
	if len(literals) == 0 {
		return source, nil
	}

	wrapped := wrapPrefix + source + wrapSuffix
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "cell.go", wrapped, 0)
	if err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}

	var body *ast.BlockStmt
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "_cell" {
			body = fn.Body
		}
	}
	if body == nil {
		return "", fmt.Errorf("parse cell: wrapper body missing")
	}

	type splice struct {
		start, end int
		text       string
	}
	var splices []splice

	record := func(expr ast.Expr, name string) {
		start := fset.Position(expr.Pos()).Offset - len(wrapPrefix)
		end := fset.Position(expr.End()).Offset - len(wrapPrefix)
		splices = append(splices, splice{start, end, literals[name]})
	}

	for _, stmt := range body.List {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			if len(s.Lhs) != len(s.Rhs) {
				continue // multi-value call assignment; nothing to splice
			}
			for i, lhs := range s.Lhs {
				id, ok := lhs.(*ast.Ident)
				if !ok {
					continue
				}
				if _, bound := literals[id.Name]; bound {
					record(s.Rhs[i], id.Name)
				}
			}
		case *ast.DeclStmt:
			gd, ok := s.Decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || len(vs.Values) != len(vs.Names) {
					continue
				}
				for i, name := range vs.Names {
					if _, bound := literals[name.Name]; bound {
						record(vs.Values[i], name.Name)
					}
				}
			}
		}
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })

	var b strings.Builder
	prev := 0
	for _, sp := range splices {
		b.WriteString(source[prev:sp.start])
		b.WriteString(sp.text)
		prev = sp.end
	}
	b.WriteString(source[prev:])
	return b.String(), nil
}

// renderValue renders a plain data value as a Go literal.
func renderValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "nil", nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return strconv.Quote(v), nil
	case json.Number:
		return v.String(), nil
	case []any:
		return renderSlice(v)
	case map[string]any:
		return renderMap(v)
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func renderSlice(vs []any) (string, error) {
	elems := make([]string, len(vs))
	for i, v := range vs {
		lit, err := renderValue(v)
		if err != nil {
			return "", err
		}
		elems[i] = lit
	}
	return fmt.Sprintf("[]%s{%s}", elemType(vs), strings.Join(elems, ", ")), nil
}

func renderMap(m map[string]any) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := make([]any, 0, len(m))
	pairs := make([]string, 0, len(m))
	for _, k := range keys {
		vals = append(vals, m[k])
		lit, err := renderValue(m[k])
		if err != nil {
			return "", err
		}
		pairs = append(pairs, fmt.Sprintf("%s: %s", strconv.Quote(k), lit))
	}
	return fmt.Sprintf("map[string]%s{%s}", elemType(vals), strings.Join(pairs, ", ")), nil
}

// elemType picks the element type of a composite literal: the concrete Go
// type when all elements agree, any otherwise.
func elemType(vs []any) string {
	t := ""
	for _, v := range vs {
		var et string
		switch v.(type) {
		case bool:
			et = "bool"
		case int, int64:
			et = "int"
		case float64, json.Number:
			et = "float64"
		case string:
			et = "string"
		default:
			return "any"
		}
		if t == "" {
			t = et
		} else if t != et {
			return "any"
		}
	}
	if t == "" {
		return "any"
	}
	return t
}

// stripPackageClause removes a leading package clause so the artifact can
// be spliced into the harness's package main.
func stripPackageClause(source string) (body string, hadPackage bool) {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "package ") {
			lines[i] = ""
			return strings.Join(lines, "\n"), true
		}
		break
	}
	return source, false
}

func indent(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = "\t" + line
		}
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
