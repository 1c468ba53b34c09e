package extract

import (
	"go/ast"
	"go/token"
)

// Syntax kind identifiers. Questions declare required and forbidden syntax
// with these names, so they are written for humans, not for people who know
// the go/ast type zoo.
const (
	KindLoop             = "loop"
	KindConditional      = "conditional"
	KindSwitch           = "switch"
	KindSelect           = "select"
	KindFunction         = "function"
	KindFunctionLiteral  = "function-literal"
	KindGoroutine        = "goroutine"
	KindChannel          = "channel"
	KindDefer            = "defer"
	KindReturn           = "return"
	KindCall             = "call"
	KindAssignment       = "assignment"
	KindVar              = "var"
	KindConst            = "const"
	KindImport           = "import"
	KindTypeDecl         = "type-declaration"
	KindStruct           = "struct"
	KindInterface        = "interface"
	KindMap              = "map"
	KindSlice            = "slice"
	KindSlicing          = "slicing"
	KindIndex            = "index"
	KindCompositeLiteral = "composite-literal"
	KindTypeAssertion    = "type-assertion"
	KindBreak            = "break"
	KindContinue         = "continue"
	KindGoto             = "goto"
	KindLabel            = "label"
)

var knownKinds = map[string]bool{
	KindLoop: true, KindConditional: true, KindSwitch: true, KindSelect: true,
	KindFunction: true, KindFunctionLiteral: true, KindGoroutine: true,
	KindChannel: true, KindDefer: true, KindReturn: true, KindCall: true,
	KindAssignment: true, KindVar: true, KindConst: true, KindImport: true,
	KindTypeDecl: true, KindStruct: true, KindInterface: true, KindMap: true,
	KindSlice: true, KindSlicing: true, KindIndex: true,
	KindCompositeLiteral: true, KindTypeAssertion: true, KindBreak: true,
	KindContinue: true, KindGoto: true, KindLabel: true,
}

// KnownKind reports whether name is a recognized syntax kind identifier.
func KnownKind(name string) bool { return knownKinds[name] }

// nodeKinds returns the kind identifiers contributed by a single AST node.
// Most nodes contribute one kind; a few contribute none.
func nodeKinds(n ast.Node) []string {
	switch n := n.(type) {
	case *ast.ForStmt, *ast.RangeStmt:
		return []string{KindLoop}
	case *ast.IfStmt:
		return []string{KindConditional}
	case *ast.SwitchStmt, *ast.TypeSwitchStmt:
		return []string{KindSwitch, KindConditional}
	case *ast.SelectStmt:
		return []string{KindSelect}
	case *ast.FuncDecl:
		return []string{KindFunction}
	case *ast.FuncLit:
		return []string{KindFunctionLiteral}
	case *ast.GoStmt:
		return []string{KindGoroutine}
	case *ast.ChanType:
		return []string{KindChannel}
	case *ast.DeferStmt:
		return []string{KindDefer}
	case *ast.ReturnStmt:
		return []string{KindReturn}
	case *ast.CallExpr:
		return []string{KindCall}
	case *ast.AssignStmt:
		return []string{KindAssignment}
	case *ast.GenDecl:
		switch n.Tok {
		case token.VAR:
			return []string{KindVar}
		case token.CONST:
			return []string{KindConst}
		case token.IMPORT:
			return []string{KindImport}
		case token.TYPE:
			return []string{KindTypeDecl}
		}
	case *ast.StructType:
		return []string{KindStruct}
	case *ast.InterfaceType:
		return []string{KindInterface}
	case *ast.MapType:
		return []string{KindMap}
	case *ast.ArrayType:
		return []string{KindSlice}
	case *ast.SliceExpr:
		return []string{KindSlicing}
	case *ast.IndexExpr:
		return []string{KindIndex}
	case *ast.CompositeLit:
		return []string{KindCompositeLiteral}
	case *ast.TypeAssertExpr:
		return []string{KindTypeAssertion}
	case *ast.BranchStmt:
		switch n.Tok {
		case token.BREAK:
			return []string{KindBreak}
		case token.CONTINUE:
			return []string{KindContinue}
		case token.GOTO:
			return []string{KindGoto}
		}
	case *ast.LabeledStmt:
		return []string{KindLabel}
	}
	return nil
}
