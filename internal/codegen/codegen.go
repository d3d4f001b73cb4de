// Package codegen lowers a checked AgentScript AST to the jsast.Module
// target (§4.6): one JS statement/expression per AG construct, per the
// lowering table, with DSL blocks dispatched through internal/dslfw's
// handler registry. Modeled on the teacher's linker/printer split: this
// package only builds the JS AST, internal/printer serializes it.
package codegen

import (
	"fmt"
	"strconv"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/dslfw"
	"github.com/agentscript-lang/agentscript/internal/jsast"
	"github.com/agentscript-lang/agentscript/internal/logger"
)

type Generator struct {
	log      *logger.Log
	registry *dslfw.Registry

	// externs maps a referenced-or-not @js-annotated extern's AG name to
	// its JsAnnotation, so only actually-referenced externs contribute an
	// import (§4.6 "Import rules").
	externs    map[string]ast.JsAnnotation
	referenced map[string]bool
}

func New(log *logger.Log, registry *dslfw.Registry) *Generator {
	return &Generator{
		log:        log,
		registry:   registry,
		externs:    map[string]ast.JsAnnotation{},
		referenced: map[string]bool{},
	}
}

// Generate lowers mod to a jsast.Module. Per §4.6's failure semantics, the
// driver (internal/compiler) is responsible for refusing to call Generate
// at all when the checker log already has errors.
func (g *Generator) Generate(mod *ast.Module) *jsast.Module {
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.ExternFnDecl:
			if d.Js.Module != nil {
				g.externs[d.Name] = d.Js
			}
		case *ast.ExternStructDecl:
			if d.Js.Module != nil {
				g.externs[d.Name] = d.Js
			}
		case *ast.ExternTypeDecl:
			if d.Js.Module != nil {
				g.externs[d.Name] = d.Js
			}
		}
	}

	out := &jsast.Module{}
	var dslImports []jsast.Import
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.Import, *ast.StructDecl, *ast.EnumDecl, *ast.TypeAlias,
			*ast.ExternFnDecl, *ast.ExternStructDecl, *ast.ExternTypeDecl:
			// erased (§3 invariant: "Extern declarations are erased at
			// codegen time; they contribute zero runtime statements but
			// may contribute imports" - handled via g.externs above)
		case *ast.VarDecl:
			out.Stmts = append(out.Stmts, g.lowerTopVarDecl(d))
		case *ast.FnDecl:
			out.Stmts = append(out.Stmts, g.lowerFnDecl(d))
		case *ast.ExprStmtItem:
			out.Stmts = append(out.Stmts, &jsast.SExpr{Value: g.translateExpr(d.Expr)})
		case *ast.DslBlock:
			stmts, imports, err := g.registry.Dispatch(d, dslfw.NewContext(g))
			if err != nil {
				g.log.AddError(item.Span, err.Error())
				out.Stmts = append(out.Stmts, &jsast.SRaw{Text: fmt.Sprintf("// DSL block %q failed: %s", d.Name, err.Error())})
				continue
			}
			out.Stmts = append(out.Stmts, stmts...)
			dslImports = append(dslImports, imports...)
		}
	}

	out.Imports = g.buildImports(dslImports)
	return out
}

// buildImports merges referenced @js externs (grouped by module, per
// §4.6) with whatever imports DSL handlers contributed, de-duplicating by
// module path.
func (g *Generator) buildImports(dslImports []jsast.Import) []jsast.Import {
	byModule := map[string][]jsast.ImportName{}
	var order []string

	addName := func(module string, name jsast.ImportName) {
		if _, ok := byModule[module]; !ok {
			order = append(order, module)
		}
		for _, existing := range byModule[module] {
			if existing.Name == name.Name && existing.Alias == name.Alias {
				return
			}
		}
		byModule[module] = append(byModule[module], name)
	}

	for name, js := range g.externs {
		if !g.referenced[name] {
			continue
		}
		jsName := name
		var alias string
		if js.JsName != nil {
			jsName = *js.JsName
			alias = name
		}
		if alias != "" {
			addName(*js.Module, jsast.ImportName{Name: jsName, Alias: alias})
		} else {
			addName(*js.Module, jsast.ImportName{Name: jsName})
		}
	}
	for _, imp := range dslImports {
		for _, n := range imp.Names {
			addName(imp.Path, n)
		}
	}

	out := make([]jsast.Import, 0, len(order))
	for _, m := range order {
		out = append(out, jsast.Import{Path: m, Names: byModule[m]})
	}
	return out
}

func (g *Generator) lowerTopVarDecl(d *ast.VarDecl) jsast.Stmt {
	init := g.translateExpr(d.Init)
	if d.Kind == ast.DeclMut {
		return &jsast.SLet{Name: d.Name, Init: init}
	}
	return &jsast.SConst{Name: d.Name, Init: init}
}

func (g *Generator) lowerFnDecl(d *ast.FnDecl) jsast.Stmt {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.Name
	}
	return &jsast.SFunction{
		Name:     d.Name,
		Exported: d.Pub,
		Async:    d.Async,
		Params:   params,
		Body:     g.translateBlockReturn(d.Body),
	}
}

// ---- dslfw.Translator ------------------------------------------------------

func (g *Generator) TranslateExpr(e ast.Expr) jsast.Expr    { return g.translateExpr(e) }
func (g *Generator) TranslateBlock(b ast.Block) []jsast.Stmt { return g.translateBlockReturn(b) }

// ---- Blocks ----------------------------------------------------------------

// translateBlockReturn lowers a block used in a value-producing position
// (fn body, lambda body, match arm body): its tail expression, if any,
// becomes a "return" (§4.6's "implicit return wraps last expression").
func (g *Generator) translateBlockReturn(b ast.Block) []jsast.Stmt {
	stmts := g.translateStmts(b.Stmts)
	if b.Tail != nil {
		stmts = append(stmts, &jsast.SReturn{Value: g.translateExpr(*b.Tail)})
	}
	return stmts
}

// translateBlockStmt lowers a block used as a plain statement sequence
// (if/while/for/try bodies): a tail expression is a bare expression
// statement, since such a block is not itself a function's value.
func (g *Generator) translateBlockStmt(b ast.Block) []jsast.Stmt {
	stmts := g.translateStmts(b.Stmts)
	if b.Tail != nil {
		stmts = append(stmts, &jsast.SExpr{Value: g.translateExpr(*b.Tail)})
	}
	return stmts
}

// blockToExpr implements §4.6's "Block-to-expression": a tail-only block
// collapses to that expression directly, otherwise an IIFE.
func (g *Generator) blockToExpr(b ast.Block) jsast.Expr {
	if len(b.Stmts) == 0 && b.Tail != nil {
		return g.translateExpr(*b.Tail)
	}
	return &jsast.EIIFE{Stmts: g.translateBlockReturn(b)}
}

func (g *Generator) translateStmts(stmts []ast.Stmt) []jsast.Stmt {
	out := make([]jsast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, g.translateStmt(s))
	}
	return out
}

func (g *Generator) translateStmt(stmt ast.Stmt) jsast.Stmt {
	switch d := stmt.Data.(type) {
	case *ast.SVarDecl:
		init := g.translateExpr(d.Decl.Init)
		if d.Decl.Kind == ast.DeclMut {
			return &jsast.SLet{Name: d.Decl.Name, Init: init}
		}
		return &jsast.SConst{Name: d.Decl.Name, Init: init}
	case *ast.SReturn:
		if d.Value == nil {
			return &jsast.SReturn{}
		}
		return &jsast.SReturn{Value: g.translateExpr(*d.Value)}
	case *ast.SExpr:
		return &jsast.SExpr{Value: g.translateExpr(d.Value)}
	case *ast.SIf:
		var elseStmts []jsast.Stmt
		if d.Else != nil {
			elseStmts = g.translateBlockStmt(*d.Else)
		}
		return &jsast.SIf{Cond: g.translateExpr(d.Cond), Then: g.translateBlockStmt(d.Then), Else: elseStmts}
	case *ast.SWhile:
		return &jsast.SWhile{Cond: g.translateExpr(d.Cond), Body: g.translateBlockStmt(d.Body)}
	case *ast.SFor:
		return &jsast.SForOf{Binding: d.Binding, Iter: g.translateExpr(d.Iter), Body: g.translateBlockStmt(d.Body)}
	case *ast.SAssign:
		return &jsast.SAssign{Target: g.translateExpr(d.Target), Op: assignOp(d.Op), Value: g.translateExpr(d.Value)}
	case *ast.STry:
		return &jsast.STry{
			Body:         g.translateBlockStmt(d.Body),
			CatchBinding: d.Catch.Binding,
			CatchBody:    g.translateBlockStmt(d.Catch.Body),
		}
	}
	return &jsast.SRaw{Text: "// unreachable statement"}
}

func assignOp(op ast.AssignOp) string {
	switch op {
	case ast.AssignAdd:
		return "+="
	case ast.AssignSub:
		return "-="
	case ast.AssignMul:
		return "*="
	case ast.AssignDiv:
		return "/="
	default:
		return "="
	}
}

// ---- Expressions -----------------------------------------------------------

func (g *Generator) translateExpr(e ast.Expr) jsast.Expr {
	switch d := e.Data.(type) {
	case *ast.EIdent:
		if _, ok := g.externs[d.Name]; ok {
			g.referenced[d.Name] = true
		}
		return &jsast.EIdent{Name: d.Name}
	case *ast.EInt:
		return &jsast.ENumber{Text: strconv.FormatInt(d.Value, 10)}
	case *ast.EFloat:
		return &jsast.ENumber{Text: strconv.FormatFloat(d.Value, 'g', -1, 64)}
	case *ast.EString:
		return &jsast.EString{Value: d.Value}
	case *ast.EBool:
		return &jsast.EBool{Value: d.Value}
	case *ast.ENil:
		return &jsast.ENull{}
	case *ast.ETemplate:
		parts := make([]string, len(d.Parts))
		copy(parts, d.Parts)
		exprs := make([]jsast.Expr, len(d.Exprs))
		for i, sub := range d.Exprs {
			exprs[i] = g.translateExpr(sub)
		}
		return &jsast.ETemplate{Parts: parts, Exprs: exprs}
	case *ast.EArray:
		elems := make([]jsast.Expr, len(d.Elements))
		for i, el := range d.Elements {
			elems[i] = g.translateExpr(el)
		}
		return &jsast.EArray{Elements: elems}
	case *ast.EMap:
		entries := make([]jsast.Expr, len(d.Entries))
		for i, e := range d.Entries {
			entries[i] = &jsast.EArray{Elements: []jsast.Expr{g.translateExpr(e.Key), g.translateExpr(e.Value)}}
		}
		return &jsast.ENew{Ctor: &jsast.EIdent{Name: "Map"}, Args: []jsast.Expr{&jsast.EArray{Elements: entries}}}
	case *ast.EStructLit:
		props := make([]jsast.ObjectProp, len(d.Fields))
		for i, f := range d.Fields {
			props[i] = jsast.ObjectProp{Key: f.Name, Value: g.translateExpr(f.Value)}
		}
		return &jsast.EObject{Props: props}
	case *ast.EEnumConstruct:
		props := []jsast.ObjectProp{{Key: "tag", Value: &jsast.EString{Value: d.Variant}}}
		for _, f := range d.Fields {
			props = append(props, jsast.ObjectProp{Key: f.Name, Value: g.translateExpr(f.Value)})
		}
		return &jsast.EObject{Props: props}
	case *ast.EUnary:
		op := "-"
		if d.Op == ast.UnaryNot {
			op = "!"
		}
		return &jsast.EUnary{Op: op, Operand: g.translateExpr(d.Operand)}
	case *ast.EBinary:
		return &jsast.EBinary{Op: binaryOp(d.Op), Left: g.translateExpr(d.Left), Right: g.translateExpr(d.Right)}
	case *ast.EAssign:
		target := g.translateExpr(d.Target)
		return &jsast.EIIFE{Stmts: []jsast.Stmt{
			&jsast.SAssign{Target: target, Op: assignOp(d.Op), Value: g.translateExpr(d.Value)},
			&jsast.SReturn{Value: target},
		}}
	case *ast.ECall:
		args := make([]jsast.Expr, len(d.Args))
		for i, a := range d.Args {
			args[i] = g.translateExpr(a)
		}
		return &jsast.ECall{Callee: g.translateExpr(d.Callee), Args: args}
	case *ast.EMember:
		return &jsast.EMember{Target: g.translateExpr(d.Target), Name: d.Name, Optional: d.Optional}
	case *ast.EScope:
		// A unit-variant value used bare ("Status::Active" with no
		// fields) lowers the same way a full construction does, minus
		// field props.
		return &jsast.EObject{Props: []jsast.ObjectProp{{Key: "tag", Value: &jsast.EString{Value: d.Name}}}}
	case *ast.EIndex:
		return &jsast.EIndex{Target: g.translateExpr(d.Target), Index: g.translateExpr(d.Index)}
	case *ast.EErrorPropagate:
		tmp := &jsast.EIdent{Name: "_t"}
		return &jsast.EIIFE{Stmts: []jsast.Stmt{
			&jsast.SConst{Name: "_t", Init: g.translateExpr(d.Operand)},
			&jsast.SIf{
				Cond: &jsast.EInstanceOf{Value: tmp, Ctor: "Error"},
				Then: []jsast.Stmt{&jsast.SReturn{Value: tmp}},
			},
			&jsast.SReturn{Value: tmp},
		}}
	case *ast.EPipe:
		return g.translatePipe(d)
	case *ast.ELambda:
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.Name
		}
		if len(d.Body.Stmts) == 0 && d.Body.Tail != nil {
			return &jsast.EArrow{Params: params, ExprBody: g.translateExpr(*d.Body.Tail)}
		}
		return &jsast.EArrow{Params: params, Stmts: g.translateBlockReturn(d.Body)}
	case *ast.EBlock:
		return g.blockToExpr(d.Block)
	case *ast.EAwait:
		return &jsast.EUnary{Op: "await ", Operand: g.translateExpr(d.Operand)}
	case *ast.EMatch:
		return g.translateMatch(d)
	case *ast.EErrorNode:
		return &jsast.ERaw{Text: "undefined"}
	}
	return &jsast.ERaw{Text: "undefined"}
}

func binaryOp(op ast.BinaryOp) string {
	switch op {
	case ast.BinAdd:
		return "+"
	case ast.BinSub:
		return "-"
	case ast.BinMul:
		return "*"
	case ast.BinDiv:
		return "/"
	case ast.BinMod:
		return "%"
	case ast.BinPow:
		return "**"
	case ast.BinEq:
		return "==="
	case ast.BinNotEq:
		return "!=="
	case ast.BinLt:
		return "<"
	case ast.BinGt:
		return ">"
	case ast.BinLtEq:
		return "<="
	case ast.BinGtEq:
		return ">="
	case ast.BinAnd:
		return "&&"
	case ast.BinOr:
		return "||"
	case ast.BinNullish:
		return "??"
	}
	return "?"
}

// translatePipe implements "a |> f" -> "f(a)" and "a |> f(_, b)" ->
// "f(a, b)" (§4.6). The parser's rewritePlaceholder has already spliced
// the pipe's left side into Call's argument list (at the placeholder's
// position, or prepended when there was none), so Call is always a plain
// ECall by this point and needs no further rewriting here.
func (g *Generator) translatePipe(d *ast.EPipe) jsast.Expr {
	return g.translateExpr(d.Call)
}

// translateMatch lowers to an IIFE containing an if/else chain, per
// §4.6's "match -> if/else chain with pattern conditions and binding
// consts".
func (g *Generator) translateMatch(d *ast.EMatch) jsast.Expr {
	scrutinee := g.translateExpr(d.Scrutinee)
	stmts := []jsast.Stmt{&jsast.SConst{Name: "_s", Init: scrutinee}}
	s := &jsast.EIdent{Name: "_s"}

	var buildChain func(i int) []jsast.Stmt
	buildChain = func(i int) []jsast.Stmt {
		if i >= len(d.Arms) {
			return []jsast.Stmt{&jsast.SReturn{Value: &jsast.ERaw{Text: "undefined"}}}
		}
		arm := d.Arms[i]
		cond, prelude := g.matchPatternCond(arm.Pattern, s)
		body := append(append([]jsast.Stmt{}, prelude...), &jsast.SReturn{Value: g.translateExpr(arm.Body)})
		if cond == nil {
			return body
		}
		return []jsast.Stmt{&jsast.SIf{Cond: cond, Then: body, Else: buildChain(i + 1)}}
	}
	stmts = append(stmts, buildChain(0)...)
	return &jsast.EIIFE{Stmts: stmts}
}

// matchPatternCond returns the boolean test for a pattern (nil for an
// always-matching wildcard/bind) plus any const-binding statements its
// bindings require.
func (g *Generator) matchPatternCond(p ast.Pattern, scrutinee jsast.Expr) (jsast.Expr, []jsast.Stmt) {
	switch d := p.Data.(type) {
	case *ast.PWildcard:
		return nil, nil
	case *ast.PBind:
		return nil, []jsast.Stmt{&jsast.SConst{Name: d.Name, Init: scrutinee}}
	case *ast.PLiteral:
		return &jsast.EBinary{Op: "===", Left: scrutinee, Right: g.translateExpr(d.Value)}, nil
	case *ast.PRange:
		return &jsast.EBinary{
			Op:   "&&",
			Left: &jsast.EBinary{Op: "<=", Left: g.translateExpr(d.Low), Right: scrutinee},
			Right: &jsast.EBinary{Op: "<=", Left: scrutinee, Right: g.translateExpr(d.High)},
		}, nil
	case *ast.PStruct:
		var prelude []jsast.Stmt
		for _, fb := range d.Fields {
			prelude = append(prelude, &jsast.SConst{Name: fb.Binding, Init: &jsast.EMember{Target: scrutinee, Name: fb.Name}})
		}
		return nil, prelude
	case *ast.PEnumVariant:
		cond := &jsast.EBinary{Op: "===", Left: &jsast.EMember{Target: scrutinee, Name: "tag"}, Right: &jsast.EString{Value: d.Variant}}
		var prelude []jsast.Stmt
		for _, fb := range d.Fields {
			prelude = append(prelude, &jsast.SConst{Name: fb.Binding, Init: &jsast.EMember{Target: scrutinee, Name: fb.Name}})
		}
		return cond, prelude
	}
	return nil, nil
}
