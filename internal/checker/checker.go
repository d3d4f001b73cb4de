// Package checker implements AgentScript's structural type checker (§4.3):
// scoped symbol resolution, type compatibility, union narrowing in match
// arms, and tool-registry population. Modeled on the teacher's two-pass
// "collect declarations, then check bodies" discipline (§5's concurrency
// note: "forward references across top-level items are resolved via a
// two-pass approach").
package checker

import (
	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/types"
)

type SymbolKind uint8

const (
	SymValue SymbolKind = iota
	SymType
	SymTool
)

type Symbol struct {
	Kind    SymbolKind
	Type    types.Type
	Mutable bool
	Span    logger.Span
}

// Scope is a link in the chain described by §3's Symbol Table: module,
// function body, block, or match arm (with narrowed bindings). Lookup
// walks innermost to outermost.
type Scope struct {
	parent  *Scope
	symbols map[string]Symbol
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: map[string]Symbol{}}
}

func (s *Scope) define(name string, sym Symbol) {
	s.symbols[name] = sym
}

func (s *Scope) lookup(name string) (Symbol, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Result is the checker's output: diagnostics live on the Log passed to
// Check; this carries the structured products other phases need.
type Result struct {
	Tools     map[string]*ast.FnDecl
	ExprTypes map[logger.Span]types.Type
}

type Checker struct {
	log *logger.Log

	global *Scope // struct/enum/extern-struct/extern-type/type-alias names
	module *Scope // top-level values: fn, extern fn, let/const/mut

	structFields  map[string]map[string]types.Type
	enumVariants  map[string]map[string][]types.Field
	externMethods map[string]map[string]types.Type

	tools     map[string]*ast.FnDecl
	exprTypes map[logger.Span]types.Type
}

// fnContext threads §4.3's per-function checking state: whether we're in
// an async body (required for "await") and the declared return type
// (checked against every "return" and the tail expression, and against
// what "?" is allowed to propagate into).
type fnContext struct {
	async      bool
	returnType *types.Type
}

// Check runs the full pipeline over a parsed Module and returns the
// structured checking result. All failures are recorded on log; checking
// never aborts (§4.3's "Failure semantics" - unknown substituted on failed
// subexpressions so checking of the surrounding context can continue).
func Check(log *logger.Log, mod *ast.Module) *Result {
	c := &Checker{
		log:           log,
		global:        newScope(nil),
		structFields:  map[string]map[string]types.Type{},
		enumVariants:  map[string]map[string][]types.Field{},
		externMethods: map[string]map[string]types.Type{},
		tools:         map[string]*ast.FnDecl{},
		exprTypes:     map[logger.Span]types.Type{},
	}
	c.module = newScope(c.global)

	c.registerBuiltinTypes()
	c.collectDeclShapes(mod)
	c.resolveDeclShapes(mod)
	c.collectSignatures(mod)
	c.checkBodies(mod)

	return &Result{Tools: c.tools, ExprTypes: c.exprTypes}
}

func (c *Checker) registerBuiltinTypes() {
	for _, name := range []string{"str", "num", "int", "bool", "nil", "any", "unknown"} {
		c.global.define(name, Symbol{Kind: SymType, Type: c.primByName(name)})
	}
}

func (c *Checker) primByName(name string) types.Type {
	switch name {
	case "str":
		return types.String
	case "num":
		return types.Num
	case "int":
		return types.Int
	case "bool":
		return types.Bool
	case "nil":
		return types.Nil
	case "any":
		return types.Any
	default:
		return types.Unknown
	}
}

// ---- Pass 1: shapes (names only, so fields can reference each other) ----

func (c *Checker) collectDeclShapes(mod *ast.Module) {
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.StructDecl:
			c.structFields[d.Name] = map[string]types.Type{}
			c.global.define(d.Name, Symbol{Kind: SymType, Type: types.Type{Kind: types.KStruct, Name: d.Name, Fields: c.structFields[d.Name]}, Span: item.Span})
		case *ast.ExternStructDecl:
			c.structFields[d.Name] = map[string]types.Type{}
			c.externMethods[d.Name] = map[string]types.Type{}
			c.global.define(d.Name, Symbol{Kind: SymType, Type: types.Type{Kind: types.KStruct, Name: d.Name, Fields: c.structFields[d.Name], Methods: c.externMethods[d.Name]}, Span: item.Span})
		case *ast.EnumDecl:
			c.enumVariants[d.Name] = map[string][]types.Field{}
			c.global.define(d.Name, Symbol{Kind: SymType, Type: types.Type{Kind: types.KEnum, Name: d.Name, Variants: c.enumVariants[d.Name]}, Span: item.Span})
		case *ast.ExternTypeDecl:
			c.global.define(d.Name, Symbol{Kind: SymType, Type: types.Opaque(d.Name), Span: item.Span})
		}
	}
}

func (c *Checker) resolveDeclShapes(mod *ast.Module) {
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.StructDecl:
			for _, f := range d.Fields {
				c.structFields[d.Name][f.Name] = c.resolveType(f.Type)
			}
		case *ast.ExternStructDecl:
			for _, f := range d.Fields {
				c.structFields[d.Name][f.Name] = c.resolveType(f.Type)
			}
			for _, m := range d.Methods {
				c.externMethods[d.Name][m.Name] = c.fnSignatureType(m.Params, m.ReturnType)
			}
		case *ast.EnumDecl:
			for _, v := range d.Variants {
				var fs []types.Field
				for _, f := range v.Fields {
					fs = append(fs, types.Field{Name: f.Name, Type: c.resolveType(f.Type)})
				}
				c.enumVariants[d.Name][v.Name] = fs
			}
		case *ast.TypeAlias:
			c.global.define(d.Name, Symbol{Kind: SymType, Type: c.resolveType(d.Type), Span: item.Span})
		}
	}
}

func (c *Checker) fnSignatureType(params []ast.Param, ret *ast.Type) types.Type {
	var ptypes []types.Type
	variadic := false
	for _, p := range params {
		ptypes = append(ptypes, c.resolveType(p.Type))
		if p.Variadic {
			variadic = true
		}
	}
	var rtype types.Type = types.Nil
	if ret != nil {
		rtype = c.resolveType(*ret)
	}
	return types.Function(ptypes, rtype, variadic)
}

func (c *Checker) resolveType(t ast.Type) types.Type {
	switch d := t.Data.(type) {
	case *ast.TNamed:
		if sym, ok := c.global.lookup(d.Name); ok && sym.Kind == SymType {
			return sym.Type
		}
		c.log.AddErrorf(t.Span, "undefined type %q", d.Name)
		return types.Unknown
	case *ast.TArray:
		return types.Array(c.resolveType(d.Elem))
	case *ast.TMap:
		return types.MapOf(c.resolveType(d.Key), c.resolveType(d.Value))
	case *ast.TNullable:
		return types.Nullable(c.resolveType(d.Inner))
	case *ast.TUnion:
		opts := make([]types.Type, len(d.Options))
		for i, o := range d.Options {
			opts[i] = c.resolveType(o)
		}
		return types.Union(opts...)
	case *ast.TFunction:
		params := make([]types.Type, len(d.Params))
		for i, p := range d.Params {
			params[i] = c.resolveType(p)
		}
		return types.Function(params, c.resolveType(d.Return), d.Variadic)
	case *ast.TInlineObject:
		fields := map[string]types.Type{}
		for _, f := range d.Fields {
			fields[f.Name] = c.resolveType(f.Type)
		}
		return types.Type{Kind: types.KStruct, Fields: fields}
	case *ast.TPromise:
		return types.Promise(c.resolveType(d.Inner))
	case *ast.TUnknown:
		return types.Unknown
	default:
		return types.Unknown
	}
}

// ---- Pass 2: top-level value signatures ---------------------------------

func (c *Checker) collectSignatures(mod *ast.Module) {
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.FnDecl:
			sig := c.fnSignatureType(d.Params, d.ReturnType)
			if d.Async {
				sig = types.Function(sig.Params, types.Promise(*sig.Return), sig.Variadic)
			}
			c.module.define(d.Name, Symbol{Kind: SymValue, Type: sig, Span: item.Span})
			if d.Tool != nil {
				c.tools[d.Name] = d
			}
		case *ast.ExternFnDecl:
			sig := c.fnSignatureType(d.Params, d.ReturnType)
			c.module.define(d.Name, Symbol{Kind: SymValue, Type: sig, Span: item.Span})
		case *ast.VarDecl:
			var t types.Type
			if d.Type != nil {
				t = c.resolveType(*d.Type)
			} else {
				t = c.inferExpr(d.Init, c.module, nil)
			}
			c.module.define(d.Name, Symbol{Kind: SymValue, Type: t, Mutable: d.Kind == ast.DeclMut, Span: item.Span})
		case *ast.Import:
			// Names become "unknown"-typed values at module scope until
			// the stdlib resolver (internal/stdlib) splices in their real
			// signatures; see that package's contract (§4.4).
			for _, n := range d.Names {
				if _, exists := c.module.lookup(n); !exists {
					c.module.define(n, Symbol{Kind: SymValue, Type: types.Unknown, Span: item.Span})
				}
			}
		}
	}
}

// ---- Pass 3: bodies -------------------------------------------------------

func (c *Checker) checkBodies(mod *ast.Module) {
	for _, item := range mod.Items {
		switch d := item.Data.(type) {
		case *ast.FnDecl:
			c.checkFnBody(d)
		case *ast.VarDecl:
			sym, _ := c.module.lookup(d.Name)
			initType := c.inferExpr(d.Init, c.module, nil)
			if d.Type != nil && !types.AssignableTo(initType, sym.Type) {
				c.log.AddErrorf(d.Init.Span, "cannot assign %s to %s", initType, sym.Type)
			}
		case *ast.DslBlock:
			c.checkDslBlock(d)
		case *ast.ExprStmtItem:
			c.inferExpr(d.Expr, c.module, nil)
		}
	}
}

func (c *Checker) checkFnBody(fn *ast.FnDecl) {
	scope := newScope(c.module)
	for _, p := range fn.Params {
		scope.define(p.Name, Symbol{Kind: SymValue, Type: c.resolveType(p.Type), Mutable: false, Span: p.Span})
	}

	var declaredReturn *types.Type
	if fn.ReturnType != nil {
		rt := c.resolveType(*fn.ReturnType)
		declaredReturn = &rt
	}

	ctx := &fnContext{async: fn.Async, returnType: declaredReturn}
	resultType := c.checkBlock(fn.Body, scope, ctx)

	if declaredReturn != nil && !types.AssignableTo(resultType, *declaredReturn) {
		c.log.AddErrorf(fn.Body.Span, "return type mismatch: expected `%s`, found `%s`", declaredReturn, resultType)
	}

	if fn.Tool != nil {
		for _, p := range fn.Params {
			pt := c.resolveType(p.Type)
			if !types.IsJSONSchemaSerializable(pt) {
				c.log.AddWarningf(p.Span, "parameter %q has a type that cannot be mapped to a JSON Schema for tool use", p.Name)
			}
		}
	}
}

// checkBlock checks a Block's statements and tail expression in a freshly
// nested scope, returning the block's resulting type (the tail's type, or
// nil when there is none).
func (c *Checker) checkBlock(b ast.Block, scope *Scope, ctx *fnContext) types.Type {
	return c.checkBlockIn(b, newScope(scope), ctx)
}

// checkBlockIn checks a block's statements in a scope the caller already
// created (e.g. one carrying a loop/catch binding).
func (c *Checker) checkBlockIn(b ast.Block, scope *Scope, ctx *fnContext) types.Type {
	for _, stmt := range b.Stmts {
		c.checkStmt(stmt, scope, ctx)
	}
	if b.Tail != nil {
		return c.inferExpr(*b.Tail, scope, ctx)
	}
	return types.Nil
}

func (c *Checker) checkStmt(stmt ast.Stmt, scope *Scope, ctx *fnContext) {
	switch d := stmt.Data.(type) {
	case *ast.SVarDecl:
		var t types.Type
		if d.Decl.Type != nil {
			t = c.resolveType(*d.Decl.Type)
			initType := c.inferExpr(d.Decl.Init, scope, ctx)
			if !types.AssignableTo(initType, t) {
				c.log.AddErrorf(d.Decl.Init.Span, "cannot assign %s to %s", initType, t)
			}
		} else {
			t = c.inferExpr(d.Decl.Init, scope, ctx)
		}
		scope.define(d.Decl.Name, Symbol{Kind: SymValue, Type: t, Mutable: d.Decl.Kind == ast.DeclMut})
	case *ast.SReturn:
		var t types.Type = types.Nil
		if d.Value != nil {
			t = c.inferExpr(*d.Value, scope, ctx)
		}
		if ctx.returnType != nil && !types.AssignableTo(t, *ctx.returnType) {
			c.log.AddErrorf(stmt.Span, "return type mismatch: expected `%s`, found `%s`", ctx.returnType, t)
		}
	case *ast.SExpr:
		c.inferExpr(d.Value, scope, ctx)
	case *ast.SIf:
		cond := c.inferExpr(d.Cond, scope, ctx)
		if cond.Kind != types.KBool && cond.Kind != types.KUnknown && cond.Kind != types.KAny {
			c.log.AddErrorf(d.Cond.Span, "condition must be `bool`, found `%s`", cond)
		}
		c.checkBlock(d.Then, scope, ctx)
		if d.Else != nil {
			c.checkBlock(*d.Else, scope, ctx)
		}
	case *ast.SWhile:
		c.inferExpr(d.Cond, scope, ctx)
		c.checkBlock(d.Body, scope, ctx)
	case *ast.SFor:
		iterType := c.inferExpr(d.Iter, scope, ctx)
		elemType := types.Unknown
		if iterType.Kind == types.KArray {
			elemType = *iterType.Elem
		}
		inner := newScope(scope)
		inner.define(d.Binding, Symbol{Kind: SymValue, Type: elemType})
		c.checkBlockIn(d.Body, inner, ctx)
	case *ast.SAssign:
		c.checkAssignTarget(d.Target, scope)
		valType := c.inferExpr(d.Value, scope, ctx)
		targetType := c.inferExpr(d.Target, scope, ctx)
		if !types.AssignableTo(valType, targetType) {
			c.log.AddErrorf(d.Value.Span, "cannot assign %s to %s", valType, targetType)
		}
	case *ast.STry:
		c.checkBlock(d.Body, scope, ctx)
		inner := newScope(scope)
		inner.define(d.Catch.Binding, Symbol{Kind: SymValue, Type: types.Opaque("Error")})
		c.checkBlockIn(d.Catch.Body, inner, ctx)
	}
}

// checkAssignTarget enforces §4.3's mutability rule: the assignment target
// must trace back through member/index access to a `mut`-declared symbol.
func (c *Checker) checkAssignTarget(target ast.Expr, scope *Scope) {
	switch d := target.Data.(type) {
	case *ast.EIdent:
		sym, ok := scope.lookup(d.Name)
		if !ok {
			c.log.AddErrorf(target.Span, "undefined name %q", d.Name)
			return
		}
		if !sym.Mutable {
			c.log.AddErrorf(target.Span, "cannot assign to immutable binding %q", d.Name)
		}
	case *ast.EMember:
		c.checkAssignTarget(d.Target, scope)
	case *ast.EIndex:
		c.checkAssignTarget(d.Target, scope)
	default:
		c.log.AddError(target.Span, "invalid assignment target")
	}
}

// ---- Expressions -----------------------------------------------------------

func (c *Checker) inferExpr(e ast.Expr, scope *Scope, ctx *fnContext) types.Type {
	t := c.inferExprUncached(e, scope, ctx)
	c.exprTypes[e.Span] = t
	return t
}

func (c *Checker) inferExprUncached(e ast.Expr, scope *Scope, ctx *fnContext) types.Type {
	switch d := e.Data.(type) {
	case *ast.EIdent:
		sym, ok := scope.lookup(d.Name)
		if !ok {
			c.log.AddErrorf(e.Span, "undefined name %q", d.Name)
			return types.Unknown
		}
		return sym.Type
	case *ast.EInt:
		return types.Int
	case *ast.EFloat:
		return types.Num
	case *ast.EString:
		return types.String
	case *ast.EBool:
		return types.Bool
	case *ast.ENil:
		return types.Nil
	case *ast.ETemplate:
		for _, sub := range d.Exprs {
			c.inferExpr(sub, scope, ctx)
		}
		return types.String
	case *ast.EArray:
		if len(d.Elements) == 0 {
			return types.Array(types.Unknown)
		}
		elemTypes := make([]types.Type, len(d.Elements))
		for i, el := range d.Elements {
			elemTypes[i] = c.inferExpr(el, scope, ctx)
		}
		return types.Array(types.Union(elemTypes...))
	case *ast.EMap:
		if len(d.Entries) == 0 {
			return types.MapOf(types.String, types.Unknown)
		}
		var keyTypes, valTypes []types.Type
		for _, entry := range d.Entries {
			keyTypes = append(keyTypes, c.inferExpr(entry.Key, scope, ctx))
			valTypes = append(valTypes, c.inferExpr(entry.Value, scope, ctx))
		}
		return types.MapOf(types.Union(keyTypes...), types.Union(valTypes...))
	case *ast.EStructLit:
		return c.checkStructLit(e.Span, d.Name, d.Fields, scope, ctx)
	case *ast.EEnumConstruct:
		return c.checkEnumConstruct(e.Span, d.Enum, d.Variant, d.Fields, scope, ctx)
	case *ast.EUnary:
		operand := c.inferExpr(d.Operand, scope, ctx)
		switch d.Op {
		case ast.UnaryNot:
			if operand.Kind != types.KBool && operand.Kind != types.KUnknown && operand.Kind != types.KAny {
				c.log.AddErrorf(e.Span, "`!` requires `bool`, found `%s`", operand)
			}
			return types.Bool
		case ast.UnaryNeg:
			if operand.Kind != types.KNum && operand.Kind != types.KInt && operand.Kind != types.KUnknown && operand.Kind != types.KAny {
				c.log.AddErrorf(e.Span, "unary `-` requires a numeric type, found `%s`", operand)
			}
			return operand
		}
		return types.Unknown
	case *ast.EBinary:
		return c.checkBinary(e.Span, d, scope, ctx)
	case *ast.EAssign:
		c.checkAssignTarget(d.Target, scope)
		valType := c.inferExpr(d.Value, scope, ctx)
		targetType := c.inferExpr(d.Target, scope, ctx)
		if !types.AssignableTo(valType, targetType) {
			c.log.AddErrorf(d.Value.Span, "cannot assign %s to %s", valType, targetType)
		}
		return targetType
	case *ast.ECall:
		return c.checkCall(e.Span, d, scope, ctx)
	case *ast.EMember:
		return c.checkMember(e.Span, d, scope, ctx)
	case *ast.EScope:
		return c.checkScope(e.Span, d, scope)
	case *ast.EIndex:
		targetType := c.inferExpr(d.Target, scope, ctx)
		c.inferExpr(d.Index, scope, ctx)
		switch targetType.Kind {
		case types.KArray:
			return *targetType.Elem
		case types.KMap:
			return *targetType.Value
		case types.KUnknown, types.KAny:
			return types.Unknown
		default:
			c.log.AddErrorf(e.Span, "cannot index into `%s`", targetType)
			return types.Unknown
		}
	case *ast.EErrorPropagate:
		operand := c.inferExpr(d.Operand, scope, ctx)
		if !types.IsError(operand) {
			c.log.AddErrorf(e.Span, "`?` requires an error-shaped operand, found `%s`", operand)
			return operand
		}
		if ctx == nil || ctx.returnType == nil || !types.IsError(*ctx.returnType) {
			c.log.AddError(e.Span, "`?` used in a function whose return type does not admit an error")
		}
		return types.WithoutError(operand)
	case *ast.EPipe:
		return c.checkPipe(e.Span, d, scope, ctx)
	case *ast.ELambda:
		return c.checkLambda(d, scope, ctx)
	case *ast.EBlock:
		return c.checkBlock(d.Block, scope, ctx)
	case *ast.EAwait:
		operand := c.inferExpr(d.Operand, scope, ctx)
		if ctx == nil || !ctx.async {
			c.log.AddError(e.Span, "`await` is only valid inside an `async fn`")
		}
		if operand.Kind == types.KPromise {
			return *operand.Elem
		}
		if operand.Kind == types.KUnknown || operand.Kind == types.KAny {
			return types.Unknown
		}
		c.log.AddErrorf(e.Span, "`await` requires a `Promise<T>`, found `%s`", operand)
		return types.Unknown
	case *ast.EMatch:
		return c.checkMatch(d, scope, ctx)
	case *ast.EErrorNode:
		return types.Unknown
	}
	return types.Unknown
}

func (c *Checker) checkStructLit(span logger.Span, name string, fields []ast.StructFieldInit, scope *Scope, ctx *fnContext) types.Type {
	var structType types.Type
	if name != "" {
		sym, ok := c.global.lookup(name)
		if !ok || sym.Kind != SymType || sym.Type.Kind != types.KStruct {
			c.log.AddErrorf(span, "undefined struct %q", name)
			structType = types.Type{Kind: types.KStruct, Fields: map[string]types.Type{}}
		} else {
			structType = sym.Type
		}
	} else {
		structType = types.Type{Kind: types.KStruct, Fields: map[string]types.Type{}}
	}
	seen := map[string]bool{}
	litFields := map[string]types.Type{}
	for _, f := range fields {
		if seen[f.Name] {
			c.log.AddErrorf(span, "duplicate field %q in struct literal", f.Name)
		}
		seen[f.Name] = true
		vt := c.inferExpr(f.Value, scope, ctx)
		litFields[f.Name] = vt
		if name != "" {
			declared, ok := structType.Fields[f.Name]
			if !ok {
				c.log.AddErrorf(f.Value.Span, "struct %q has no field %q", name, f.Name)
			} else if !types.AssignableTo(vt, declared) {
				c.log.AddErrorf(f.Value.Span, "cannot assign %s to field %q of type %s", vt, f.Name, declared)
			}
		}
	}
	if name != "" {
		for fname := range structType.Fields {
			if !seen[fname] {
				c.log.AddErrorf(span, "missing field %q in struct literal for %q", fname, name)
			}
		}
		return structType
	}
	return types.Type{Kind: types.KStruct, Fields: litFields}
}

func (c *Checker) checkEnumConstruct(span logger.Span, enumName, variant string, fields []ast.StructFieldInit, scope *Scope, ctx *fnContext) types.Type {
	sym, ok := c.global.lookup(enumName)
	if !ok || sym.Kind != SymType || sym.Type.Kind != types.KEnum {
		c.log.AddErrorf(span, "undefined enum %q", enumName)
		for _, f := range fields {
			c.inferExpr(f.Value, scope, ctx)
		}
		return types.Unknown
	}
	variantFields, ok := sym.Type.Variants[variant]
	if !ok {
		c.log.AddErrorf(span, "enum %q has no variant %q", enumName, variant)
		for _, f := range fields {
			c.inferExpr(f.Value, scope, ctx)
		}
		return sym.Type
	}
	want := map[string]types.Type{}
	for _, vf := range variantFields {
		want[vf.Name] = vf.Type
	}
	seen := map[string]bool{}
	for _, f := range fields {
		seen[f.Name] = true
		vt := c.inferExpr(f.Value, scope, ctx)
		declared, ok := want[f.Name]
		if !ok {
			c.log.AddErrorf(f.Value.Span, "variant %q has no field %q", variant, f.Name)
		} else if !types.AssignableTo(vt, declared) {
			c.log.AddErrorf(f.Value.Span, "cannot assign %s to field %q of variant %q", vt, f.Name, variant)
		}
	}
	for fname := range want {
		if !seen[fname] {
			c.log.AddErrorf(span, "missing field %q in construction of %s::%s", fname, enumName, variant)
		}
	}
	return sym.Type
}

func (c *Checker) checkBinary(span logger.Span, d *ast.EBinary, scope *Scope, ctx *fnContext) types.Type {
	left := c.inferExpr(d.Left, scope, ctx)
	right := c.inferExpr(d.Right, scope, ctx)
	numeric := func(t types.Type) bool {
		return t.Kind == types.KNum || t.Kind == types.KInt || t.Kind == types.KUnknown || t.Kind == types.KAny
	}
	switch d.Op {
	case ast.BinAdd:
		if left.Kind == types.KString || right.Kind == types.KString {
			return types.String
		}
		if !numeric(left) || !numeric(right) {
			c.log.AddErrorf(span, "`+` requires numeric or string operands, found `%s` and `%s`", left, right)
		}
		if left.Kind == types.KInt && right.Kind == types.KInt {
			return types.Int
		}
		return types.Num
	case ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinMod, ast.BinPow:
		if !numeric(left) || !numeric(right) {
			c.log.AddErrorf(span, "arithmetic operator requires numeric operands, found `%s` and `%s`", left, right)
		}
		if left.Kind == types.KInt && right.Kind == types.KInt && d.Op != ast.BinDiv {
			return types.Int
		}
		return types.Num
	case ast.BinEq, ast.BinNotEq:
		return types.Bool
	case ast.BinLt, ast.BinGt, ast.BinLtEq, ast.BinGtEq:
		if !numeric(left) || !numeric(right) {
			c.log.AddErrorf(span, "comparison requires numeric operands, found `%s` and `%s`", left, right)
		}
		return types.Bool
	case ast.BinAnd, ast.BinOr:
		return types.Bool
	case ast.BinNullish:
		return types.Union(types.WithoutError(left), right)
	}
	return types.Unknown
}

// checkCall implements §4.3's call-compatibility rule: positional args
// check against declared param types in order; trailing variadic params
// absorb any remaining args checked against the variadic element type;
// missing trailing args are allowed only when the declaration supplies
// defaults (tracked at parse time via Param.Default, so arity here just
// checks the minimum required count).
func (c *Checker) checkCall(span logger.Span, d *ast.ECall, scope *Scope, ctx *fnContext) types.Type {
	calleeType := c.inferExpr(d.Callee, scope, ctx)
	argTypes := make([]types.Type, len(d.Args))
	for i, a := range d.Args {
		argTypes[i] = c.inferExpr(a, scope, ctx)
	}
	if calleeType.Kind == types.KUnknown || calleeType.Kind == types.KAny {
		return types.Unknown
	}
	if calleeType.Kind != types.KFunction {
		c.log.AddErrorf(span, "cannot call value of type `%s`", calleeType)
		return types.Unknown
	}
	fixed := calleeType.Params
	if calleeType.Variadic && len(fixed) > 0 {
		fixed = fixed[:len(fixed)-1]
	}
	if len(argTypes) < len(fixed) && !calleeType.Variadic {
		c.log.AddErrorf(span, "expected %d argument(s), found %d", len(calleeType.Params), len(argTypes))
	}
	for i, pt := range fixed {
		if i >= len(argTypes) {
			break
		}
		if !types.AssignableTo(argTypes[i], pt) {
			c.log.AddErrorf(d.Args[i].Span, "cannot pass %s as argument %d of type %s", argTypes[i], i+1, pt)
		}
	}
	if calleeType.Variadic && len(calleeType.Params) > 0 {
		variadicType := calleeType.Params[len(calleeType.Params)-1]
		for i := len(fixed); i < len(argTypes); i++ {
			if !types.AssignableTo(argTypes[i], variadicType) {
				c.log.AddErrorf(d.Args[i].Span, "cannot pass %s as variadic argument of type %s", argTypes[i], variadicType)
			}
		}
	}
	return *calleeType.Return
}

func (c *Checker) checkMember(span logger.Span, d *ast.EMember, scope *Scope, ctx *fnContext) types.Type {
	targetType := c.inferExpr(d.Target, scope, ctx)
	base := targetType
	if base.Kind == types.KNullable {
		if !d.Optional {
			c.log.AddErrorf(span, "member access on `%s` requires `?.`", targetType)
		}
		base = *base.Elem
	}
	switch base.Kind {
	case types.KStruct:
		if ft, ok := base.Fields[d.Name]; ok {
			return c.wrapOptional(ft, d.Optional && targetType.Kind != types.KNullable)
		}
		if mt, ok := base.Methods[d.Name]; ok {
			return c.wrapOptional(mt, d.Optional && targetType.Kind != types.KNullable)
		}
		c.log.AddErrorf(span, "struct %q has no member %q", base.Name, d.Name)
		return types.Unknown
	case types.KUnknown, types.KAny, types.KOpaque:
		return types.Unknown
	default:
		c.log.AddErrorf(span, "cannot access member %q on `%s`", d.Name, targetType)
		return types.Unknown
	}
}

func (c *Checker) wrapOptional(t types.Type, optional bool) types.Type {
	if optional {
		return types.Nullable(t)
	}
	return t
}

// checkScope handles "Enum::Variant" used as a value (a unit variant
// constructed without field-init syntax).
func (c *Checker) checkScope(span logger.Span, d *ast.EScope, scope *Scope) types.Type {
	ident, ok := d.Target.Data.(*ast.EIdent)
	if !ok {
		c.log.AddError(span, "invalid scope access")
		return types.Unknown
	}
	sym, ok := c.global.lookup(ident.Name)
	if !ok || sym.Type.Kind != types.KEnum {
		c.log.AddErrorf(span, "undefined enum %q", ident.Name)
		return types.Unknown
	}
	fields, ok := sym.Type.Variants[d.Name]
	if !ok {
		c.log.AddErrorf(span, "enum %q has no variant %q", ident.Name, d.Name)
		return types.Unknown
	}
	if len(fields) > 0 {
		c.log.AddErrorf(span, "variant %q requires field initializers", d.Name)
	}
	return sym.Type
}

func (c *Checker) checkPipe(span logger.Span, d *ast.EPipe, scope *Scope, ctx *fnContext) types.Type {
	leftType := c.inferExpr(d.Left, scope, ctx)
	call, ok := d.Call.Data.(*ast.ECall)
	if !ok {
		c.log.AddError(span, "right side of `|>` must be a call")
		return types.Unknown
	}
	calleeType := c.inferExpr(call.Callee, scope, ctx)
	argTypes := make([]types.Type, len(call.Args))
	for i, a := range call.Args {
		argTypes[i] = c.inferExpr(a, scope, ctx)
	}
	if calleeType.Kind != types.KFunction {
		if calleeType.Kind != types.KUnknown && calleeType.Kind != types.KAny {
			c.log.AddErrorf(span, "cannot pipe into non-function `%s`", calleeType)
		}
		return types.Unknown
	}
	// The parser has already spliced the piped value into call.Args and
	// reset PlaceholderIndex, so its position is found by span.
	idx := 0
	for i, a := range call.Args {
		if a.Span == d.Left.Span {
			idx = i
			break
		}
	}
	if idx < len(calleeType.Params) && !types.AssignableTo(leftType, calleeType.Params[idx]) {
		c.log.AddErrorf(d.Left.Span, "cannot pipe %s into parameter of type %s", leftType, calleeType.Params[idx])
	}
	for i, pt := range calleeType.Params {
		if i == idx || i >= len(argTypes) {
			continue
		}
		if !types.AssignableTo(argTypes[i], pt) {
			c.log.AddErrorf(call.Args[i].Span, "cannot pass %s as argument %d of type %s", argTypes[i], i+1, pt)
		}
	}
	return *calleeType.Return
}

func (c *Checker) checkLambda(d *ast.ELambda, scope *Scope, ctx *fnContext) types.Type {
	inner := newScope(scope)
	paramTypes := make([]types.Type, len(d.Params))
	for i, p := range d.Params {
		pt := c.resolveType(p.Type)
		paramTypes[i] = pt
		inner.define(p.Name, Symbol{Kind: SymValue, Type: pt, Span: p.Span})
	}
	bodyCtx := &fnContext{async: ctx != nil && ctx.async}
	resultType := c.checkBlockIn(d.Body, inner, bodyCtx)
	return types.Function(paramTypes, resultType, false)
}

// checkMatch checks every arm's pattern (binding narrowed types into that
// arm's own scope), its optional guard, and its body, then returns the
// least-upper-bound union of all arm result types (§4.3's narrowing rule).
func (c *Checker) checkMatch(d *ast.EMatch, scope *Scope, ctx *fnContext) types.Type {
	scrutineeType := c.inferExpr(d.Scrutinee, scope, ctx)
	var armTypes []types.Type
	for _, arm := range d.Arms {
		armScope := newScope(scope)
		c.checkPattern(arm.Pattern, scrutineeType, armScope)
		if arm.Guard != nil {
			c.inferExpr(*arm.Guard, armScope, ctx)
		}
		armTypes = append(armTypes, c.inferExpr(arm.Body, armScope, ctx))
	}
	if len(armTypes) == 0 {
		return types.Nil
	}
	return types.Union(armTypes...)
}

func (c *Checker) checkPattern(p ast.Pattern, scrutinee types.Type, scope *Scope) {
	switch d := p.Data.(type) {
	case *ast.PWildcard:
	case *ast.PBind:
		scope.define(d.Name, Symbol{Kind: SymValue, Type: scrutinee, Span: p.Span})
	case *ast.PLiteral:
		c.inferExpr(d.Value, scope, nil)
	case *ast.PRange:
		c.inferExpr(d.Low, scope, nil)
		c.inferExpr(d.High, scope, nil)
	case *ast.PStruct:
		sym, ok := c.global.lookup(d.Name)
		fields := map[string]types.Type{}
		if ok {
			fields = sym.Type.Fields
		} else {
			c.log.AddErrorf(p.Span, "undefined struct %q", d.Name)
		}
		for _, fb := range d.Fields {
			scope.define(fb.Binding, Symbol{Kind: SymValue, Type: fields[fb.Name], Span: p.Span})
		}
	case *ast.PEnumVariant:
		sym, ok := c.global.lookup(d.Enum)
		var variantFields []types.Field
		if ok {
			variantFields = sym.Type.Variants[d.Variant]
		} else {
			c.log.AddErrorf(p.Span, "undefined enum %q", d.Enum)
		}
		byName := map[string]types.Type{}
		for _, vf := range variantFields {
			byName[vf.Name] = vf.Type
		}
		for _, fb := range d.Fields {
			scope.define(fb.Binding, Symbol{Kind: SymValue, Type: byName[fb.Name], Span: p.Span})
		}
	}
}

// ---- DSL blocks ------------------------------------------------------------

// checkDslBlock checks each capture's expression using the host rules with
// the enclosing module scope (§4.3). Captures are isolated from each
// other: each gets a fresh child scope so bindings from one capture never
// leak into another.
func (c *Checker) checkDslBlock(d *ast.DslBlock) {
	inline, ok := d.Content.(ast.DslInline)
	if !ok {
		return
	}
	for _, part := range inline.Parts {
		if capture, ok := part.(ast.DslCapture); ok {
			scope := newScope(c.module)
			c.inferExpr(capture.Expr, scope, nil)
		}
	}
}
