// Package parser implements AgentScript's LL(1) top-level dispatch plus a
// Pratt expression parser, in the teacher's error-recoverable style: an
// unexpected token becomes a diagnostic and the parser resynchronizes at
// the next statement/declaration boundary rather than aborting (§4.2).
package parser

import (
	"strings"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/lexer"
	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/token"
)

type Parser struct {
	log *logger.Log
	lex *lexer.Lexer

	tok        token.Token
	prevEnd    uint32
	pendingDoc []string
}

// Parse lexes and parses source into a Module, recording every diagnostic
// on log. The returned Module is always non-nil, possibly containing
// error-recovery placeholders.
func Parse(log *logger.Log, source string) *ast.Module {
	p := &Parser{log: log, lex: lexer.New(log, source)}
	p.advance()
	return p.parseModule()
}

func (p *Parser) advance() {
	p.prevEnd = p.tok.Span.End
	for {
		t := p.lex.Next()
		if t.Kind == token.DocComment {
			p.pendingDoc = append(p.pendingDoc, strings.TrimPrefix(t.TextSlice, "///"))
			continue
		}
		if t.Kind == token.LineComment || t.Kind == token.BlockComment {
			continue
		}
		p.tok = t
		return
	}
}

func (p *Parser) takeDoc() []string {
	d := p.pendingDoc
	p.pendingDoc = nil
	return d
}

func (p *Parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *Parser) expect(k token.Kind) logger.Span {
	span := p.tok.Span
	if p.tok.Kind != k {
		p.log.AddErrorf(p.tok.Span, "expected %s, found %s", k, p.tok.Kind)
		return span
	}
	p.advance()
	return span
}

func (p *Parser) expectIdent() string {
	if p.tok.Kind != token.Ident {
		p.log.AddErrorf(p.tok.Span, "expected identifier, found %s", p.tok.Kind)
		return ""
	}
	name := p.tok.TextSlice
	p.advance()
	return name
}

// synchronize skips tokens until a likely statement/declaration boundary,
// per §4.2's recovery rule.
func (p *Parser) synchronize() {
	for {
		switch p.tok.Kind {
		case token.EOF, token.Semicolon, token.RBrace,
			token.KwFn, token.KwLet, token.KwMut, token.KwConst,
			token.KwStruct, token.KwExtern, token.KwImport, token.At:
			if p.tok.Kind == token.Semicolon {
				p.advance()
			}
			return
		}
		p.advance()
	}
}

// ---- Module / items ----------------------------------------------------

func (p *Parser) parseModule() *ast.Module {
	mod := &ast.Module{}
	for p.tok.Kind != token.EOF {
		item := p.parseItem()
		if item != nil {
			mod.Items = append(mod.Items, *item)
		}
	}
	return mod
}

func (p *Parser) parseItem() *ast.Item {
	doc := p.takeDoc()
	start := p.tok

	switch p.tok.Kind {
	case token.KwImport:
		return p.finishItem(start, doc, p.parseImport())
	case token.KwLet, token.KwMut, token.KwConst:
		v := p.parseVarDeclHeader()
		p.expect(token.Semicolon)
		return p.finishItem(start, doc, v)
	case token.KwPub, token.KwAsync, token.KwFn:
		return p.finishItem(start, doc, p.parseFnChain(false, false, nil))
	case token.KwStruct:
		return p.finishItem(start, doc, p.parseStructDecl())
	case token.KwEnum:
		return p.finishItem(start, doc, p.parseEnumDecl())
	case token.KwType:
		return p.finishItem(start, doc, p.parseTypeAlias())
	case token.KwExtern:
		return p.finishItem(start, doc, p.parseExtern())
	case token.At:
		return p.finishItem(start, doc, p.parseAtDispatch())
	default:
		// Fall back to an expression statement so top-level scripts (used
		// heavily in DSL capture sub-parsing and tests) still parse.
		e := p.parseExpr(lowest)
		p.expect(token.Semicolon)
		return p.finishItem(start, doc, &ast.ExprStmtItem{Expr: e})
	}
}

func (p *Parser) finishItem(start token.Token, doc []string, data ast.ItemData) *ast.Item {
	if data == nil {
		p.synchronize()
		return nil
	}
	return &ast.Item{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Doc: doc, Data: data}
}

func (p *Parser) parseImport() ast.ItemData {
	p.advance() // 'import'
	p.expect(token.LBrace)
	var names []string
	for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
		names = append(names, p.expectIdent())
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBrace)
	p.expect(token.KwFrom)
	path := p.tok.StringValue
	p.expect(token.StringLiteral)
	p.expect(token.Semicolon)
	return &ast.Import{Names: names, Path: path}
}

func (p *Parser) parseVarDeclHeader() ast.ItemData {
	var kind ast.DeclKind
	switch p.tok.Kind {
	case token.KwLet:
		kind = ast.DeclLet
	case token.KwMut:
		kind = ast.DeclMut
	case token.KwConst:
		kind = ast.DeclConst
	}
	p.advance()
	name := p.expectIdent()
	var typ *ast.Type
	if p.tok.Kind == token.Colon {
		p.advance()
		t := p.parseType()
		typ = &t
	}
	p.expect(token.Eq)
	init := p.parseExpr(lowest)
	return &ast.VarDecl{Name: name, Kind: kind, Type: typ, Init: init}
}

// parseAtDispatch tells a DSL block from an annotation by the identifier
// after "@" (§4.2): "tool" and "js" start annotations, and any other
// identifier is taken as a DSL kind. Annotations are consumed
// in a loop interleaved with "pub"/"async" by parseFnChain so that both
// "@tool pub fn" and "pub @tool fn" are accepted (§9).
func (p *Parser) parseAtDispatch() ast.ItemData {
	p.advance() // '@'

	if p.tok.Kind != token.Ident {
		p.log.AddErrorf(p.tok.Span, "expected annotation or DSL kind after '@', found %s", p.tok.Kind)
		return nil
	}

	switch p.tok.TextSlice {
	case "tool":
		p.advance()
		ann := p.parseToolAnnotationTail()
		return p.parseFnChain(false, false, ann)
	case "js":
		p.advance()
		return p.parseJsAnnotatedExtern()
	default:
		return p.parseDslBlock(p.tok.TextSlice)
	}
}

func (p *Parser) parseToolAnnotationTail() *ast.ToolAnnotation {
	span := p.tok.Span
	var desc *string
	if p.tok.Kind == token.LParen {
		p.advance()
		s := p.tok.StringValue
		p.expect(token.StringLiteral)
		desc = &s
		p.expect(token.RParen)
	}
	return &ast.ToolAnnotation{Description: desc, Span: span}
}

// parseFnChain consumes any interleaving of "pub", "async", and "@tool(...)"
// before a required "fn", per §9's annotation placement flexibility. If a
// "@tool" annotation turns out to precede a non-fn declaration, it emits
// the required diagnostic and still parses (and returns) that declaration
// so parsing continues (§8's "@tool struct Foo {}" test).
func (p *Parser) parseFnChain(pub bool, async bool, tool *ast.ToolAnnotation) ast.ItemData {
	for {
		switch p.tok.Kind {
		case token.KwPub:
			pub = true
			p.advance()
			continue
		case token.KwAsync:
			async = true
			p.advance()
			continue
		case token.At:
			atSpan := p.tok.Span
			p.advance()
			if p.tok.Kind == token.Ident && p.tok.TextSlice == "tool" {
				p.advance()
				tool = p.parseToolAnnotationTail()
				continue
			}
			p.log.AddError(atSpan, "expected @tool annotation here")
			continue
		}
		break
	}

	if p.tok.Kind != token.KwFn {
		if tool != nil {
			p.log.AddError(tool.Span, "@tool annotation can only be applied to fn declarations")
			return p.parseNonFnDecl()
		}
		p.log.AddErrorf(p.tok.Span, "expected fn, found %s", p.tok.Kind)
		p.synchronize()
		return nil
	}

	p.advance() // 'fn'
	name := p.expectIdent()
	params := p.parseParams()
	var ret *ast.Type
	if p.tok.Kind == token.ThinArrow {
		p.advance()
		t := p.parseType()
		ret = &t
	}
	body := p.parseBlock()
	return &ast.FnDecl{Pub: pub, Async: async, Name: name, Params: params, ReturnType: ret, Body: body, Tool: tool}
}

// parseNonFnDecl dispatches to whatever declaration actually follows a
// misplaced annotation, so the rest of the item still parses normally.
func (p *Parser) parseNonFnDecl() ast.ItemData {
	switch p.tok.Kind {
	case token.KwStruct:
		return p.parseStructDecl()
	case token.KwEnum:
		return p.parseEnumDecl()
	case token.KwType:
		return p.parseTypeAlias()
	case token.KwExtern:
		return p.parseExtern()
	case token.KwLet, token.KwMut, token.KwConst:
		v := p.parseVarDeclHeader()
		p.expect(token.Semicolon)
		return v
	default:
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseJsAnnotatedExtern() ast.ItemData {
	p.expect(token.LParen)
	mod := p.tok.StringValue
	p.expect(token.StringLiteral)
	var name *string
	if p.tok.Kind == token.Comma {
		p.advance()
		p.expectIdent() // "name"
		p.expect(token.Eq)
		n := p.tok.StringValue
		p.expect(token.StringLiteral)
		name = &n
	}
	p.expect(token.RParen)
	js := ast.JsAnnotation{Module: &mod, JsName: name, Span: p.tok.Span}

	if p.tok.Kind != token.KwExtern {
		p.log.AddError(js.Span, "@js annotation can only be applied to extern declarations")
		p.synchronize()
		return nil
	}
	return p.parseExternBody(js)
}

// ---- fn / struct / enum / type / extern --------------------------------

func (p *Parser) parseParams() []ast.Param {
	p.expect(token.LParen)
	var params []ast.Param
	sawDefault := false
	for p.tok.Kind != token.RParen && p.tok.Kind != token.EOF {
		start := p.tok.Span
		variadic := false
		if p.tok.Kind == token.DotDotDot {
			variadic = true
			p.advance()
		}
		name := p.expectIdent()
		p.expect(token.Colon)
		typ := p.parseType()
		var def *ast.Expr
		if p.tok.Kind == token.Eq {
			p.advance()
			e := p.parseExpr(lowest)
			def = &e
			sawDefault = true
		} else if sawDefault && !variadic {
			p.log.AddError(start, "a required parameter may not follow a default parameter")
		}
		if variadic && p.tok.Kind == token.Comma {
			p.log.AddError(start, "variadic parameter must be the last parameter")
		}
		params = append(params, ast.Param{Name: name, Type: typ, Default: def, Variadic: variadic, Span: logger.Span{Start: start.Start, End: p.prevEnd}})
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseStructDecl() ast.ItemData {
	p.advance() // 'struct'
	name := p.expectIdent()
	p.expect(token.LBrace)
	var fields []ast.Field
	for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
		start := p.tok.Span
		fname := p.expectIdent()
		p.expect(token.Colon)
		ftype := p.parseType()
		fields = append(fields, ast.Field{Name: fname, Type: ftype, Span: logger.Span{Start: start.Start, End: p.prevEnd}})
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBrace)
	return &ast.StructDecl{Name: name, Fields: fields}
}

func (p *Parser) parseEnumDecl() ast.ItemData {
	p.advance() // 'enum'
	name := p.expectIdent()
	p.expect(token.LBrace)
	var variants []ast.EnumVariant
	for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
		start := p.tok.Span
		vname := p.expectIdent()
		var fields []ast.Field
		if p.tok.Kind == token.LParen {
			p.advance()
			for p.tok.Kind != token.RParen && p.tok.Kind != token.EOF {
				fstart := p.tok.Span
				fname := p.expectIdent()
				p.expect(token.Colon)
				ftype := p.parseType()
				fields = append(fields, ast.Field{Name: fname, Type: ftype, Span: logger.Span{Start: fstart.Start, End: p.prevEnd}})
				if p.tok.Kind == token.Comma {
					p.advance()
				} else {
					break
				}
			}
			p.expect(token.RParen)
		}
		variants = append(variants, ast.EnumVariant{Name: vname, Fields: fields, Span: logger.Span{Start: start.Start, End: p.prevEnd}})
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBrace)
	return &ast.EnumDecl{Name: name, Variants: variants}
}

func (p *Parser) parseTypeAlias() ast.ItemData {
	p.advance() // 'type'
	name := p.expectIdent()
	p.expect(token.Eq)
	t := p.parseType()
	p.expect(token.Semicolon)
	return &ast.TypeAlias{Name: name, Type: t}
}

func (p *Parser) parseExtern() ast.ItemData {
	return p.parseExternBody(ast.JsAnnotation{})
}

// parseExternBody handles "extern fn/struct/type", disambiguated by the
// token after "extern" (§4.2).
func (p *Parser) parseExternBody(js ast.JsAnnotation) ast.ItemData {
	p.expect(token.KwExtern)
	switch p.tok.Kind {
	case token.KwFn:
		p.advance()
		name := p.expectIdent()
		params := p.parseParams()
		var ret *ast.Type
		if p.tok.Kind == token.ThinArrow {
			p.advance()
			t := p.parseType()
			ret = &t
		}
		p.expect(token.Semicolon)
		return &ast.ExternFnDecl{Name: name, Params: params, ReturnType: ret, Js: js}
	case token.KwStruct:
		p.advance()
		name := p.expectIdent()
		p.expect(token.LBrace)
		var fields []ast.Field
		var methods []ast.FnSignature
		for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
			if p.tok.Kind == token.KwFn {
				p.advance()
				mname := p.expectIdent()
				mparams := p.parseParams()
				var mret *ast.Type
				if p.tok.Kind == token.ThinArrow {
					p.advance()
					t := p.parseType()
					mret = &t
				}
				p.expect(token.Semicolon)
				methods = append(methods, ast.FnSignature{Name: mname, Params: mparams, ReturnType: mret})
				continue
			}
			start := p.tok.Span
			fname := p.expectIdent()
			p.expect(token.Colon)
			ftype := p.parseType()
			fields = append(fields, ast.Field{Name: fname, Type: ftype, Span: logger.Span{Start: start.Start, End: p.prevEnd}})
			if p.tok.Kind == token.Comma {
				p.advance()
			}
		}
		p.expect(token.RBrace)
		return &ast.ExternStructDecl{Name: name, Fields: fields, Methods: methods, Js: js}
	case token.KwType:
		p.advance()
		name := p.expectIdent()
		p.expect(token.Semicolon)
		return &ast.ExternTypeDecl{Name: name, Js: js}
	default:
		p.log.AddErrorf(p.tok.Span, "expected fn, struct, or type after extern, found %s", p.tok.Kind)
		p.synchronize()
		return nil
	}
}

// ---- DSL blocks ---------------------------------------------------------

func (p *Parser) parseDslBlock(kind string) ast.ItemData {
	start := p.tok.Span
	p.advance() // the kind identifier; p.tok is now the block name
	name := p.tok.TextSlice
	if p.tok.Kind != token.Ident {
		p.log.AddErrorf(p.tok.Span, "expected identifier, found %s", p.tok.Kind)
		name = ""
	}

	// The lexer sits just past the name. What follows it is read from the
	// source rather than lexed, since a "```" fence lexed in normal mode
	// would start a template string.
	if rest := strings.TrimLeft(p.lex.Source()[p.tok.Span.End:], " \t\r\n"); strings.HasPrefix(rest, "from") {
		p.advance() // name
		p.advance() // 'from'
		path := p.tok.StringValue
		fileSpan := p.tok.Span
		p.expect(token.StringLiteral)
		p.expect(token.Semicolon)
		return &ast.DslBlock{
			Kind: kind, Name: name,
			Content: ast.DslFileRef{Path: path, Span: fileSpan},
			Span:    logger.Span{Start: start.Start, End: p.prevEnd},
		}
	}

	blockStartTok := p.lex.ExpectDslBlockStart()
	if blockStartTok.Kind == token.Error {
		p.advance()
		return &ast.DslBlock{Kind: kind, Name: name, Content: ast.DslInline{}, Span: logger.Span{Start: start.Start, End: p.prevEnd}}
	}

	var parts []ast.DslPart
	for {
		t := p.lex.NextDslRaw()
		switch t.Kind {
		case token.DslText:
			parts = append(parts, ast.DslText{Text: t.StringValue, Span: t.Span})
		case token.DslCaptureStart:
			capStart := t.Span.Start
			p.advance() // prime current token inside the capture's normal-mode scan
			body := p.parseBlockBody()
			capEnd := p.tok.Span.End
			expr := collapseBlockBody(body)
			if len(body.Stmts) == 0 && body.Tail == nil {
				p.log.AddError(logger.Span{Start: capStart, End: capEnd}, "empty DSL capture")
			}
			parts = append(parts, ast.DslCapture{Expr: expr, Span: logger.Span{Start: capStart, End: capEnd}})
			// p.tok now holds the DslCaptureEnd token itself; the lexer has
			// already flipped back to raw mode (scanCloseBrace does this),
			// so the outer loop's NextDslRaw call resumes DSL text scanning
			// directly. Do not call p.advance() here: it would invoke the
			// normal-mode scanner instead of the raw-mode one.
			continue
		case token.DslBlockEnd:
			goto doneDsl
		case token.Error, token.EOF:
			goto doneDsl
		}
	}
doneDsl:
	p.advance()
	return &ast.DslBlock{
		Kind: kind, Name: name,
		Content: ast.DslInline{Parts: parts},
		Span:    logger.Span{Start: start.Start, End: p.prevEnd},
	}
}

// collapseBlockBody implements §4.2's backward-compatible capture shape: a
// body with no statements and exactly one tail expression carries that
// expression directly; otherwise it carries Expr::Block.
func collapseBlockBody(b ast.Block) ast.Expr {
	if len(b.Stmts) == 0 && b.Tail != nil {
		return *b.Tail
	}
	return ast.Expr{Span: b.Span, Data: &ast.EBlock{Block: b}}
}

// ---- Blocks / statements -------------------------------------------------

func (p *Parser) parseBlock() ast.Block {
	start := p.tok.Span
	p.expect(token.LBrace)
	body := p.parseBlockBody()
	body.Span = logger.Span{Start: start.Start, End: p.prevEnd}
	p.expect(token.RBrace)
	return body
}

// parseBlockBody parses statements up to '}'/Eof/DslCaptureEnd, with the
// final bare expression (no trailing ';') becoming the tail (§4.2). It is
// reused directly by DSL capture parsing.
func (p *Parser) parseBlockBody() ast.Block {
	var b ast.Block
	startSpan := p.tok.Span
	for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF && p.tok.Kind != token.DslCaptureEnd {
		switch p.tok.Kind {
		case token.KwLet, token.KwMut, token.KwConst:
			v := p.parseVarDeclHeader()
			p.expect(token.Semicolon)
			b.Stmts = append(b.Stmts, ast.Stmt{Span: p.tok.Span, Data: &ast.SVarDecl{Decl: *v.(*ast.VarDecl)}})
		case token.KwReturn:
			retStart := p.tok.Span
			p.advance()
			var val *ast.Expr
			if p.tok.Kind != token.Semicolon {
				e := p.parseExpr(lowest)
				val = &e
			}
			p.expect(token.Semicolon)
			b.Stmts = append(b.Stmts, ast.Stmt{Span: retStart, Data: &ast.SReturn{Value: val}})
		case token.KwIf:
			b.Stmts = append(b.Stmts, p.parseIfStmt())
		case token.KwWhile:
			whileStart := p.tok.Span
			p.advance()
			cond := p.parseExpr(lowest)
			body := p.parseBlock()
			b.Stmts = append(b.Stmts, ast.Stmt{Span: whileStart, Data: &ast.SWhile{Cond: cond, Body: body}})
		case token.KwFor:
			forStart := p.tok.Span
			p.advance()
			binding := p.expectIdent()
			p.expect(token.KwIn)
			iter := p.parseExpr(lowest)
			body := p.parseBlock()
			b.Stmts = append(b.Stmts, ast.Stmt{Span: forStart, Data: &ast.SFor{Binding: binding, Iter: iter, Body: body}})
		case token.KwTry:
			b.Stmts = append(b.Stmts, p.parseTryStmt())
		default:
			exprStart := p.tok.Span
			e := p.parseExpr(lowest)
			if p.tok.Kind == token.Semicolon {
				p.advance()
				b.Stmts = append(b.Stmts, ast.Stmt{Span: exprStart, Data: &ast.SExpr{Value: e}})
			} else if p.tok.Kind == token.RBrace || p.tok.Kind == token.EOF || p.tok.Kind == token.DslCaptureEnd {
				b.Tail = &e
			} else {
				// No semicolon and not at a block end: treat as a statement
				// anyway and keep going, per error-recoverable parsing.
				b.Stmts = append(b.Stmts, ast.Stmt{Span: exprStart, Data: &ast.SExpr{Value: e}})
			}
		}
	}
	b.Span = logger.Span{Start: startSpan.Start, End: p.prevEnd}
	return b
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.tok.Span
	p.advance()
	cond := p.parseExpr(lowest)
	then := p.parseBlock()
	var elseBlock *ast.Block
	if p.tok.Kind == token.KwElse {
		p.advance()
		if p.tok.Kind == token.KwIf {
			nested := p.parseIfStmt()
			elseBlock = &ast.Block{Span: nested.Span, Stmts: []ast.Stmt{nested}}
		} else {
			blk := p.parseBlock()
			elseBlock = &blk
		}
	}
	return ast.Stmt{Span: start, Data: &ast.SIf{Cond: cond, Then: then, Else: elseBlock}}
}

func (p *Parser) parseTryStmt() ast.Stmt {
	start := p.tok.Span
	p.advance()
	body := p.parseBlock()
	p.expect(token.KwCatch)
	binding := p.expectIdent()
	catchBody := p.parseBlock()
	return ast.Stmt{Span: start, Data: &ast.STry{Body: body, Catch: ast.SCatchClause{Binding: binding, Body: catchBody}}}
}

// ---- Patterns -------------------------------------------------------------

func (p *Parser) parsePattern() ast.Pattern {
	start := p.tok.Span
	switch p.tok.Kind {
	case token.Ident:
		if p.tok.TextSlice == "_" {
			p.advance()
			return ast.Pattern{Span: start, Data: &ast.PWildcard{}}
		}
		name := p.tok.TextSlice
		p.advance()
		if p.tok.Kind == token.ColonColon {
			p.advance()
			variant := p.expectIdent()
			fields := p.parseOptionalPatternFields()
			return ast.Pattern{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.PEnumVariant{Enum: name, Variant: variant, Fields: fields}}
		}
		if p.tok.Kind == token.DotDot {
			p.advance()
			high := p.parseExpr(levelComparison)
			return ast.Pattern{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.PRange{
				Low:  ast.Expr{Span: start, Data: &ast.EIdent{Name: name}},
				High: high,
			}}
		}
		if p.tok.Kind == token.LBrace {
			fields := p.parseOptionalPatternFields()
			return ast.Pattern{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.PStruct{Name: name, Fields: fields}}
		}
		return ast.Pattern{Span: start, Data: &ast.PBind{Name: name}}
	case token.LBrace:
		fields := p.parseOptionalPatternFields()
		return ast.Pattern{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.PStruct{Fields: fields}}
	default:
		lit := p.parseExpr(levelComparison)
		if p.tok.Kind == token.DotDot {
			p.advance()
			high := p.parseExpr(levelComparison)
			return ast.Pattern{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.PRange{Low: lit, High: high}}
		}
		return ast.Pattern{Span: start, Data: &ast.PLiteral{Value: lit}}
	}
}

func (p *Parser) parseOptionalPatternFields() []ast.PFieldBind {
	if p.tok.Kind != token.LBrace && p.tok.Kind != token.LParen {
		return nil
	}
	closer := token.RBrace
	if p.tok.Kind == token.LParen {
		closer = token.RParen
	}
	p.advance()
	var fields []ast.PFieldBind
	for p.tok.Kind != closer && p.tok.Kind != token.EOF {
		name := p.expectIdent()
		binding := name
		if p.tok.Kind == token.Colon {
			p.advance()
			binding = p.expectIdent()
		}
		fields = append(fields, ast.PFieldBind{Name: name, Binding: binding})
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(closer)
	return fields
}

// ---- Types ----------------------------------------------------------------

func (p *Parser) parseType() ast.Type {
	start := p.tok.Span
	t := p.parseTypePrimary()
	if p.tok.Kind == token.Question {
		p.advance()
		t = ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TNullable{Inner: t}}
	}
	if p.tok.Kind == token.Bar {
		options := []ast.Type{t}
		for p.tok.Kind == token.Bar {
			p.advance()
			options = append(options, p.parseTypePrimary())
		}
		t = ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TUnion{Options: options}}
	}
	return t
}

func (p *Parser) parseTypePrimary() ast.Type {
	start := p.tok.Span
	switch p.tok.Kind {
	case token.LBracket:
		p.advance()
		elem := p.parseType()
		p.expect(token.RBracket)
		return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TArray{Elem: elem}}
	case token.KwNil:
		p.advance()
		return ast.Type{Span: start, Data: &ast.TNamed{Name: "nil"}}
	case token.LBrace:
		p.advance()
		// Disambiguate "{K: V}" (map) from "{ field: T, ... }" (inline
		// object) only by convention: a single entry whose key identifier
		// is lowercase "k"/"key"-shaped isn't reliable, so AgentScript
		// treats any "{ name: T }" as an inline object with one field and
		// "{T: T}" written with a type on the left as a map. Practically
		// this means: if the key position parses as a primitive/array/map
		// type rather than a bare field name, it's a map.
		fields := []ast.TObjectField{}
		first := true
		isMap := false
		var mapKey, mapVal ast.Type
		for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
			fname := p.tok.TextSlice
			keyType := p.parseType()
			p.expect(token.Colon)
			valType := p.parseType()
			if first {
				primitiveKey := fname == "str" || fname == "num" || fname == "int" || fname == "bool" || fname == "nil" || fname == "any" || fname == "unknown"
				if named, ok := keyType.Data.(*ast.TNamed); ok && named.Name == fname && !primitiveKey {
					fields = append(fields, ast.TObjectField{Name: fname, Type: valType})
				} else {
					isMap = true
					mapKey, mapVal = keyType, valType
				}
				first = false
			} else {
				fields = append(fields, ast.TObjectField{Name: fname, Type: valType})
			}
			if p.tok.Kind == token.Comma {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBrace)
		if isMap {
			return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TMap{Key: mapKey, Value: mapVal}}
		}
		return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TInlineObject{Fields: fields}}
	case token.LParen:
		p.advance()
		var params []ast.Type
		for p.tok.Kind != token.RParen && p.tok.Kind != token.EOF {
			params = append(params, p.parseType())
			if p.tok.Kind == token.Comma {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RParen)
		p.expect(token.ThinArrow)
		ret := p.parseType()
		return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TFunction{Params: params, Return: ret}}
	case token.DotDotDot:
		p.advance()
		inner := p.parseType()
		return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: inner.Data}
	case token.Ident:
		name := p.tok.TextSlice
		p.advance()
		if name == "Promise" && p.tok.Kind == token.Lt {
			p.advance()
			inner := p.parseType()
			p.expect(token.Gt)
			return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TPromise{Inner: inner}}
		}
		return ast.Type{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.TNamed{Name: name}}
	default:
		p.log.AddErrorf(p.tok.Span, "expected a type, found %s", p.tok.Kind)
		return ast.Type{Span: start, Data: &ast.TUnknown{}}
	}
}

// ---- Pratt expression parser -----------------------------------------

type level int

const (
	lowest level = iota
	levelAssign
	levelPipe
	levelNullish
	levelOr
	levelAnd
	levelEquality
	levelComparison
	levelAdditive
	levelMultiplicative
	levelExponent
	levelPrefix
	levelPostfix
)

func (p *Parser) parseExpr(min level) ast.Expr {
	left := p.parsePrefix()
	return p.parseSuffixLoop(left, min)
}

func (p *Parser) parsePrefix() ast.Expr {
	start := p.tok.Span
	switch p.tok.Kind {
	case token.Bang:
		p.advance()
		operand := p.parseExpr(levelPrefix)
		return ast.Expr{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.EUnary{Op: ast.UnaryNot, Operand: operand}}
	case token.Minus:
		p.advance()
		operand := p.parseExpr(levelPrefix)
		return ast.Expr{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.EUnary{Op: ast.UnaryNeg, Operand: operand}}
	case token.KwAwait:
		p.advance()
		operand := p.parseExpr(levelPrefix)
		return ast.Expr{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.EAwait{Operand: operand}}
	case token.IntLiteral:
		v := p.tok.IntValue
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EInt{Value: v}}
	case token.FloatLiteral:
		v := p.tok.FloatValue
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EFloat{Value: v}}
	case token.StringLiteral:
		v := p.tok.StringValue
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EString{Value: v}}
	case token.KwTrue:
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EBool{Value: true}}
	case token.KwFalse:
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EBool{Value: false}}
	case token.KwNil:
		p.advance()
		return ast.Expr{Span: start, Data: &ast.ENil{}}
	case token.TemplateNoSub:
		v := p.tok.StringValue
		p.advance()
		return ast.Expr{Span: start, Data: &ast.ETemplate{Parts: []string{v}}}
	case token.TemplateHead:
		return p.parseTemplate(p.tok)
	case token.LParen:
		return p.parseParenOrLambda(p.tok)
	case token.LBracket:
		p.advance()
		var elems []ast.Expr
		for p.tok.Kind != token.RBracket && p.tok.Kind != token.EOF {
			elems = append(elems, p.parseExpr(levelAssign))
			if p.tok.Kind == token.Comma {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBracket)
		return ast.Expr{Span: logger.Span{Start: start.Start, End: p.prevEnd}, Data: &ast.EArray{Elements: elems}}
	case token.LBrace:
		return p.parseBraceLiteral(p.tok)
	case token.KwMatch:
		return p.parseMatch(p.tok)
	case token.Ident:
		return p.parseIdentLead(p.tok)
	default:
		p.log.AddErrorf(p.tok.Span, "unexpected token %s in expression", p.tok.Kind)
		p.advance()
		return ast.Expr{Span: start, Data: &ast.EErrorNode{}}
	}
}

func (p *Parser) parseTemplate(start token.Token) ast.Expr {
	parts := []string{p.tok.StringValue}
	p.advance()
	var exprs []ast.Expr
	for {
		exprs = append(exprs, p.parseExpr(lowest))
		// The current token is the matching TemplateMiddle/Tail produced
		// by the lexer's brace-stack bookkeeping when the interpolation's
		// '}' was consumed while parsing the expression above.
		switch p.tok.Kind {
		case token.TemplateMiddle:
			parts = append(parts, p.tok.StringValue)
			p.advance()
			continue
		case token.TemplateTail:
			parts = append(parts, p.tok.StringValue)
			p.advance()
		}
		break
	}
	return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.ETemplate{Parts: parts, Exprs: exprs}}
}

func (p *Parser) parseIdentLead(start token.Token) ast.Expr {
	if start.TextSlice == "_" {
		p.advance()
		return ast.Expr{Span: start.Span, Data: &ast.EIdent{Name: "_"}}
	}
	name := start.TextSlice
	p.advance()
	if p.tok.Kind == token.ColonColon {
		p.advance()
		variant := p.expectIdent()
		if p.tok.Kind == token.LParen {
			fields := p.parseFieldInits(token.LParen, token.RParen)
			return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.EEnumConstruct{Enum: name, Variant: variant, Fields: fields}}
		}
		return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.EScope{Target: ast.Expr{Span: start.Span, Data: &ast.EIdent{Name: name}}, Name: variant}}
	}
	return ast.Expr{Span: start.Span, Data: &ast.EIdent{Name: name}}
}

func (p *Parser) parseFieldInits(open, close token.Kind) []ast.StructFieldInit {
	p.expect(open)
	var fields []ast.StructFieldInit
	for p.tok.Kind != close && p.tok.Kind != token.EOF {
		name := p.expectIdent()
		p.expect(token.Colon)
		val := p.parseExpr(levelAssign)
		fields = append(fields, ast.StructFieldInit{Name: name, Value: val})
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(close)
	return fields
}

func (p *Parser) parseBraceLiteral(start token.Token) ast.Expr {
	fields := p.parseFieldInits(token.LBrace, token.RBrace)
	return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.EStructLit{Fields: fields}}
}

// parseParenOrLambda disambiguates "(expr)" from "(params) => body" by
// scanning forward: a parameter list is "(ident : type, ...) =>".
// Because our lexer is pull-based we resolve this structurally instead of
// backtracking: an empty "()" or a leading "ident:" inside parens is
// treated as a parameter list when followed by "=>" after the closing
// paren; otherwise it's a parenthesized expression.
func (p *Parser) parseParenOrLambda(start token.Token) ast.Expr {
	p.advance() // '('
	if p.tok.Kind == token.RParen {
		p.advance()
		if p.tok.Kind == token.Arrow {
			p.advance()
			return p.finishLambda(start, nil)
		}
		return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.EErrorNode{}}
	}

	// Heuristic lookahead: "ident :" inside the parens signals a typed
	// parameter list, which AgentScript always requires for lambdas and
	// fn declarations (§4.3).
	if p.tok.Kind == token.Ident {
		name := p.tok.TextSlice
		savedTok := p.tok
		p.advance()
		if p.tok.Kind == token.Colon {
			p.advance()
			typ := p.parseType()
			var def *ast.Expr
			if p.tok.Kind == token.Eq {
				p.advance()
				e := p.parseExpr(levelAssign)
				def = &e
			}
			params := []ast.Param{{Name: name, Type: typ, Default: def}}
			for p.tok.Kind == token.Comma {
				p.advance()
				pname := p.expectIdent()
				p.expect(token.Colon)
				ptyp := p.parseType()
				var pdef *ast.Expr
				if p.tok.Kind == token.Eq {
					p.advance()
					e := p.parseExpr(levelAssign)
					pdef = &e
				}
				params = append(params, ast.Param{Name: pname, Type: ptyp, Default: pdef})
			}
			p.expect(token.RParen)
			p.expect(token.Arrow)
			return p.finishLambda(start, params)
		}
		// Not a parameter list: resume as a parenthesized expression whose
		// first token was already consumed.
		left := ast.Expr{Span: savedTok.Span, Data: &ast.EIdent{Name: name}}
		left = p.parseSuffixLoop(left, lowest)
		p.expect(token.RParen)
		return left
	}

	inner := p.parseExpr(lowest)
	p.expect(token.RParen)
	return inner
}

func (p *Parser) finishLambda(start token.Token, params []ast.Param) ast.Expr {
	var body ast.Block
	if p.tok.Kind == token.LBrace {
		body = p.parseBlock()
	} else {
		e := p.parseExpr(levelAssign)
		body = ast.Block{Span: e.Span, Tail: &e}
	}
	return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.ELambda{Params: params, Body: body}}
}

func (p *Parser) parseMatch(start token.Token) ast.Expr {
	p.advance() // 'match'
	scrutinee := p.parseExpr(lowest)
	p.expect(token.LBrace)
	var arms []ast.MatchArm
	for p.tok.Kind != token.RBrace && p.tok.Kind != token.EOF {
		pat := p.parsePattern()
		var guard *ast.Expr
		if p.tok.Kind == token.KwIf {
			p.advance()
			g := p.parseExpr(lowest)
			guard = &g
		}
		p.expect(token.Arrow)
		body := p.parseExpr(levelAssign)
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		if p.tok.Kind == token.Comma {
			p.advance()
		}
	}
	p.expect(token.RBrace)
	return ast.Expr{Span: logger.Span{Start: start.Span.Start, End: p.prevEnd}, Data: &ast.EMatch{Scrutinee: scrutinee, Arms: arms}}
}

// parseSuffixLoop implements Pratt precedence climbing for infix/postfix
// operators per the table in §4.2.
func (p *Parser) parseSuffixLoop(left ast.Expr, min level) ast.Expr {
	for {
		switch p.tok.Kind {
		case token.Eq, token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq:
			if levelAssign < min {
				return left
			}
			op := assignOpFor(p.tok.Kind)
			p.advance()
			right := p.parseExpr(levelAssign)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EAssign{Target: left, Op: op, Value: right}}
		case token.Pipe2:
			if levelPipe < min {
				return left
			}
			p.advance()
			right := p.parseExpr(levelPipe + 1)
			right = rewritePlaceholder(left, right)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EPipe{Left: left, Call: right}}
		case token.QuestionQuestion:
			if levelNullish < min {
				return left
			}
			p.advance()
			right := p.parseExpr(levelNullish + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: ast.BinNullish, Left: left, Right: right}}
		case token.Or2:
			if levelOr < min {
				return left
			}
			p.advance()
			right := p.parseExpr(levelOr + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: ast.BinOr, Left: left, Right: right}}
		case token.Amp2:
			if levelAnd < min {
				return left
			}
			p.advance()
			right := p.parseExpr(levelAnd + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: ast.BinAnd, Left: left, Right: right}}
		case token.EqEq, token.NotEq:
			if levelEquality < min {
				return left
			}
			op := ast.BinEq
			if p.tok.Kind == token.NotEq {
				op = ast.BinNotEq
			}
			p.advance()
			right := p.parseExpr(levelEquality + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: op, Left: left, Right: right}}
		case token.Lt, token.Gt, token.LtEq, token.GtEq:
			if levelComparison < min {
				return left
			}
			op := compareOpFor(p.tok.Kind)
			p.advance()
			right := p.parseExpr(levelComparison + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: op, Left: left, Right: right}}
		case token.Plus, token.Minus:
			if levelAdditive < min {
				return left
			}
			op := ast.BinAdd
			if p.tok.Kind == token.Minus {
				op = ast.BinSub
			}
			p.advance()
			right := p.parseExpr(levelAdditive + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: op, Left: left, Right: right}}
		case token.Star, token.Slash, token.Percent:
			if levelMultiplicative < min {
				return left
			}
			op := mulOpFor(p.tok.Kind)
			p.advance()
			right := p.parseExpr(levelMultiplicative + 1)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: op, Left: left, Right: right}}
		case token.StarStar:
			if levelExponent < min {
				return left
			}
			p.advance()
			right := p.parseExpr(levelExponent) // right-associative
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EBinary{Op: ast.BinPow, Left: left, Right: right}}
		case token.Dot:
			p.advance()
			name := p.expectIdent()
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EMember{Target: left, Name: name}}
		case token.QuestionDot:
			p.advance()
			name := p.expectIdent()
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EMember{Target: left, Name: name, Optional: true}}
		case token.LParen:
			args, placeholderIdx := p.parseArgs()
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.ECall{Callee: left, Args: args, PlaceholderIndex: placeholderIdx}}
		case token.LBracket:
			p.advance()
			idx := p.parseExpr(lowest)
			p.expect(token.RBracket)
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EIndex{Target: left, Index: idx}}
		case token.Question:
			p.advance()
			left = ast.Expr{Span: logger.Span{Start: left.Span.Start, End: p.prevEnd}, Data: &ast.EErrorPropagate{Operand: left}}
		default:
			return left
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, int) {
	p.advance() // '('
	var args []ast.Expr
	placeholder := -1
	for p.tok.Kind != token.RParen && p.tok.Kind != token.EOF {
		if p.tok.Kind == token.Ident && p.tok.TextSlice == "_" {
			placeholder = len(args)
			args = append(args, ast.Expr{Span: p.tok.Span, Data: &ast.EIdent{Name: "_"}})
			p.advance()
		} else {
			args = append(args, p.parseExpr(levelAssign))
		}
		if p.tok.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return args, placeholder
}

// rewritePlaceholder turns "a |> f(_, b)" into a call with "_" replaced by
// the pipe's left side, and bare "a |> f" into "f(a)" (§4.2, §4.6).
func rewritePlaceholder(left ast.Expr, rhs ast.Expr) ast.Expr {
	call, ok := rhs.Data.(*ast.ECall)
	if !ok {
		return ast.Expr{Span: rhs.Span, Data: &ast.ECall{Callee: rhs, Args: []ast.Expr{left}}}
	}
	if call.PlaceholderIndex < 0 {
		newArgs := append([]ast.Expr{left}, call.Args...)
		return ast.Expr{Span: rhs.Span, Data: &ast.ECall{Callee: call.Callee, Args: newArgs, PlaceholderIndex: -1}}
	}
	newArgs := make([]ast.Expr, len(call.Args))
	copy(newArgs, call.Args)
	newArgs[call.PlaceholderIndex] = left
	return ast.Expr{Span: rhs.Span, Data: &ast.ECall{Callee: call.Callee, Args: newArgs, PlaceholderIndex: -1}}
}

func assignOpFor(k token.Kind) ast.AssignOp {
	switch k {
	case token.PlusEq:
		return ast.AssignAdd
	case token.MinusEq:
		return ast.AssignSub
	case token.StarEq:
		return ast.AssignMul
	case token.SlashEq:
		return ast.AssignDiv
	default:
		return ast.AssignSet
	}
}

func compareOpFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.Lt:
		return ast.BinLt
	case token.Gt:
		return ast.BinGt
	case token.LtEq:
		return ast.BinLtEq
	default:
		return ast.BinGtEq
	}
}

func mulOpFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.Star:
		return ast.BinMul
	case token.Slash:
		return ast.BinDiv
	default:
		return ast.BinMod
	}
}
