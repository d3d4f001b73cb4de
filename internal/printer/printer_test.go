package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentscript-lang/agentscript/internal/jsast"
)

// §6 "Output format": imports render first, in source order, merged into
// one "import { ... } from ..." per path, followed by a blank line before
// the first declaration.
func TestPrintImportsPrecedeDeclarations(t *testing.T) {
	mod := &jsast.Module{
		Imports: []jsast.Import{
			{Path: "fetch", Names: []jsast.ImportName{{Name: "fetchJson"}, {Name: "raw", Alias: "fetchRaw"}}},
		},
		Stmts: []jsast.Stmt{&jsast.SConst{Name: "x", Init: &jsast.ENumber{Text: "1"}}},
	}
	out := Print(mod)
	assert.Equal(t, "import { fetchJson, raw as fetchRaw } from \"fetch\";\n\nconst x = 1;\n", out)
}

func TestPrintNoImportsNoBlankLine(t *testing.T) {
	mod := &jsast.Module{Stmts: []jsast.Stmt{&jsast.SConst{Name: "x", Init: &jsast.ENumber{Text: "1"}}}}
	out := Print(mod)
	assert.Equal(t, "const x = 1;\n", out)
}

func printExpr(t *testing.T, e jsast.Expr) string {
	t.Helper()
	p := &Printer{}
	p.printExpr(e)
	return p.b.String()
}

func TestPrintTemplateLiteral(t *testing.T) {
	tmpl := &jsast.ETemplate{
		Parts: []string{"Hello ", "!"},
		Exprs: []jsast.Expr{&jsast.EIdent{Name: "name"}},
	}
	assert.Equal(t, "`Hello ${name}!`", printExpr(t, tmpl))
}

func TestPrintObjectLiteralEmptyAndPopulated(t *testing.T) {
	assert.Equal(t, "{}", printExpr(t, &jsast.EObject{}))

	obj := &jsast.EObject{Props: []jsast.ObjectProp{
		{Key: "role", Value: &jsast.EString{Value: "system"}},
		{Key: "content", Value: &jsast.EIdent{Name: "x"}},
	}}
	assert.Equal(t, `{ role: "system", content: x }`, printExpr(t, obj))
}

// §6: an object key is only quoted when it isn't a valid bare JS
// identifier (teacher's printer convention of minimal quoting).
func TestPropKeyQuotingIsMinimal(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"role", "role"},
		{"_private", "_private"},
		{"$special", "$special"},
		{"camelCase1", "camelCase1"},
		{"__capture_0", "__capture_0"},
		{"2nd", `"2nd"`},
		{"has space", `"has space"`},
		{"kebab-case", `"kebab-case"`},
		{"", `""`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, jsPropKey(c.key), "key %q", c.key)
	}
}

func TestPrintArrowExprBodyVsBlockBody(t *testing.T) {
	exprArrow := &jsast.EArrow{Params: []string{"ctx"}, ExprBody: &jsast.EIdent{Name: "ctx"}}
	assert.Equal(t, "(ctx) => ctx", printExpr(t, exprArrow))

	blockArrow := &jsast.EArrow{
		Params: []string{"x"},
		Async:  true,
		Stmts:  []jsast.Stmt{&jsast.SReturn{Value: &jsast.EIdent{Name: "x"}}},
	}
	assert.Equal(t, "async (x) => {\n  return x;\n}", printExpr(t, blockArrow))
}

func TestPrintNewAndMemberAndOptionalChain(t *testing.T) {
	n := &jsast.ENew{Ctor: &jsast.EIdent{Name: "PromptTemplate"}, Args: []jsast.Expr{&jsast.EObject{}}}
	assert.Equal(t, "new PromptTemplate({})", printExpr(t, n))

	m := &jsast.EMember{Target: &jsast.EIdent{Name: "ctx"}, Name: "name"}
	assert.Equal(t, "ctx.name", printExpr(t, m))

	opt := &jsast.EMember{Target: &jsast.EIdent{Name: "ctx"}, Name: "name", Optional: true}
	assert.Equal(t, "ctx?.name", printExpr(t, opt))
}

func TestPrintIfElse(t *testing.T) {
	p := &Printer{}
	p.printStmt(&jsast.SIf{
		Cond: &jsast.EBool{Value: true},
		Then: []jsast.Stmt{&jsast.SExpr{Value: &jsast.EIdent{Name: "a"}}},
		Else: []jsast.Stmt{&jsast.SExpr{Value: &jsast.EIdent{Name: "b"}}},
	})
	assert.Equal(t, "if (true) {\n  a;\n} else {\n  b;\n}\n", p.b.String())
}

func TestPrintTryCatch(t *testing.T) {
	p := &Printer{}
	p.printStmt(&jsast.STry{
		Body:         []jsast.Stmt{&jsast.SExpr{Value: &jsast.EIdent{Name: "risky"}}},
		CatchBinding: "err",
		CatchBody:    []jsast.Stmt{&jsast.SExpr{Value: &jsast.EIdent{Name: "err"}}},
	})
	assert.Equal(t, "try {\n  risky;\n} catch (err) {\n  err;\n}\n", p.b.String())
}

func TestPrintExportedAsyncFunction(t *testing.T) {
	p := &Printer{}
	p.printStmt(&jsast.SFunction{
		Name: "run", Exported: true, Async: true, Params: []string{"x", "y"},
		Body: []jsast.Stmt{&jsast.SReturn{Value: &jsast.EIdent{Name: "x"}}},
	})
	assert.Equal(t, "export async function run(x, y) {\n  return x;\n}\n", p.b.String())
}

func TestPrintRawStmtAndExpr(t *testing.T) {
	p := &Printer{}
	p.printStmt(&jsast.SRaw{Text: "// placeholder"})
	assert.Equal(t, "// placeholder\n", p.b.String())

	assert.Equal(t, "1 + 1", printExpr(t, &jsast.EBinary{Op: "+", Left: &jsast.ENumber{Text: "1"}, Right: &jsast.ENumber{Text: "1"}}))
}
