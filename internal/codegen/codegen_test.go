package codegen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/dslfw"
	"github.com/agentscript-lang/agentscript/internal/jsast"
	"github.com/agentscript-lang/agentscript/internal/logger"
	"github.com/agentscript-lang/agentscript/internal/parser"
	"github.com/agentscript-lang/agentscript/internal/printer"
	"github.com/agentscript-lang/agentscript/internal/prompthandler"
)

// assertJsastEqual renders a unified diff (via go-difflib) on mismatch,
// using go-cmp for the underlying structural comparison.
func assertJsastEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		ud := difflib.UnifiedDiff{
			A:        difflib.SplitLines(fmt.Sprintf("%#v\n", want)),
			B:        difflib.SplitLines(fmt.Sprintf("%#v\n", got)),
			FromFile: "want",
			ToFile:   "got",
			Context:  3,
		}
		text, _ := difflib.GetUnifiedDiffString(ud)
		t.Fatalf("jsast mismatch (cmp.Diff):\n%s\nunified diff:\n%s", diff, text)
	}
}

func genFor(t *testing.T, source string) *jsast.Module {
	t.Helper()
	log := logger.NewLog()
	mod := parser.Parse(log, source)
	require.False(t, log.HasErrors(), "fixture source must parse cleanly")
	reg := dslfw.NewRegistry()
	reg.Register("prompt", prompthandler.New())
	g := New(log, reg)
	return g.Generate(mod)
}

// §4.6: enum construction lowers to a tagged plain object.
func TestEnumConstructLowersToTaggedObject(t *testing.T) {
	jsMod := genFor(t, `
enum Status {
	Active(since: int),
	Inactive,
}

let s = Status::Active(since: 2020);
`)
	require.Len(t, jsMod.Stmts, 1)
	decl, ok := jsMod.Stmts[0].(*jsast.SConst)
	require.True(t, ok)
	assert.Equal(t, "s", decl.Name)

	obj, ok := decl.Init.(*jsast.EObject)
	require.True(t, ok)
	assertJsastEqual(t, &jsast.EObject{Props: []jsast.ObjectProp{
		{Key: "tag", Value: &jsast.EString{Value: "Active"}},
		{Key: "since", Value: &jsast.ENumber{Text: "2020"}},
	}}, obj)
}

// A bare unit-variant reference lowers to a tag-only object.
func TestEnumUnitVariantLowersToTagOnlyObject(t *testing.T) {
	jsMod := genFor(t, `
enum Status {
	Active,
	Inactive,
}

let s = Status::Inactive;
`)
	decl := jsMod.Stmts[0].(*jsast.SConst)
	assertJsastEqual(t, &jsast.EObject{Props: []jsast.ObjectProp{
		{Key: "tag", Value: &jsast.EString{Value: "Inactive"}},
	}}, decl.Init)
}

// §4.6: pipe rewriting must not duplicate the left operand — the parser
// already spliced it into the call's Args, so codegen must translate the
// call as-is.
func TestPipeDoesNotDuplicateLeftOperand(t *testing.T) {
	jsMod := genFor(t, `
fn double(x: int) -> int { x * 2 }
fn addOne(x: int, y: int) -> int { x + y }

let r = 3 |> double |> addOne(_, 1);
`)
	require.Len(t, jsMod.Stmts, 3)
	decl := jsMod.Stmts[2].(*jsast.SConst)
	call, ok := decl.Init.(*jsast.ECall)
	require.True(t, ok)
	require.Len(t, call.Args, 2, "addOne must receive exactly 2 arguments, not a duplicated left operand")

	inner, ok := call.Args[0].(*jsast.ECall)
	require.True(t, ok, "the first arg must be the nested double(3) call")
	require.Len(t, inner.Args, 1)
	assertJsastEqual(t, &jsast.ENumber{Text: "3"}, inner.Args[0])
}

// §4.6 "Import rules": only @js externs actually referenced by the module
// contribute an import; unreferenced externs are silently dropped, and
// imports from the same module path are merged into one entry.
func TestOnlyReferencedExternsContributeImports(t *testing.T) {
	mod1 := "fetch"
	js1 := "fetchJson"
	mod2 := "log"

	log := logger.NewLog()
	astMod := &ast.Module{Items: []ast.Item{
		{Data: &ast.ExternFnDecl{Name: "fetchJson", Js: ast.JsAnnotation{Module: &mod1, JsName: &js1}}},
		{Data: &ast.ExternFnDecl{Name: "unused", Js: ast.JsAnnotation{Module: &mod2}}},
		{Data: &ast.ExprStmtItem{Expr: ast.Expr{Data: &ast.ECall{
			Callee: ast.Expr{Data: &ast.EIdent{Name: "fetchJson"}},
			Args:   []ast.Expr{{Data: &ast.EString{Value: "/x"}}},
		}}}},
	}}

	reg := dslfw.NewRegistry()
	g := New(log, reg)
	out := g.Generate(astMod)

	require.Len(t, out.Imports, 1, "the unreferenced 'log' extern must not appear")
	assert.Equal(t, "fetch", out.Imports[0].Path)
	require.Len(t, out.Imports[0].Names, 1)
	assert.Equal(t, "fetchJson", out.Imports[0].Names[0].Name)
}

// §4.5/§4.6: the reference prompt handler's emitted PromptTemplate call,
// golden-tested against the example in the spec (a plain-text message with
// one capture).
func TestPromptBlockGoldenOutput(t *testing.T) {
	jsMod := genFor(t, "@prompt greeting ```Hello #{name}!\n```\n")
	js := printer.Print(jsMod)
	require.True(t, strings.Contains(js, "PromptTemplate"), "expected a PromptTemplate(...) call, got:\n%s", js)
	snaps.MatchSnapshot(t, js)
}
