package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/logger"
)

// §8: type mismatches are a checker concern, not a parse-time error — a
// declared-type `let` with an incompatible literal initializer must still
// parse cleanly.
func TestLetWithTypeMismatchParsesCleanly(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, `let x: int = "hi";`)

	require.False(t, log.HasErrors())
	require.Len(t, mod.Items, 1)

	decl, ok := mod.Items[0].Data.(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
	assert.Equal(t, ast.DeclLet, decl.Kind)
	require.NotNil(t, decl.Type)

	lit, ok := decl.Init.Data.(*ast.EString)
	require.True(t, ok)
	assert.Equal(t, "hi", lit.Value)
}

// §8 / §4.2 capture shape: a capture with a single tail expression carries
// that expression directly; a capture with multiple statements (or any
// leading statement) carries Expr::Block instead.
func TestDslCaptureCollapsesSingleTailExpression(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, "@prompt greet ```Hello #{name} end\n```\n")
	require.False(t, log.HasErrors())
	require.Len(t, mod.Items, 1)

	block, ok := mod.Items[0].Data.(*ast.DslBlock)
	require.True(t, ok)
	inline, ok := block.Content.(ast.DslInline)
	require.True(t, ok)

	var captures []ast.DslCapture
	for _, part := range inline.Parts {
		if c, ok := part.(ast.DslCapture); ok {
			captures = append(captures, c)
		}
	}
	require.Len(t, captures, 1)

	ident, ok := captures[0].Expr.Data.(*ast.EIdent)
	require.True(t, ok, "single-tail-expression capture must collapse directly, not wrap in EBlock")
	assert.Equal(t, "name", ident.Name)
}

func TestDslCaptureWithStatementWrapsInBlock(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, "@prompt greet ```Hello #{let y = name; y}!\n```\n")
	require.False(t, log.HasErrors())
	require.Len(t, mod.Items, 1)

	block := mod.Items[0].Data.(*ast.DslBlock)
	inline := block.Content.(ast.DslInline)

	var captures []ast.DslCapture
	for _, part := range inline.Parts {
		if c, ok := part.(ast.DslCapture); ok {
			captures = append(captures, c)
		}
	}
	require.Len(t, captures, 1)

	blockExpr, ok := captures[0].Expr.Data.(*ast.EBlock)
	require.True(t, ok, "a capture with a leading statement must wrap in EBlock")
	require.Len(t, blockExpr.Block.Stmts, 1)
	require.NotNil(t, blockExpr.Block.Tail)
}

// §8 / §9: "@tool" only applies to "fn" declarations. Applying it to a
// non-fn declaration must emit the documented diagnostic and still parse
// (and return) the underlying declaration, rather than aborting.
func TestToolAnnotationOnStructEmitsDiagnosticAndContinues(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, `@tool struct Foo { name: string }`)

	require.True(t, log.HasErrors())
	diags := log.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "@tool annotation can only be applied to fn declarations")

	require.Len(t, mod.Items, 1)
	decl, ok := mod.Items[0].Data.(*ast.StructDecl)
	require.True(t, ok, "parser must still return the underlying struct declaration")
	assert.Equal(t, "Foo", decl.Name)
}

// §9: "@tool" is accepted both before and after "pub"/"async".
func TestToolAnnotationPlacementFlexibility(t *testing.T) {
	sources := []string{
		`@tool pub fn greet(name: string) -> string { name }`,
		`pub @tool fn greet(name: string) -> string { name }`,
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			log := logger.NewLog()
			mod := Parse(log, src)
			require.False(t, log.HasErrors())
			require.Len(t, mod.Items, 1)

			fn, ok := mod.Items[0].Data.(*ast.FnDecl)
			require.True(t, ok)
			assert.True(t, fn.Pub)
			require.NotNil(t, fn.Tool)
			assert.Equal(t, "greet", fn.Name)
		})
	}
}

// §9: doc comments buffer and attach to the declaration that follows them.
func TestDocCommentAttachesToFollowingItem(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, "/// Greets a person by name.\n/// Returns the greeting.\nfn greet(name: string) -> string { name }")
	require.False(t, log.HasErrors())
	require.Len(t, mod.Items, 1)
	require.Len(t, mod.Items[0].Doc, 2)
	assert.Contains(t, mod.Items[0].Doc[0], "Greets a person by name.")
}

// §4.2: the pipe operator with an explicit placeholder rewrites the
// placeholder's argument position; a bare pipe prepends the left operand.
func TestPipeRewritesPlaceholderPosition(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, `let x = a |> f(_, b);`)
	require.False(t, log.HasErrors())

	decl := mod.Items[0].Data.(*ast.VarDecl)
	pipe, ok := decl.Init.Data.(*ast.EPipe)
	require.True(t, ok, "a pipe parses to an EPipe node")
	call, ok := pipe.Call.Data.(*ast.ECall)
	require.True(t, ok, "placeholder pipe must rewrite directly to a call")

	require.Len(t, call.Args, 2)
	first, ok := call.Args[0].Data.(*ast.EIdent)
	require.True(t, ok)
	assert.Equal(t, "a", first.Name)
	second, ok := call.Args[1].Data.(*ast.EIdent)
	require.True(t, ok)
	assert.Equal(t, "b", second.Name)
}

func TestPipeWithoutPlaceholderPrependsLeft(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, `let x = a |> f(b);`)
	require.False(t, log.HasErrors())

	decl := mod.Items[0].Data.(*ast.VarDecl)
	pipe := decl.Init.Data.(*ast.EPipe)
	call := pipe.Call.Data.(*ast.ECall)
	require.Len(t, call.Args, 2)
	first := call.Args[0].Data.(*ast.EIdent)
	assert.Equal(t, "a", first.Name)
	second := call.Args[1].Data.(*ast.EIdent)
	assert.Equal(t, "b", second.Name)
}

// §4.2 error recovery: an unexpected top-level token produces a diagnostic
// and parsing resynchronizes at the next declaration boundary rather than
// aborting the whole module.
func TestParserRecoversAfterUnexpectedToken(t *testing.T) {
	log := logger.NewLog()
	mod := Parse(log, "pub ;\nfn ok() -> int { 1 }")
	require.True(t, log.HasErrors())

	var fn *ast.FnDecl
	for _, item := range mod.Items {
		if f, ok := item.Data.(*ast.FnDecl); ok {
			fn = f
		}
	}
	require.NotNil(t, fn, "parser must recover and still parse the following fn declaration")
	assert.Equal(t, "ok", fn.Name)
}
