package dslfw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/jsast"
)

// stubTranslator records what it was asked to translate, standing in for
// codegen.Generator without importing internal/codegen (which would create
// a cycle back into this package).
type stubTranslator struct {
	exprCalls  []ast.Expr
	blockCalls []ast.Block
}

func (s *stubTranslator) TranslateExpr(e ast.Expr) jsast.Expr {
	s.exprCalls = append(s.exprCalls, e)
	return &jsast.ERaw{Text: "stub"}
}

func (s *stubTranslator) TranslateBlock(b ast.Block) []jsast.Stmt {
	s.blockCalls = append(s.blockCalls, b)
	return nil
}

type recordingHandler struct {
	gotBlock *ast.DslBlock
	gotCtx   *Context
}

func (h *recordingHandler) Handle(block *ast.DslBlock, ctx *Context) ([]jsast.Stmt, []jsast.Import, error) {
	h.gotBlock = block
	h.gotCtx = ctx
	ctx.TranslateExpr(ast.Expr{Data: &ast.EIdent{Name: "x"}})
	return []jsast.Stmt{&jsast.SRaw{Text: "// handled"}}, []jsast.Import{{Path: "mod", Names: []jsast.ImportName{{Name: "x"}}}}, nil
}

// §4.5: Dispatch routes by block.Kind to the registered handler.
func TestDispatchRoutesByKind(t *testing.T) {
	reg := NewRegistry()
	h := &recordingHandler{}
	reg.Register("prompt", h)

	block := &ast.DslBlock{Kind: "prompt", Name: "greet"}
	tr := &stubTranslator{}
	stmts, imports, err := reg.Dispatch(block, NewContext(tr))

	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Len(t, imports, 1)
	assert.Same(t, block, h.gotBlock)
	assert.Len(t, tr.exprCalls, 1, "Context.TranslateExpr must forward to the underlying Translator")
}

// §4.5: a DSL kind with no registered handler produces the exact
// diagnostic text named in the spec, rather than panicking.
func TestDispatchMissingHandler(t *testing.T) {
	reg := NewRegistry()
	block := &ast.DslBlock{Kind: "agent", Name: "a"}
	_, _, err := reg.Dispatch(block, NewContext(&stubTranslator{}))

	require.Error(t, err)
	assert.Equal(t, `no handler registered for DSL kind 'agent'`, err.Error())
}

// §9: a Context only ever forwards to the two Translator methods — it
// never exposes anything about the concrete translator beyond them.
func TestContextOnlyForwardsTranslateMethods(t *testing.T) {
	tr := &stubTranslator{}
	ctx := NewContext(tr)

	ctx.TranslateExpr(ast.Expr{Data: &ast.EInt{Value: 1}})
	ctx.TranslateBlock(ast.Block{})

	assert.Len(t, tr.exprCalls, 1)
	assert.Len(t, tr.blockCalls, 1)
}
