package prompthandler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/dslfw"
	"github.com/agentscript-lang/agentscript/internal/jsast"
)

// stubTranslator is a minimal dslfw.Translator that just marks an
// expression as translated, so handler tests can assert on how many times
// (and on what) translation was invoked without depending on codegen.
type stubTranslator struct{ calls int }

func (s *stubTranslator) TranslateExpr(e ast.Expr) jsast.Expr {
	s.calls++
	return &jsast.ERaw{Text: "translated"}
}
func (s *stubTranslator) TranslateBlock(b ast.Block) []jsast.Stmt { return nil }

func ident(name string) ast.Expr { return ast.Expr{Data: &ast.EIdent{Name: name}} }

func findConst(t *testing.T, stmts []jsast.Stmt) *jsast.SConst {
	t.Helper()
	require.Len(t, stmts, 1)
	c, ok := stmts[0].(*jsast.SConst)
	require.True(t, ok)
	return c
}

// §4.5: a message with no captures renders to a plain string literal, not
// a template/arrow.
func TestInlinePlainTextMessage(t *testing.T) {
	h := New()
	block := &ast.DslBlock{Kind: "prompt", Name: "greeting", Content: ast.DslInline{
		Parts: []ast.DslPart{ast.DslText{Text: "Hello there"}},
	}}
	stmts, imports, err := h.Handle(block, dslfw.NewContext(&stubTranslator{}))
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "@agentscript/prompt-runtime", imports[0].Path)

	decl := findConst(t, stmts)
	assert.Equal(t, "greeting", decl.Name)

	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	messages := obj.Props[0].Value.(*jsast.EArray)
	msgObj := messages.Elements[0].(*jsast.EObject)
	content := msgObj.Props[1].Value
	str, ok := content.(*jsast.EString)
	require.True(t, ok, "a capture-free message must render as a plain string")
	assert.Equal(t, "Hello there", str.Value)
}

// §4.5 / §9: a simple-identifier capture binds directly to "ctx.<name>"
// and contributes nothing to the block's "captures" option.
func TestInlineSimpleIdentifierCaptureBindsToCtxMember(t *testing.T) {
	h := New()
	block := &ast.DslBlock{Kind: "prompt", Name: "greeting", Content: ast.DslInline{
		Parts: []ast.DslPart{
			ast.DslText{Text: "Hello "},
			ast.DslCapture{Expr: ident("name")},
			ast.DslText{Text: "!"},
		},
	}}
	tr := &stubTranslator{}
	stmts, _, err := h.Handle(block, dslfw.NewContext(tr))
	require.NoError(t, err)
	assert.Equal(t, 0, tr.calls, "a simple identifier capture must not go through Context.TranslateExpr")

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	require.Len(t, obj.Props, 1, "no 'captures' option when every capture was a simple identifier")

	messages := obj.Props[0].Value.(*jsast.EArray)
	msgObj := messages.Elements[0].(*jsast.EObject)
	arrow, ok := msgObj.Props[1].Value.(*jsast.EArrow)
	require.True(t, ok, "a message with a capture must render as a ctx => `...` arrow")
	tmpl := arrow.ExprBody.(*jsast.ETemplate)
	require.Len(t, tmpl.Exprs, 1)
	member, ok := tmpl.Exprs[0].(*jsast.EMember)
	require.True(t, ok)
	assert.Equal(t, "name", member.Name)
}

// A non-identifier capture mints a synthetic "__capture_<n>" binding and
// surfaces it under the "captures" option.
func TestInlineComplexCaptureMintsSyntheticBinding(t *testing.T) {
	h := New()
	complex := ast.Expr{Data: &ast.EBinary{Op: ast.BinAdd, Left: ident("a"), Right: ident("b")}}
	block := &ast.DslBlock{Kind: "prompt", Name: "greeting", Content: ast.DslInline{
		Parts: []ast.DslPart{
			ast.DslText{Text: "Sum: "},
			ast.DslCapture{Expr: complex},
		},
	}}
	tr := &stubTranslator{}
	stmts, _, err := h.Handle(block, dslfw.NewContext(tr))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls, "a complex capture must be translated exactly once")

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)

	var capturesProp *jsast.ObjectProp
	for i := range obj.Props {
		if obj.Props[i].Key == "captures" {
			capturesProp = &obj.Props[i]
		}
	}
	require.NotNil(t, capturesProp, "a complex capture must produce a 'captures' option")
	capObj := capturesProp.Value.(*jsast.EObject)
	require.Len(t, capObj.Props, 1)
	assert.Equal(t, "__capture_0", capObj.Props[0].Key)
}

// Two independent complex captures in the same block must mint distinct,
// non-colliding synthetic names.
func TestInlineMultipleComplexCapturesDoNotCollide(t *testing.T) {
	h := New()
	a := ast.Expr{Data: &ast.EBinary{Op: ast.BinAdd, Left: ident("a"), Right: ident("b")}}
	b := ast.Expr{Data: &ast.EBinary{Op: ast.BinMul, Left: ident("c"), Right: ident("d")}}
	block := &ast.DslBlock{Kind: "prompt", Name: "g", Content: ast.DslInline{
		Parts: []ast.DslPart{
			ast.DslCapture{Expr: a},
			ast.DslText{Text: " and "},
			ast.DslCapture{Expr: b},
		},
	}}
	stmts, _, err := h.Handle(block, dslfw.NewContext(&stubTranslator{}))
	require.NoError(t, err)

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	var capObj *jsast.EObject
	for _, p := range obj.Props {
		if p.Key == "captures" {
			capObj = p.Value.(*jsast.EObject)
		}
	}
	require.NotNil(t, capObj)
	require.Len(t, capObj.Props, 2)
	assert.Equal(t, "__capture_0", capObj.Props[0].Key)
	assert.Equal(t, "__capture_1", capObj.Props[1].Key)
}

// §4.5: "@model" lists one or more pipe-separated model names.
func TestModelDirectiveParsesPipeSeparatedList(t *testing.T) {
	h := New()
	block := &ast.DslBlock{Kind: "prompt", Name: "g", Content: ast.DslInline{
		Parts: []ast.DslPart{ast.DslText{Text: "@model gpt-4 | gpt-3.5-turbo\nHello"}},
	}}
	stmts, _, err := h.Handle(block, dslfw.NewContext(&stubTranslator{}))
	require.NoError(t, err)

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	var modelsProp *jsast.ObjectProp
	for i := range obj.Props {
		if obj.Props[i].Key == "model" {
			modelsProp = &obj.Props[i]
		}
	}
	require.NotNil(t, modelsProp)
	arr := modelsProp.Value.(*jsast.EArray)
	require.Len(t, arr.Elements, 2)
	assert.Equal(t, "gpt-4", arr.Elements[0].(*jsast.EString).Value)
	assert.Equal(t, "gpt-3.5-turbo", arr.Elements[1].(*jsast.EString).Value)
}

func TestDuplicateModelDirectiveErrors(t *testing.T) {
	h := New()
	block := &ast.DslBlock{Kind: "prompt", Name: "g", Content: ast.DslInline{
		Parts: []ast.DslPart{ast.DslText{Text: "@model a\n@model b\nHello"}},
	}}
	_, _, err := h.Handle(block, dslfw.NewContext(&stubTranslator{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate @model directive")
}

// §9 open question: "@output" with a capture reference forwards the
// translated expression untouched as the "outputSchema" option.
func TestOutputDirectiveWithCaptureForwardsExpression(t *testing.T) {
	h := New()
	schemaExpr := ident("MySchema")
	block := &ast.DslBlock{Kind: "prompt", Name: "g", Content: ast.DslInline{
		Parts: []ast.DslPart{
			ast.DslText{Text: "@output "},
			ast.DslCapture{Expr: schemaExpr},
			ast.DslText{Text: "\nHello"},
		},
	}}
	tr := &stubTranslator{}
	stmts, _, err := h.Handle(block, dslfw.NewContext(tr))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	found := false
	for _, p := range obj.Props {
		if p.Key == "outputSchema" {
			found = true
		}
	}
	assert.True(t, found)
}

// §4.5 FileRef: a "from" DSL block renders to the same PromptTemplate
// shape, reading the referenced file at runtime.
func TestFileRefHandler(t *testing.T) {
	h := New()
	// a zero-value DslInline{} content (the default) must still succeed
	// with an empty message list, exercising the no-parts path.
	emptyBlock := &ast.DslBlock{Kind: "prompt", Name: "empty", Content: ast.DslInline{}}
	_, _, err := h.Handle(emptyBlock, dslfw.NewContext(&stubTranslator{}))
	require.NoError(t, err)

	fileBlock := &ast.DslBlock{Kind: "prompt", Name: "fromFile", Content: ast.DslFileRef{Path: "greeting.txt"}}
	stmts, imports, err := h.Handle(fileBlock, dslfw.NewContext(&stubTranslator{}))
	require.NoError(t, err)
	require.Len(t, imports, 2)

	decl := findConst(t, stmts)
	init := decl.Init.(*jsast.ENew)
	obj := init.Args[0].(*jsast.EObject)
	messages := obj.Props[0].Value.(*jsast.EArray)
	msgObj := messages.Elements[0].(*jsast.EObject)
	raw := msgObj.Props[1].Value.(*jsast.ERaw)
	assert.True(t, strings.Contains(raw.Text, "greeting.txt"))
}
