// Package prompthandler implements the reference DSL handler named in
// §4.5: directive parsing over an inline "@prompt" block's text, ordered
// message-section construction, and emission of a single PromptTemplate
// construction per block. Grounded on withastro-compiler's
// internal/js_scanner (line-oriented directive scanning over raw text) for
// the scanning style, with github.com/lithammer/dedent dedenting literal
// text runs and github.com/iancoleman/strcase minting safe ctx binding
// names for simple-identifier captures.
package prompthandler

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/lithammer/dedent"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/dslfw"
	"github.com/agentscript-lang/agentscript/internal/jsast"
)

const runtimeModule = "@agentscript/prompt-runtime"

// Handler is the stateless reference prompt handler (§4.5).
type Handler struct{}

func New() *Handler { return &Handler{} }

// segment is one piece of a message's content: literal text or a capture.
type segment struct {
	text    string
	capture *ast.Expr
}

type message struct {
	role     string
	segments []segment
}

type example struct{ raw string }

// Handle implements dslfw.Handler.
func (h *Handler) Handle(block *ast.DslBlock, ctx *dslfw.Context) ([]jsast.Stmt, []jsast.Import, error) {
	switch content := block.Content.(type) {
	case ast.DslFileRef:
		return h.handleFileRef(block, content)
	case ast.DslInline:
		return h.handleInline(block, content, ctx)
	default:
		return nil, nil, &dslfw.Error{Message: "unrecognized prompt block content"}
	}
}

func (h *Handler) handleFileRef(block *ast.DslBlock, ref ast.DslFileRef) ([]jsast.Stmt, []jsast.Import, error) {
	// §4.5 "FileRef handler behavior": read the file at runtime and wrap
	// it in the same PromptTemplate shape; exact syntax is
	// implementation-defined as long as it compiles to valid ESM.
	init := &jsast.ENew{
		Ctor: &jsast.EIdent{Name: "PromptTemplate"},
		Args: []jsast.Expr{&jsast.EObject{Props: []jsast.ObjectProp{
			{Key: "messages", Value: &jsast.EArray{Elements: []jsast.Expr{
				&jsast.EObject{Props: []jsast.ObjectProp{
					{Key: "role", Value: &jsast.EString{Value: "system"}},
					{Key: "content", Value: &jsast.ERaw{Text: fmt.Sprintf("await readFile(new URL(%s, import.meta.url), \"utf-8\")", quote(ref.Path))}},
				}},
			}}},
		}}},
	}
	stmts := []jsast.Stmt{&jsast.SConst{Name: block.Name, Init: init}}
	imports := []jsast.Import{
		{Path: runtimeModule, Names: []jsast.ImportName{{Name: "PromptTemplate"}}},
		{Path: "node:fs/promises", Names: []jsast.ImportName{{Name: "readFile"}}},
	}
	return stmts, imports, nil
}

func (h *Handler) handleInline(block *ast.DslBlock, content ast.DslInline, ctx *dslfw.Context) ([]jsast.Stmt, []jsast.Import, error) {
	messages, models, outputSchema, constraints, messagesPlaceholder, err := h.parseDirectives(content.Parts)
	if err != nil {
		return nil, nil, err
	}

	captures := &captureSet{}
	props := []jsast.ObjectProp{}
	if messagesPlaceholder != nil {
		props = append(props, jsast.ObjectProp{Key: "messagesPlaceholder", Value: ctx.TranslateExpr(*messagesPlaceholder)})
	} else {
		msgExprs := make([]jsast.Expr, len(messages))
		for i, m := range messages {
			msgExprs[i] = h.renderMessage(m, ctx, captures)
		}
		props = append(props, jsast.ObjectProp{Key: "messages", Value: &jsast.EArray{Elements: msgExprs}})
	}
	if len(models) > 0 {
		elems := make([]jsast.Expr, len(models))
		for i, m := range models {
			elems[i] = &jsast.EString{Value: m}
		}
		props = append(props, jsast.ObjectProp{Key: "model", Value: &jsast.EArray{Elements: elems}})
	}
	if outputSchema != nil {
		props = append(props, jsast.ObjectProp{Key: "outputSchema", Value: ctx.TranslateExpr(*outputSchema)})
	}
	if constraints != nil {
		props = append(props, jsast.ObjectProp{Key: "constraints", Value: ctx.TranslateExpr(*constraints)})
	}
	if len(captures.props) > 0 {
		props = append(props, jsast.ObjectProp{Key: "captures", Value: &jsast.EObject{Props: captures.props}})
	}

	init := &jsast.ENew{Ctor: &jsast.EIdent{Name: "PromptTemplate"}, Args: []jsast.Expr{&jsast.EObject{Props: props}}}
	stmts := []jsast.Stmt{&jsast.SConst{Name: block.Name, Init: init}}
	imports := []jsast.Import{{Path: runtimeModule, Names: []jsast.ImportName{{Name: "PromptTemplate"}}}}
	return stmts, imports, nil
}

// renderMessage lowers a message section to its JS object literal:
// { role, content } where content is a template-literal arrow function if
// it has any capture, or a plain string literal otherwise (§4.5's
// "Emission" rule).
func (h *Handler) renderMessage(m message, ctx *dslfw.Context, captures *captureSet) jsast.Expr {
	hasCapture := false
	for _, seg := range m.segments {
		if seg.capture != nil {
			hasCapture = true
			break
		}
	}
	var content jsast.Expr
	if !hasCapture {
		var sb strings.Builder
		for _, seg := range m.segments {
			sb.WriteString(seg.text)
		}
		content = &jsast.EString{Value: dedent.Dedent(sb.String())}
	} else {
		tmpl := &jsast.ETemplate{Parts: []string{""}}
		for _, seg := range m.segments {
			if seg.capture != nil {
				tmpl.Exprs = append(tmpl.Exprs, captures.ref(*seg.capture, ctx))
				tmpl.Parts = append(tmpl.Parts, "")
			} else {
				last := len(tmpl.Parts) - 1
				tmpl.Parts[last] += dedent.Dedent(seg.text)
			}
		}
		content = &jsast.EArrow{Params: []string{"ctx"}, ExprBody: tmpl}
	}
	return &jsast.EObject{Props: []jsast.ObjectProp{
		{Key: "role", Value: &jsast.EString{Value: m.role}},
		{Key: "content", Value: content},
	}}
}

// captureSet accumulates the synthetic "__capture_<n>" bindings a block's
// complex (non-identifier) captures need. Its props end up as the
// PromptTemplate's "captures" option, which the prompt runtime merges into
// ctx before invoking a message's content function, so "ctx.__capture_<n>"
// resolves the same way "ctx.<name>" does for a simple identifier capture.
type captureSet struct {
	props []jsast.ObjectProp
}

// ref binds a simple identifier capture to "ctx.<name>" (the name converted
// to lowerCamelCase through strcase; reserved words are not renamed) and a
// complex capture to a synthetic "ctx.__capture_<n>",
// recording the translated expression under that name in the set.
func (cs *captureSet) ref(e ast.Expr, ctx *dslfw.Context) jsast.Expr {
	if ident, ok := e.Data.(*ast.EIdent); ok {
		name := strcase.ToLowerCamel(ident.Name)
		if name == "" {
			name = ident.Name
		}
		return &jsast.EMember{Target: &jsast.EIdent{Name: "ctx"}, Name: name}
	}
	name := fmt.Sprintf("__capture_%d", len(cs.props))
	cs.props = append(cs.props, jsast.ObjectProp{Key: name, Value: ctx.TranslateExpr(e)})
	return &jsast.EMember{Target: &jsast.EIdent{Name: "ctx"}, Name: name}
}

func (h *Handler) parseDirectives(parts []ast.DslPart) (messages []message, models []string, outputSchema, constraints *ast.Expr, messagesPlaceholder *ast.Expr, err error) {
	current := message{role: "system"}
	flushCurrent := func() {
		if len(current.segments) > 0 {
			messages = append(messages, current)
		}
	}
	haveModel, haveOutput, haveConstraints, haveMessages := false, false, false, false

	for i := 0; i < len(parts); i++ {
		switch p := parts[i].(type) {
		case ast.DslCapture:
			current.segments = append(current.segments, segment{capture: &p.Expr})
		case ast.DslText:
			lines := strings.Split(p.Text, "\n")
			for li, line := range lines {
				trimmed := strings.TrimSpace(line)
				switch {
				case strings.HasPrefix(trimmed, "@role "):
					flushCurrent()
					current = message{role: strings.TrimSpace(strings.TrimPrefix(trimmed, "@role "))}
				case strings.HasPrefix(trimmed, "@model "):
					if haveModel {
						return nil, nil, nil, nil, nil, &dslfw.Error{Message: "duplicate @model directive"}
					}
					haveModel = true
					for _, m := range strings.Split(strings.TrimSpace(strings.TrimPrefix(trimmed, "@model ")), "|") {
						if m = strings.TrimSpace(m); m != "" {
							models = append(models, m)
						}
					}
				case strings.HasPrefix(trimmed, "@output"):
					if haveOutput {
						return nil, nil, nil, nil, nil, &dslfw.Error{Message: "duplicate @output directive"}
					}
					haveOutput = true
					if i+1 < len(parts) {
						if cap, ok := parts[i+1].(ast.DslCapture); ok {
							outputSchema = &cap.Expr
							i++
						}
					}
				case strings.HasPrefix(trimmed, "@constraints"):
					if haveConstraints {
						return nil, nil, nil, nil, nil, &dslfw.Error{Message: "duplicate @constraints directive"}
					}
					haveConstraints = true
					if i+1 < len(parts) {
						if cap, ok := parts[i+1].(ast.DslCapture); ok {
							constraints = &cap.Expr
							i++
						}
					}
				case strings.HasPrefix(trimmed, "@messages"):
					if haveMessages {
						return nil, nil, nil, nil, nil, &dslfw.Error{Message: "duplicate @messages directive"}
					}
					haveMessages = true
					if i+1 < len(parts) {
						if cap, ok := parts[i+1].(ast.DslCapture); ok {
							messagesPlaceholder = &cap.Expr
							i++
						}
					}
				case strings.HasPrefix(trimmed, "@examples"):
					// An "@examples" line is accepted and dropped: its
					// text is not kept, and no "examples" option is
					// emitted.
					_ = example{raw: trimmed}
				default:
					text := line
					if li < len(lines)-1 {
						text += "\n"
					}
					current.segments = append(current.segments, segment{text: text})
				}
			}
		}
	}
	flushCurrent()
	return messages, models, outputSchema, constraints, messagesPlaceholder, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
