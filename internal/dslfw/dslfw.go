// Package dslfw is the DSL Framework and Handler Registry (§4.5): it routes
// ast.DslBlock nodes to registered handlers during codegen and hands each
// handler a narrow translation capability instead of the host AST itself.
// Grounded on the teacher's plugin-boundary style (esbuild's own resolver
// plugin interface keeps the same "opaque capability object, no concrete
// internals" shape).
package dslfw

import (
	"fmt"

	"github.com/agentscript-lang/agentscript/internal/ast"
	"github.com/agentscript-lang/agentscript/internal/jsast"
)

// Translator is implemented by codegen; it is the only capability a
// Context exposes to handlers, per §4.5's "opaque capture handoff".
type Translator interface {
	TranslateExpr(e ast.Expr) jsast.Expr
	TranslateBlock(b ast.Block) []jsast.Stmt
}

// Context is passed to Handler.Handle. It never exposes the host AST
// concretely — only the two translate operations the spec names.
type Context struct {
	t Translator
}

func NewContext(t Translator) *Context { return &Context{t: t} }

func (c *Context) TranslateExpr(e ast.Expr) jsast.Expr    { return c.t.TranslateExpr(e) }
func (c *Context) TranslateBlock(b ast.Block) []jsast.Stmt { return c.t.TranslateBlock(b) }

// Error is a handler-specific failure (§4.6: "Handler errors become
// diagnostics; generation continues for other items with a placeholder").
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Handler is the contract every DSL kind implements (§4.5).
type Handler interface {
	Handle(block *ast.DslBlock, ctx *Context) ([]jsast.Stmt, []jsast.Import, error)
}

// Registry is the process-wide "kind -> Handler" map (§4.5). Registration
// is idempotent: re-registering the same kind with the same handler value
// is a no-op, but the driver calls Register once at startup in practice.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Dispatch looks up block.Kind and invokes its handler. A missing handler
// produces the exact diagnostic text named in §4.5.
func (r *Registry) Dispatch(block *ast.DslBlock, ctx *Context) ([]jsast.Stmt, []jsast.Import, error) {
	h, ok := r.handlers[block.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("no handler registered for DSL kind '%s'", block.Kind)
	}
	return h.Handle(block, ctx)
}
