package ast

import "github.com/agentscript-lang/agentscript/internal/logger"

// DslBlock is a top-level "@kind name ``` ... ```" (or "from \"path\"")
// declaration (§3, §6).
type DslBlock struct {
	Kind    string
	Name    string
	Content DslContent
	Span    logger.Span
}

func (*DslBlock) isItemData() {}

type DslContent interface{ isDslContent() }

type DslInline struct{ Parts []DslPart }

func (DslInline) isDslContent() {}

type DslFileRef struct {
	Path string
	Span logger.Span
}

func (DslFileRef) isDslContent() {}

type DslPart interface{ isDslPart() }

type DslText struct {
	Text string
	Span logger.Span
}

func (DslText) isDslPart() {}

// DslCapture's inner Expr is a well-formed host expression (or Block) per
// §3's invariant; the capture boundary is transparent to the parser and
// checker.
type DslCapture struct {
	Expr Expr
	Span logger.Span
}

func (DslCapture) isDslPart() {}
