// Package printer serializes a jsast.Module to ES2020 ESM text. Modeled on
// the teacher's internal/js_printer: a single buffering Printer walking the
// AST and writing straight to a strings.Builder, favoring correctness and
// consistent spacing over minification (§4.6 "Emitter").
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentscript-lang/agentscript/internal/jsast"
)

type Printer struct {
	b      strings.Builder
	indent int
}

// Print renders mod per §6's "Output format": imports first in source
// order, then declarations in source order.
func Print(mod *jsast.Module) string {
	p := &Printer{}
	for _, imp := range mod.Imports {
		p.printImport(imp)
	}
	if len(mod.Imports) > 0 && len(mod.Stmts) > 0 {
		p.b.WriteByte('\n')
	}
	for i, s := range mod.Stmts {
		if i > 0 {
			p.b.WriteByte('\n')
		}
		p.printStmt(s)
	}
	return p.b.String()
}

func (p *Printer) writeIndent() {
	p.b.WriteString(strings.Repeat("  ", p.indent))
}

func (p *Printer) printImport(imp jsast.Import) {
	p.b.WriteString("import { ")
	for i, n := range imp.Names {
		if i > 0 {
			p.b.WriteString(", ")
		}
		if n.Alias != "" {
			fmt.Fprintf(&p.b, "%s as %s", n.Name, n.Alias)
		} else {
			p.b.WriteString(n.Name)
		}
	}
	fmt.Fprintf(&p.b, " } from %s;\n", strconv.Quote(imp.Path))
}

func (p *Printer) printBlock(stmts []jsast.Stmt) {
	p.b.WriteString("{\n")
	p.indent++
	for _, s := range stmts {
		p.writeIndent()
		p.printStmt(s)
	}
	p.indent--
	p.writeIndent()
	p.b.WriteString("}")
}

func (p *Printer) printStmt(s jsast.Stmt) {
	switch d := s.(type) {
	case *jsast.SConst:
		fmt.Fprintf(&p.b, "const %s = ", d.Name)
		p.printExpr(d.Init)
		p.b.WriteString(";\n")
	case *jsast.SLet:
		fmt.Fprintf(&p.b, "let %s = ", d.Name)
		p.printExpr(d.Init)
		p.b.WriteString(";\n")
	case *jsast.SExpr:
		p.printExpr(d.Value)
		p.b.WriteString(";\n")
	case *jsast.SReturn:
		if d.Value == nil {
			p.b.WriteString("return;\n")
			return
		}
		p.b.WriteString("return ")
		p.printExpr(d.Value)
		p.b.WriteString(";\n")
	case *jsast.SIf:
		p.b.WriteString("if (")
		p.printExpr(d.Cond)
		p.b.WriteString(") ")
		p.printBlock(d.Then)
		if d.Else != nil {
			p.b.WriteString(" else ")
			p.printBlock(d.Else)
		}
		p.b.WriteString("\n")
	case *jsast.SWhile:
		p.b.WriteString("while (")
		p.printExpr(d.Cond)
		p.b.WriteString(") ")
		p.printBlock(d.Body)
		p.b.WriteString("\n")
	case *jsast.SForOf:
		fmt.Fprintf(&p.b, "for (const %s of ", d.Binding)
		p.printExpr(d.Iter)
		p.b.WriteString(") ")
		p.printBlock(d.Body)
		p.b.WriteString("\n")
	case *jsast.SAssign:
		p.printExpr(d.Target)
		fmt.Fprintf(&p.b, " %s ", d.Op)
		p.printExpr(d.Value)
		p.b.WriteString(";\n")
	case *jsast.STry:
		p.b.WriteString("try ")
		p.printBlock(d.Body)
		fmt.Fprintf(&p.b, " catch (%s) ", d.CatchBinding)
		p.printBlock(d.CatchBody)
		p.b.WriteString("\n")
	case *jsast.SFunction:
		if d.Exported {
			p.b.WriteString("export ")
		}
		if d.Default {
			p.b.WriteString("default ")
		}
		if d.Async {
			p.b.WriteString("async ")
		}
		fmt.Fprintf(&p.b, "function %s(%s) ", d.Name, strings.Join(d.Params, ", "))
		p.printBlock(d.Body)
		p.b.WriteString("\n")
	case *jsast.SRaw:
		p.b.WriteString(d.Text)
		p.b.WriteString("\n")
	}
}

func (p *Printer) printExpr(e jsast.Expr) {
	switch d := e.(type) {
	case *jsast.EIdent:
		p.b.WriteString(d.Name)
	case *jsast.ENumber:
		p.b.WriteString(d.Text)
	case *jsast.EString:
		p.b.WriteString(strconv.Quote(d.Value))
	case *jsast.EBool:
		if d.Value {
			p.b.WriteString("true")
		} else {
			p.b.WriteString("false")
		}
	case *jsast.ENull:
		p.b.WriteString("null")
	case *jsast.ETemplate:
		p.b.WriteByte('`')
		for i, part := range d.Parts {
			p.b.WriteString(part)
			if i < len(d.Exprs) {
				p.b.WriteString("${")
				p.printExpr(d.Exprs[i])
				p.b.WriteString("}")
			}
		}
		p.b.WriteByte('`')
	case *jsast.EArray:
		p.b.WriteString("[")
		for i, el := range d.Elements {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.printExpr(el)
		}
		p.b.WriteString("]")
	case *jsast.EObject:
		if len(d.Props) == 0 {
			p.b.WriteString("{}")
			return
		}
		p.b.WriteString("{ ")
		for i, prop := range d.Props {
			if i > 0 {
				p.b.WriteString(", ")
			}
			fmt.Fprintf(&p.b, "%s: ", jsPropKey(prop.Key))
			p.printExpr(prop.Value)
		}
		p.b.WriteString(" }")
	case *jsast.EBinary:
		p.printExpr(d.Left)
		fmt.Fprintf(&p.b, " %s ", d.Op)
		p.printExpr(d.Right)
	case *jsast.EUnary:
		p.b.WriteString(d.Op)
		p.printExpr(d.Operand)
	case *jsast.EInstanceOf:
		p.printExpr(d.Value)
		fmt.Fprintf(&p.b, " instanceof %s", d.Ctor)
	case *jsast.ECall:
		p.printExpr(d.Callee)
		p.printArgs(d.Args)
	case *jsast.ENew:
		p.b.WriteString("new ")
		p.printExpr(d.Ctor)
		p.printArgs(d.Args)
	case *jsast.EMember:
		p.printExpr(d.Target)
		if d.Optional {
			p.b.WriteString("?.")
		} else {
			p.b.WriteString(".")
		}
		p.b.WriteString(d.Name)
	case *jsast.EIndex:
		p.printExpr(d.Target)
		p.b.WriteString("[")
		p.printExpr(d.Index)
		p.b.WriteString("]")
	case *jsast.EArrow:
		if d.Async {
			p.b.WriteString("async ")
		}
		fmt.Fprintf(&p.b, "(%s) => ", strings.Join(d.Params, ", "))
		if d.Stmts != nil {
			p.printBlock(d.Stmts)
		} else {
			p.printExpr(d.ExprBody)
		}
	case *jsast.EIIFE:
		p.b.WriteString("(() => ")
		p.printBlock(d.Stmts)
		p.b.WriteString(")()")
	case *jsast.ERaw:
		p.b.WriteString(d.Text)
	}
}

func (p *Printer) printArgs(args []jsast.Expr) {
	p.b.WriteString("(")
	for i, a := range args {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.printExpr(a)
	}
	p.b.WriteString(")")
}

// jsPropKey quotes an object-literal key only when it isn't a valid bare
// identifier, matching the teacher's printer convention of minimal quoting.
func jsPropKey(key string) string {
	if key == "" {
		return strconv.Quote(key)
	}
	for i, r := range key {
		isLetter := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return strconv.Quote(key)
		}
		if i > 0 && !isLetter && !isDigit {
			return strconv.Quote(key)
		}
	}
	return key
}
