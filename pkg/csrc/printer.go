package csrc

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raymyers/loopcc/pkg/ctypes"
)

// Printer outputs emitted C with two-space indentation
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new C printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

// PrintStructDef prints a struct definition
func (p *Printer) PrintStructDef(s ctypes.Tstruct) {
	fmt.Fprintf(p.w, "struct %s {\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(p.w, "    %s;\n", ctypes.FieldDecl(f))
	}
	fmt.Fprintln(p.w, "};")
}

func (p *Printer) printDoc(fn *Function) {
	for _, line := range fn.Doc {
		if line == "" {
			fmt.Fprintln(p.w, "//")
			continue
		}
		fmt.Fprintf(p.w, "// %s\n", line)
	}
}

func (p *Printer) printSignature(fn *Function) {
	if fn.Static {
		fmt.Fprint(p.w, "static ")
	}
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = ctypes.Decl(param.Typ, param.Name)
	}
	if len(params) == 0 {
		fmt.Fprintf(p.w, "void %s( void )", fn.Name)
		return
	}
	fmt.Fprintf(p.w, "void %s( %s )", fn.Name, strings.Join(params, ", "))
}

// PrintPrototype prints the declaration of a function
func (p *Printer) PrintPrototype(fn *Function) {
	p.printDoc(fn)
	p.printSignature(fn)
	fmt.Fprintln(p.w, ";")
}

// PrintFunction prints a function definition
func (p *Printer) PrintFunction(fn *Function) {
	p.printDoc(fn)
	p.printSignature(fn)
	fmt.Fprintln(p.w, " {")
	p.indent++
	p.printBody(fn.Body)
	p.indent--
	fmt.Fprintln(p.w, "}")
}

// PrintStmts prints a statement list at the current indentation
func (p *Printer) PrintStmts(body []Stmt) {
	for _, s := range body {
		p.printStmt(s)
	}
}

func (p *Printer) printBody(body []Stmt) {
	if len(body) == 0 {
		p.printStmt(Sskip{})
		return
	}
	p.PrintStmts(body)
}

func (p *Printer) printNested(body []Stmt) {
	p.indent++
	p.printBody(body)
	p.indent--
}

func (p *Printer) printStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case Sskip:
		p.writeIndent()
		fmt.Fprintln(p.w, "; // NO-OP")

	case Sdecl:
		p.writeIndent()
		fmt.Fprint(p.w, ctypes.Decl(s.Typ, s.Name))
		if s.Init != nil {
			fmt.Fprintf(p.w, " = %s", ExprString(s.Init))
		}
		fmt.Fprintln(p.w, ";")

	case Sassign:
		p.writeIndent()
		op := "="
		if s.Op != nil {
			op = s.Op.String() + "="
		}
		fmt.Fprintf(p.w, "%s %s %s;\n", ExprString(s.LHS), op, ExprString(s.RHS))

	case Sexpr:
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", ExprString(s.Expr))

	case Sfor:
		p.writeIndent()
		fmt.Fprintf(p.w, "for (%s = 0; %s < %s; %s++) {\n",
			ctypes.Decl(ctypes.Index(), s.Var), s.Var, exprString(s.Hi, Olt.Prec()+1), s.Var)
		p.printNested(s.Body)
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case Sif:
		p.writeIndent()
		fmt.Fprintf(p.w, "if (%s) {\n", ExprString(s.Cond))
		p.printNested(s.Then)
		if len(s.Else) > 0 {
			p.writeIndent()
			fmt.Fprintln(p.w, "} else {")
			p.printNested(s.Else)
		}
		p.writeIndent()
		fmt.Fprintln(p.w, "}")

	case Sraw:
		for _, line := range strings.Split(s.Text, "\n") {
			p.writeIndent()
			fmt.Fprintln(p.w, line)
		}

	default:
		p.writeIndent()
		fmt.Fprintf(p.w, "/* unknown stmt %T */\n", stmt)
	}
}

// ExprString renders an expression with minimal parentheses
func ExprString(e Expr) string {
	return exprString(e, 0)
}

func exprString(e Expr, ctx int) string {
	var b strings.Builder
	writeExpr(&b, e, ctx)
	return b.String()
}

func writeExpr(b *strings.Builder, expr Expr, ctx int) {
	switch e := expr.(type) {
	case Econst_int:
		if e.Value < 0 && ctx > precUnary {
			fmt.Fprintf(b, "(%d)", e.Value)
			return
		}
		b.WriteString(strconv.FormatInt(e.Value, 10))

	case Econst_float:
		s := formatFloat(e.Value)
		if ctypes.Equal(e.Typ, ctypes.Float()) {
			s += "f"
		}
		if e.Value < 0 && ctx > precUnary {
			s = "(" + s + ")"
		}
		b.WriteString(s)

	case Econst_bool:
		b.WriteString(strconv.FormatBool(e.Value))

	case Evar:
		b.WriteString(e.Name)

	case Eindex:
		writeExpr(b, e.Base, precPostfix)
		b.WriteString("[")
		writeExpr(b, e.Idx, 0)
		b.WriteString("]")

	case Efield:
		writeExpr(b, e.Arg, precPostfix)
		b.WriteString(".")
		b.WriteString(e.FieldName)

	case Eaddrof:
		wrapUnary(b, "&", e.Arg, ctx)

	case Ederef:
		wrapUnary(b, "*", e.Ptr, ctx)

	case Eunop:
		wrapUnary(b, e.Op.String(), e.Arg, ctx)

	case Ecast:
		if ctx > precUnary {
			b.WriteString("(")
		}
		fmt.Fprintf(b, "(%s)", e.Typ.String())
		writeExpr(b, e.Arg, precUnary)
		if ctx > precUnary {
			b.WriteString(")")
		}

	case Ebinop:
		prec := e.Op.Prec()
		if prec < ctx {
			b.WriteString("(")
		}
		writeExpr(b, e.Left, prec)
		fmt.Fprintf(b, " %s ", e.Op)
		writeExpr(b, e.Right, prec+1)
		if prec < ctx {
			b.WriteString(")")
		}

	case Ecall:
		b.WriteString(e.Func)
		b.WriteString("(")
		writeList(b, e.Args)
		b.WriteString(")")

	case Einit:
		if len(e.Elems) == 0 {
			b.WriteString("{ }")
			return
		}
		b.WriteString("{ ")
		writeList(b, e.Elems)
		b.WriteString(" }")

	case Ecompound:
		fmt.Fprintf(b, "(%s)", e.Typ.String())
		writeExpr(b, e.Init, 0)

	case Esizeof:
		fmt.Fprintf(b, "sizeof(%s)", e.ArgType.String())

	default:
		fmt.Fprintf(b, "/* unknown expr %T */", expr)
	}
}

func writeList(b *strings.Builder, es []Expr) {
	for i, a := range es {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, a, 0)
	}
}

// wrapUnary prints a prefix operator; an operand that itself starts with
// '-' or the same symbol is parenthesized so tokens never merge.
func wrapUnary(b *strings.Builder, op string, arg Expr, ctx int) {
	if ctx > precUnary {
		b.WriteString("(")
	}
	b.WriteString(op)
	inner := exprString(arg, precUnary)
	if strings.HasPrefix(inner, "-") || strings.HasPrefix(inner, op) {
		inner = "(" + inner + ")"
	}
	b.WriteString(inner)
	if ctx > precUnary {
		b.WriteString(")")
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
