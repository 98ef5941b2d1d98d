package loopir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs the IR in a readable, indentation-structured form.
// Used for debug dumps; the output is not meant to be parsed back.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new IR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintUnit prints every procedure of a unit
func (p *Printer) PrintUnit(u *Unit) {
	fmt.Fprintf(p.w, "# unit %s\n", u.Name)
	if len(u.Exports) > 0 {
		fmt.Fprintf(p.w, "# exports %s\n", strings.Join(u.Exports, ", "))
	}
	for i, proc := range u.Procs {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		p.PrintProc(proc)
	}
}

// PrintProc prints a single procedure
func (p *Printer) PrintProc(proc *Proc) {
	params := make([]string, len(proc.Params))
	for i, a := range proc.Params {
		params[i] = paramString(a)
	}
	fmt.Fprintf(p.w, "def %s(%s):\n", proc.Name, strings.Join(params, ", "))
	p.indent++
	for _, a := range proc.Assumes {
		p.line("assert %s", ExprString(a))
	}
	p.printBody(proc.Body)
	p.indent--
}

func paramString(a Param) string {
	if !a.Type.IsBuffer() {
		return fmt.Sprintf("%s: %s", a.Name, a.Type)
	}
	mode := ""
	if a.Mutable {
		mode = " mut"
	}
	return fmt.Sprintf("%s: %s @%s%s", a.Name, a.Type, MemName(a.Mem), mode)
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprint(p.w, strings.Repeat("    ", p.indent))
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

func (p *Printer) printBody(body []Stmt) {
	if len(body) == 0 {
		p.line("pass")
		return
	}
	for _, s := range body {
		p.printStmt(s)
	}
}

func (p *Printer) nested(body []Stmt) {
	p.indent++
	p.printBody(body)
	p.indent--
}

func (p *Printer) printStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case Pass:
		p.line("pass")
	case Assign:
		p.line("%s = %s", lhsString(s.Name, s.Idx), ExprString(s.RHS))
	case Reduce:
		p.line("%s += %s", lhsString(s.Name, s.Idx), ExprString(s.RHS))
	case Block:
		for _, b := range s.Body {
			p.printStmt(b)
		}
	case For:
		if s.Split == nil {
			p.line("for %s in seq(0, %s):", s.Iter, ExprString(s.Hi))
			p.nested(s.Body)
			return
		}
		inner := ""
		if s.Split.Inner != "" {
			inner = ", " + string(s.Split.Inner)
		}
		p.line("for %s in seq(0, %s) split(%d: %s%s):", s.Iter, ExprString(s.Hi),
			s.Split.Factor, s.Split.Outer, inner)
		p.nested(s.Body)
		if s.Split.Tail != nil {
			p.line("tail:")
			p.nested(s.Split.Tail)
		}
	case If:
		p.line("if %s:", ExprString(s.Cond))
		p.nested(s.Body)
		if len(s.Else) > 0 {
			p.line("else:")
			p.nested(s.Else)
		}
	case Alloc:
		p.line("%s : %s @%s", s.Name, s.Type, MemName(s.Mem))
	case WindowStmt:
		p.line("%s = %s", s.Name, ExprString(s.RHS))
	case Call:
		p.line("%s@%s(%s)", s.Op, MemName(s.Mem), exprList(s.Args))
	case CallProc:
		p.line("%s(%s)", s.Proc, exprList(s.Args))
	default:
		p.line("# unknown stmt %T", stmt)
	}
}

func lhsString(name Sym, idx []Expr) string {
	if len(idx) == 0 {
		return string(name)
	}
	return fmt.Sprintf("%s[%s]", name, exprList(idx))
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

// Precedence levels used when printing; higher binds tighter.
const (
	precOr = iota + 1
	precAnd
	precCmp
	precAdd
	precMul
	precUnary
	precAtom
)

// Prec returns the printing precedence of a binary operator.
func (op BinaryOp) Prec() int {
	switch op {
	case Or:
		return precOr
	case And:
		return precAnd
	case Lt, Gt, Le, Ge, Eq:
		return precCmp
	case Add, Sub:
		return precAdd
	}
	return precMul
}

// ExprString renders an expression with minimal parentheses.
func ExprString(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e, 0)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, ctx int) {
	switch e := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case IntConst:
		b.WriteString(strconv.FormatInt(e.Value, 10))
	case FloatConst:
		b.WriteString(FormatFloat(e.Value))
	case BoolConst:
		b.WriteString(strconv.FormatBool(e.Value))
	case Read:
		b.WriteString(lhsString(e.Name, e.Idx))
	case StrideExpr:
		fmt.Fprintf(b, "stride(%s, %d)", e.Name, e.Dim)
	case WindowExpr:
		b.WriteString(string(e.Name))
		b.WriteString("[")
		for i, a := range e.Idx {
			if i > 0 {
				b.WriteString(", ")
			}
			switch a := a.(type) {
			case Point:
				writeExpr(b, a.Pt, 0)
			case Interval:
				writeExpr(b, a.Lo, 0)
				b.WriteString(":")
				writeExpr(b, a.Hi, 0)
			}
		}
		b.WriteString("]")
	case USub:
		if ctx > precUnary {
			b.WriteString("(")
		}
		b.WriteString("-")
		writeExpr(b, e.Arg, precUnary+1)
		if ctx > precUnary {
			b.WriteString(")")
		}
	case BinOp:
		prec := e.Op.Prec()
		if prec < ctx {
			b.WriteString("(")
		}
		writeExpr(b, e.LHS, prec)
		fmt.Fprintf(b, " %s ", e.Op)
		writeExpr(b, e.RHS, prec+1)
		if prec < ctx {
			b.WriteString(")")
		}
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

// FormatFloat prints a float literal so it always reads back as a float.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
