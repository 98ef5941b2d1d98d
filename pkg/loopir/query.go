package loopir

import (
	"slices"

	"github.com/samber/lo"
)

// DefaultMem is the memory space of buffers declared without one.
const DefaultMem = "DRAM"

// MemName returns the memory space name, substituting DefaultMem for "".
func MemName(mem string) string {
	if mem == "" {
		return DefaultMem
	}
	return mem
}

// Walk visits every statement in preorder, including split tail bodies.
// Returning false from fn skips the children of that statement.
func Walk(body []Stmt, fn func(Stmt) bool) {
	for _, s := range body {
		if !fn(s) {
			continue
		}
		switch s := s.(type) {
		case Block:
			Walk(s.Body, fn)
		case For:
			Walk(s.Body, fn)
			if s.Split != nil {
				Walk(s.Split.Tail, fn)
			}
		case If:
			Walk(s.Body, fn)
			Walk(s.Else, fn)
		}
	}
}

// WalkExpr visits e and its subexpressions in preorder.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case Read:
		for _, i := range e.Idx {
			WalkExpr(i, fn)
		}
	case BinOp:
		WalkExpr(e.LHS, fn)
		WalkExpr(e.RHS, fn)
	case USub:
		WalkExpr(e.Arg, fn)
	case WindowExpr:
		for _, a := range e.Idx {
			switch a := a.(type) {
			case Point:
				WalkExpr(a.Pt, fn)
			case Interval:
				WalkExpr(a.Lo, fn)
				WalkExpr(a.Hi, fn)
			}
		}
	}
}

// UsedMems returns the sorted memory space names referenced by a procedure's
// parameters, allocations and calls.
func UsedMems(p *Proc) []string {
	var mems []string
	for _, a := range p.Params {
		if a.Type.IsBuffer() {
			mems = append(mems, MemName(a.Mem))
		}
	}
	Walk(p.Body, func(s Stmt) bool {
		switch s := s.(type) {
		case Alloc:
			mems = append(mems, MemName(s.Mem))
		case Call:
			mems = append(mems, MemName(s.Mem))
		}
		return true
	})
	mems = lo.Uniq(mems)
	slices.Sort(mems)
	return mems
}

// floorDiv and floorMod follow the IR's integer semantics (round toward
// negative infinity).
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// ConstInt folds an integer expression to a constant when it has no free
// symbols. Division by a zero constant does not fold.
func ConstInt(e Expr) (int64, bool) {
	switch e := e.(type) {
	case IntConst:
		return e.Value, true
	case USub:
		v, ok := ConstInt(e.Arg)
		return -v, ok
	case BinOp:
		l, ok := ConstInt(e.LHS)
		if !ok {
			return 0, false
		}
		r, ok := ConstInt(e.RHS)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case Add:
			return l + r, true
		case Sub:
			return l - r, true
		case Mul:
			return l * r, true
		case Div:
			if r == 0 {
				return 0, false
			}
			return floorDiv(l, r), true
		case Mod:
			if r == 0 {
				return 0, false
			}
			return floorMod(l, r), true
		}
	}
	return 0, false
}

// Affine is a linear form Const + sum(Coeffs[s] * s) over integer symbols.
type Affine struct {
	Const  int64
	Coeffs map[Sym]int64
}

// AffineOf normalizes an integer expression to linear form. It fails on
// products of two symbolic terms, symbolic division or modulo, and on
// buffer reads.
func AffineOf(e Expr) (Affine, bool) {
	switch e := e.(type) {
	case IntConst:
		return Affine{Const: e.Value}, true
	case Read:
		if len(e.Idx) > 0 {
			return Affine{}, false
		}
		return Affine{Coeffs: map[Sym]int64{e.Name: 1}}, true
	case USub:
		a, ok := AffineOf(e.Arg)
		if !ok {
			return Affine{}, false
		}
		return a.Scale(-1), true
	case BinOp:
		l, ok := AffineOf(e.LHS)
		if !ok {
			return Affine{}, false
		}
		r, ok := AffineOf(e.RHS)
		if !ok {
			return Affine{}, false
		}
		switch e.Op {
		case Add:
			return l.Add(r), true
		case Sub:
			return l.Add(r.Scale(-1)), true
		case Mul:
			if l.IsConst() {
				return r.Scale(l.Const), true
			}
			if r.IsConst() {
				return l.Scale(r.Const), true
			}
		case Div, Mod:
			if l.IsConst() && r.IsConst() && r.Const != 0 {
				if e.Op == Div {
					return Affine{Const: floorDiv(l.Const, r.Const)}, true
				}
				return Affine{Const: floorMod(l.Const, r.Const)}, true
			}
		}
	}
	return Affine{}, false
}

// IsConst reports whether the form has no symbolic terms.
func (a Affine) IsConst() bool {
	for _, c := range a.Coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// Scale multiplies every term by k.
func (a Affine) Scale(k int64) Affine {
	out := Affine{Const: a.Const * k, Coeffs: make(map[Sym]int64, len(a.Coeffs))}
	for s, c := range a.Coeffs {
		if c*k != 0 {
			out.Coeffs[s] = c * k
		}
	}
	return out
}

// Add returns a + b.
func (a Affine) Add(b Affine) Affine {
	out := Affine{Const: a.Const + b.Const, Coeffs: make(map[Sym]int64, len(a.Coeffs)+len(b.Coeffs))}
	for s, c := range a.Coeffs {
		out.Coeffs[s] += c
	}
	for s, c := range b.Coeffs {
		out.Coeffs[s] += c
		if out.Coeffs[s] == 0 {
			delete(out.Coeffs, s)
		}
	}
	return out
}

// Equal reports whether two forms are identical.
func (a Affine) Equal(b Affine) bool {
	d := a.Add(b.Scale(-1))
	return d.IsConst() && d.Const == 0
}

// Extent returns hi - lo when it is a known constant.
func Extent(lo, hi Expr) (int64, bool) {
	l, ok := AffineOf(lo)
	if !ok {
		return 0, false
	}
	h, ok := AffineOf(hi)
	if !ok {
		return 0, false
	}
	d := h.Add(l.Scale(-1))
	if !d.IsConst() {
		return 0, false
	}
	return d.Const, true
}

// ExprEqual reports structural equality of two expressions.
func ExprEqual(a, b Expr) bool {
	switch a := a.(type) {
	case IntConst:
		b, ok := b.(IntConst)
		return ok && a.Value == b.Value
	case FloatConst:
		b, ok := b.(FloatConst)
		return ok && a.Value == b.Value && a.Type == b.Type
	case BoolConst:
		b, ok := b.(BoolConst)
		return ok && a.Value == b.Value
	case Read:
		b, ok := b.(Read)
		return ok && a.Name == b.Name && exprsEqual(a.Idx, b.Idx)
	case BinOp:
		b, ok := b.(BinOp)
		return ok && a.Op == b.Op && ExprEqual(a.LHS, b.LHS) && ExprEqual(a.RHS, b.RHS)
	case USub:
		b, ok := b.(USub)
		return ok && ExprEqual(a.Arg, b.Arg)
	case StrideExpr:
		b, ok := b.(StrideExpr)
		return ok && a == b
	case WindowExpr:
		b, ok := b.(WindowExpr)
		if !ok || a.Name != b.Name || len(a.Idx) != len(b.Idx) {
			return false
		}
		for i := range a.Idx {
			if !accessEqual(a.Idx[i], b.Idx[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func exprsEqual(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ExprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func accessEqual(a, b Access) bool {
	switch a := a.(type) {
	case Point:
		b, ok := b.(Point)
		return ok && ExprEqual(a.Pt, b.Pt)
	case Interval:
		b, ok := b.(Interval)
		return ok && ExprEqual(a.Lo, b.Lo) && ExprEqual(a.Hi, b.Hi)
	}
	return false
}
