package lowering

import (
	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// lowerCall resolves a vector operation through the instruction table
func (st *procState) lowerCall(s loopir.Call) ([]csrc.Stmt, error) {
	tmpl, err := st.c.table.Lookup(s.Mem, s.Op, s.Src)
	if err != nil {
		return nil, err
	}
	if len(s.Args) != tmpl.Arity() {
		return nil, diag.Unsupported(s.Src, "%s@%s takes %d arguments, got %d",
			s.Op, tmpl.Mem, tmpl.Arity(), len(s.Args))
	}
	args := make([]isel.Arg, len(s.Args))
	for i, a := range s.Args {
		if args[i], err = st.iselArg(tmpl.Args[i], a, s.Src); err != nil {
			return nil, err
		}
	}
	inst, err := tmpl.Resolve(args, s.Src)
	if err != nil {
		return nil, err
	}
	st.mems[tmpl.Mem] = true
	var out []csrc.Stmt
	for _, h := range inst.Hints {
		if !st.hinted(h) {
			out = append(out, csrc.Sraw{Text: h})
		}
	}
	for _, h := range inst.Helpers {
		st.useHelper(h)
	}
	return append(out, csrc.Sraw{Text: inst.Code}), nil
}

func fullWindow(name loopir.Sym, shape []loopir.Expr) loopir.WindowExpr {
	idx := make([]loopir.Access, len(shape))
	for d, n := range shape {
		idx[d] = loopir.Interval{Lo: loopir.Int(0), Hi: n}
	}
	return loopir.WindowExpr{Name: name, Idx: idx}
}

func windowRank(w loopir.WindowExpr) int {
	r := 0
	for _, a := range w.Idx {
		if _, ok := a.(loopir.Interval); ok {
			r++
		}
	}
	return r
}

func (st *procState) iselArg(spec isel.ArgSpec, e loopir.Expr, src loopir.SrcInfo) (isel.Arg, error) {
	switch e := e.(type) {
	case loopir.WindowExpr:
		b, ok := st.lookup(e.Name)
		if !ok {
			return isel.Arg{}, diag.Invariant(src, "window of %s which is not in scope", e.Name)
		}
		switch b.kind {
		case bindRegister:
			return st.registerArg(spec, b, e, src)
		case bindBuffer:
			return st.bufferArg(spec, b, e, src)
		}
		return isel.Arg{}, diag.Rank(src, "cannot take a window of scalar %s", e.Name)

	case loopir.Read:
		b, ok := st.lookup(e.Name)
		if !ok {
			return isel.Arg{}, diag.Invariant(src, "read of %s which is not in scope", e.Name)
		}
		if len(e.Idx) == 0 && (b.kind == bindBuffer || b.kind == bindRegister) {
			return st.iselArg(spec, fullWindow(e.Name, b.view.Shape), src)
		}
		v, err := st.lowerRead(e, src)
		if err != nil {
			return isel.Arg{}, err
		}
		a := isel.Arg{IsScalar: true, Value: csrc.ExprString(v)}
		if b.kind != bindCtrl {
			a.Data = a.Value
			a.Mem = loopir.MemName(b.view.Mem)
			a.Const = b.readOnly
		}
		return a, nil
	}
	v, err := st.lowerExpr(e, src)
	if err != nil {
		return isel.Arg{}, err
	}
	return isel.Arg{IsScalar: true, Value: csrc.ExprString(v)}, nil
}

func (st *procState) extentsC(shape []loopir.Expr, src loopir.SrcInfo) ([]string, error) {
	out := make([]string, len(shape))
	for i, d := range shape {
		c, err := st.lowerExpr(d, src)
		if err != nil {
			return nil, err
		}
		out[i] = csrc.ExprString(c)
	}
	return out, nil
}

func (st *procState) bufferArg(spec isel.ArgSpec, b *binding, w loopir.WindowExpr, src loopir.SrcInfo) (isel.Arg, error) {
	off, _, shape, err := layout.WindowFields(b.view, w, src)
	if err != nil {
		return isel.Arg{}, err
	}
	first, err := st.element(b, off, src)
	if err != nil {
		return isel.Arg{}, err
	}
	extC, err := st.extentsC(shape, src)
	if err != nil {
		return isel.Arg{}, err
	}
	a := isel.Arg{
		Mem:     loopir.MemName(b.view.Mem),
		Rank:    len(shape),
		Const:   b.readOnly,
		Data:    csrc.ExprString(first),
		Extents: shape,
		ExtentC: extC,
	}
	a.Value = a.Data
	if spec.Form == isel.Window {
		v, err := st.windowValue(b, w, b.readOnly, src)
		if err != nil {
			return isel.Arg{}, err
		}
		a.Value = csrc.ExprString(v)
	}
	return a, nil
}

// registerArg addresses whole vectors of a register buffer. Leading
// points select a row; the innermost access must span the full vector.
func (st *procState) registerArg(spec isel.ArgSpec, b *binding, w loopir.WindowExpr, src loopir.SrcInfo) (isel.Arg, error) {
	rank := b.view.Rank()
	if len(w.Idx) != rank {
		return isel.Arg{}, diag.Rank(src, "window of %s has %d indices, buffer has rank %d", w.Name, len(w.Idx), rank)
	}
	last, ok := w.Idx[rank-1].(loopir.Interval)
	if !ok {
		return isel.Arg{}, diag.Unsupported(src, "cannot read from buffer %s in memory %s", w.Name, b.space.Name)
	}
	if lo, ok := loopir.ConstInt(last.Lo); !ok || lo != 0 {
		return isel.Arg{}, diag.Unsupported(src, "window %s must cover whole vectors of %s", loopir.ExprString(w), b.space.Name)
	}
	if hi, ok := loopir.ConstInt(last.Hi); !ok || hi != int64(b.space.Lanes) {
		return isel.Arg{}, diag.Unsupported(src, "window %s must cover whole vectors of %s", loopir.ExprString(w), b.space.Name)
	}
	if spec.Form == isel.Window {
		return isel.Arg{}, diag.Unsupported(src, "%s cannot be passed as a descriptor", w.Name)
	}

	starts := make([]loopir.Expr, rank-1)
	var shape []loopir.Expr
	for d, acc := range w.Idx[:rank-1] {
		switch acc := acc.(type) {
		case loopir.Point:
			starts[d] = acc.Pt
		case loopir.Interval:
			starts[d] = acc.Lo
			shape = append(shape, layout.Sub(acc.Hi, acc.Lo))
		}
	}
	shape = append(shape, loopir.Int(int64(b.space.Lanes)))
	extC, err := st.extentsC(shape, src)
	if err != nil {
		return isel.Arg{}, err
	}

	var data csrc.Expr = csrc.Var(b.cname)
	if rank > 1 {
		row, err := st.lowerExpr(layout.Offset(starts, b.view.Strides[:rank-1]), src)
		if err != nil {
			return isel.Arg{}, err
		}
		data = csrc.Eindex{Base: data, Idx: row}
	}
	d := csrc.ExprString(data)
	return isel.Arg{
		Mem:     b.space.Name,
		Rank:    len(shape),
		Data:    d,
		Value:   d,
		Extents: shape,
		ExtentC: extC,
	}, nil
}

// windowValue renders a descriptor for window w of b. constData picks the
// descriptor flavor expected by the receiver.
func (st *procState) windowValue(b *binding, w loopir.WindowExpr, constData bool, src loopir.SrcInfo) (csrc.Expr, error) {
	if b.kind == bindRegister {
		return nil, diag.Unsupported(src, "cannot take a window of %s in memory %s", w.Name, b.space.Name)
	}
	if b.kind != bindBuffer {
		return nil, diag.Rank(src, "cannot take a window of scalar %s", w.Name)
	}
	off, strides, shape, err := layout.WindowFields(b.view, w, src)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		return nil, diag.Invariant(src, "window %s selects a single element", loopir.ExprString(w))
	}
	typ := st.windows.Use(layout.WindowStruct{Elem: b.base, Rank: len(shape), Const: constData})
	return st.descriptor(b, off, strides[:len(strides)-1], typ, src)
}

// lowerCallProc emits callee(ctxt, args...)
func (st *procState) lowerCallProc(s loopir.CallProc) ([]csrc.Stmt, error) {
	callee := st.c.unit.Proc(s.Proc)
	if callee == nil {
		return nil, diag.Invariant(s.Src, "call to unknown procedure %s", s.Proc)
	}
	if len(s.Args) != len(callee.Params) {
		return nil, diag.Invariant(s.Src, "%s takes %d arguments, got %d", s.Proc, len(callee.Params), len(s.Args))
	}
	args := []csrc.Expr{csrc.Var("ctxt")}
	for i, prm := range callee.Params {
		a, err := st.procArg(prm, s.Args[i], s.Src)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return []csrc.Stmt{csrc.Sexpr{Expr: csrc.Ecall{Func: callee.Name, Args: args}}}, nil
}

func (st *procState) procArg(prm loopir.Param, arg loopir.Expr, src loopir.SrcInfo) (csrc.Expr, error) {
	t := prm.Type
	if !t.IsBuffer() {
		return st.lowerExpr(arg, src)
	}

	var name loopir.Sym
	var w *loopir.WindowExpr
	switch a := arg.(type) {
	case loopir.WindowExpr:
		name, w = a.Name, &a
	case loopir.Read:
		name = a.Name
		if len(a.Idx) > 0 && t.Rank() != 0 {
			return nil, diag.Rank(src, "parameter %s expects a buffer, got element %s", prm.Name, loopir.ExprString(a))
		}
	default:
		return nil, diag.Invariant(src, "parameter %s expects a buffer, got %s", prm.Name, loopir.ExprString(arg))
	}
	b, ok := st.lookup(name)
	if !ok {
		return nil, diag.Invariant(src, "argument %s is not in scope", name)
	}
	if err := st.checkArg(prm, b, name, src); err != nil {
		return nil, err
	}

	if t.Rank() == 0 {
		if w != nil {
			return nil, diag.Rank(src, "parameter %s expects a scalar, got window %s", prm.Name, loopir.ExprString(*w))
		}
		r := arg.(loopir.Read)
		if b.kind == bindScalarPtr {
			return csrc.Var(b.cname), nil
		}
		el, err := st.access(b, name, r.Idx, src)
		if err != nil {
			return nil, err
		}
		return csrc.Eaddrof{Arg: el}, nil
	}

	if b.kind != bindBuffer {
		return nil, diag.Rank(src, "parameter %s expects a buffer, got scalar %s", prm.Name, name)
	}
	bare := w == nil
	if bare {
		full := fullWindow(name, b.view.Shape)
		w = &full
	}
	if r := windowRank(*w); r != t.Rank() {
		return nil, diag.Rank(src, "parameter %s has rank %d, argument %s has rank %d",
			prm.Name, t.Rank(), loopir.ExprString(arg), r)
	}
	if !t.Window {
		if !bare || b.view.Window {
			return nil, diag.Invariant(src, "parameter %s is not a window but argument %s is",
				prm.Name, loopir.ExprString(arg))
		}
		return csrc.Var(b.cname), nil
	}
	if bare && b.view.Window && b.readOnly == !prm.Mutable {
		return csrc.Var(b.cname), nil
	}
	return st.windowValue(b, *w, !prm.Mutable, src)
}

// checkArg verifies memory space, element type and mutability of an
// argument bound to a buffer parameter.
func (st *procState) checkArg(prm loopir.Param, b *binding, name loopir.Sym, src loopir.SrcInfo) error {
	switch b.kind {
	case bindCtrl:
		return diag.Invariant(src, "parameter %s expects a buffer, got control value %s", prm.Name, name)
	case bindRegister:
		return diag.Unsupported(src, "cannot pass buffer %s in memory %s to a procedure", name, b.space.Name)
	}
	if want, got := loopir.MemName(prm.Mem), loopir.MemName(b.view.Mem); want != got {
		return diag.Unsupported(src, "expected argument %s in %s but got %s", name, want, got)
	}
	if b.base != prm.Type.Base {
		return diag.Invariant(src, "parameter %s has element type %s, argument %s has %s",
			prm.Name, prm.Type.Base, name, b.base)
	}
	if prm.Mutable && b.readOnly {
		return diag.Invariant(src, "read-only %s passed to mutable parameter %s", name, prm.Name)
	}
	return nil
}
