package lowering

import (
	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/loopir"
)

var binops = map[loopir.BinaryOp]csrc.BinaryOp{
	loopir.Add: csrc.Oadd,
	loopir.Sub: csrc.Osub,
	loopir.Mul: csrc.Omul,
	loopir.Div: csrc.Odiv,
	loopir.Mod: csrc.Omod,
	loopir.Lt:  csrc.Olt,
	loopir.Gt:  csrc.Ogt,
	loopir.Le:  csrc.Ole,
	loopir.Ge:  csrc.Oge,
	loopir.Eq:  csrc.Oeq,
	loopir.And: csrc.Oand,
	loopir.Or:  csrc.Oor,
}

func (st *procState) lowerExpr(e loopir.Expr, src loopir.SrcInfo) (csrc.Expr, error) {
	switch e := e.(type) {
	case loopir.IntConst:
		return csrc.Int(e.Value), nil

	case loopir.FloatConst:
		typ := ctypes.Float()
		if e.Type == loopir.F64 {
			typ = ctypes.Double()
		}
		return csrc.Econst_float{Value: e.Value, Typ: typ}, nil

	case loopir.BoolConst:
		return csrc.Econst_bool{Value: e.Value}, nil

	case loopir.Read:
		return st.lowerRead(e, src)

	case loopir.USub:
		arg, err := st.lowerExpr(e.Arg, src)
		if err != nil {
			return nil, err
		}
		if c, ok := arg.(csrc.Econst_int); ok {
			return csrc.Int(-c.Value), nil
		}
		return csrc.Eunop{Op: csrc.Oneg, Arg: arg}, nil

	case loopir.BinOp:
		l, err := st.lowerExpr(e.LHS, src)
		if err != nil {
			return nil, err
		}
		r, err := st.lowerExpr(e.RHS, src)
		if err != nil {
			return nil, err
		}
		if e.Op == loopir.Div && !st.isFloat(e) && !(st.nonNeg(e.LHS) && st.nonNeg(e.RHS)) {
			st.useHelper(floorDivHelper)
			return csrc.Ecall{Func: floorDivHelper.Name, Args: []csrc.Expr{l, r}}, nil
		}
		op, ok := binops[e.Op]
		if !ok {
			return nil, diag.Invariant(src, "unknown operator %s", e.Op)
		}
		if !st.isFloat(e) {
			return foldInt(op, l, r), nil
		}
		return csrc.Bin(op, l, r), nil

	case loopir.StrideExpr:
		return st.lowerStride(e, src)

	case loopir.WindowExpr:
		b, ok := st.lookup(e.Name)
		if !ok {
			return nil, diag.Invariant(src, "window of %s which is not in scope", e.Name)
		}
		return st.windowValue(b, e, b.readOnly, src)
	}
	return nil, diag.Invariant(src, "unexpected expression %T", e)
}

// foldInt drops unit factors and zero terms of integer arithmetic. Float
// arithmetic is emitted as written.
func foldInt(op csrc.BinaryOp, l, r csrc.Expr) csrc.Expr {
	switch op {
	case csrc.Oadd:
		return csrc.Add(l, r)
	case csrc.Omul:
		return csrc.Mul(l, r)
	case csrc.Osub:
		if c, ok := r.(csrc.Econst_int); ok && c.Value == 0 {
			return l
		}
	}
	return csrc.Bin(op, l, r)
}

func (st *procState) lowerRead(e loopir.Read, src loopir.SrcInfo) (csrc.Expr, error) {
	b, ok := st.lookup(e.Name)
	if !ok {
		return nil, diag.Invariant(src, "read of %s which is not in scope", e.Name)
	}
	switch b.kind {
	case bindCtrl:
		if len(e.Idx) > 0 {
			return nil, diag.Rank(src, "control value %s cannot be indexed", e.Name)
		}
		return b.ref(), nil
	case bindRegister:
		return nil, diag.Unsupported(src, "cannot read from buffer %s in memory %s", e.Name, b.space.Name)
	}
	return st.access(b, e.Name, e.Idx, src)
}

// access lowers an element reference name[idx...] to an lvalue
func (st *procState) access(b *binding, name loopir.Sym, idx []loopir.Expr, src loopir.SrcInfo) (csrc.Expr, error) {
	switch b.kind {
	case bindScalar:
		if len(idx) > 0 {
			return nil, diag.Rank(src, "scalar %s cannot be indexed", name)
		}
		return csrc.Var(b.cname), nil
	case bindScalarPtr:
		if len(idx) > 0 {
			return nil, diag.Rank(src, "scalar %s cannot be indexed", name)
		}
		return csrc.Ederef{Ptr: csrc.Var(b.cname)}, nil
	case bindBuffer:
		if len(idx) != b.view.Rank() {
			return nil, diag.Rank(src, "%s has rank %d but is accessed with %d indices", name, b.view.Rank(), len(idx))
		}
		return st.element(b, layout.Offset(idx, b.view.Strides), src)
	}
	return nil, diag.Invariant(src, "%s is not a buffer", name)
}

// element returns the element at offset off of a pointer or window buffer
func (st *procState) element(b *binding, off loopir.Expr, src loopir.SrcInfo) (csrc.Expr, error) {
	i, err := st.lowerExpr(off, src)
	if err != nil {
		return nil, err
	}
	var base csrc.Expr = csrc.Var(b.cname)
	if b.view.Window {
		base = csrc.Efield{Arg: base, FieldName: "data"}
	}
	return csrc.Eindex{Base: base, Idx: i}, nil
}

func (st *procState) lowerStride(e loopir.StrideExpr, src loopir.SrcInfo) (csrc.Expr, error) {
	b, ok := st.lookup(e.Name)
	if !ok || (b.kind != bindBuffer && b.kind != bindRegister) {
		return nil, diag.Invariant(src, "stride of %s which is not a buffer in scope", e.Name)
	}
	if e.Dim < 0 || e.Dim >= b.view.Rank() {
		return nil, diag.Rank(src, "stride(%s, %d) of a rank %d buffer", e.Name, e.Dim, b.view.Rank())
	}
	if b.view.Window {
		if e.Dim == b.view.Rank()-1 {
			return csrc.Int(1), nil
		}
		strides := csrc.Efield{Arg: csrc.Var(b.cname), FieldName: "strides"}
		return csrc.Eindex{Base: strides, Idx: csrc.Int(int64(e.Dim))}, nil
	}
	return st.lowerExpr(b.view.Strides[e.Dim], src)
}

// typeOf returns the element type of a numeric expression. Literals are
// untyped and adapt to their context.
func (st *procState) typeOf(e loopir.Expr) (loopir.BaseType, bool) {
	switch e := e.(type) {
	case loopir.Read:
		if b, ok := st.lookup(e.Name); ok {
			return b.base, true
		}
	case loopir.BoolConst:
		return loopir.Bool, true
	case loopir.USub:
		return st.typeOf(e.Arg)
	case loopir.BinOp:
		if e.Op.IsComparison() || e.Op.IsLogical() {
			return loopir.Bool, true
		}
		if t, ok := st.typeOf(e.LHS); ok {
			return t, true
		}
		return st.typeOf(e.RHS)
	case loopir.StrideExpr:
		return loopir.Stride, true
	}
	return 0, false
}

func (st *procState) isFloat(e loopir.Expr) bool {
	switch e := e.(type) {
	case loopir.FloatConst:
		return true
	case loopir.BinOp:
		return st.isFloat(e.LHS) || st.isFloat(e.RHS)
	case loopir.USub:
		return st.isFloat(e.Arg)
	}
	t, ok := st.typeOf(e)
	return ok && t.IsFloat()
}

// nonNeg reports whether e is provably non-negative: constants, sizes,
// loop counters and + * / % over those.
func (st *procState) nonNeg(e loopir.Expr) bool {
	switch e := e.(type) {
	case loopir.IntConst:
		return e.Value >= 0
	case loopir.Read:
		b, ok := st.lookup(e.Name)
		return ok && len(e.Idx) == 0 && b.kind == bindCtrl && b.nonNeg
	case loopir.BinOp:
		switch e.Op {
		case loopir.Add, loopir.Mul, loopir.Div, loopir.Mod:
			return st.nonNeg(e.LHS) && st.nonNeg(e.RHS)
		}
	case loopir.StrideExpr:
		return true
	}
	return false
}
