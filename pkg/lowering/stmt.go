package lowering

import (
	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/memspace"
)

// lowerStmts lowers a statement list in the current scope
func (st *procState) lowerStmts(body []loopir.Stmt) ([]csrc.Stmt, error) {
	var out []csrc.Stmt
	for _, s := range body {
		lowered, err := st.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	return out, nil
}

// lowerScoped lowers body in a new scope and appends its releases
func (st *procState) lowerScoped(body []loopir.Stmt) ([]csrc.Stmt, error) {
	st.push()
	out, err := st.lowerStmts(body)
	frees := st.pop()
	if err != nil {
		return nil, err
	}
	return append(out, frees...), nil
}

func (st *procState) lowerStmt(stmt loopir.Stmt) ([]csrc.Stmt, error) {
	switch s := stmt.(type) {
	case loopir.Pass:
		return []csrc.Stmt{csrc.Sskip{}}, nil

	case loopir.Block:
		return st.lowerStmts(s.Body)

	case loopir.Assign:
		a, err := st.lowerAssign(s.Name, s.Idx, s.RHS, nil, s.Src)
		if err != nil {
			return nil, err
		}
		return []csrc.Stmt{a}, nil

	case loopir.Reduce:
		a, err := st.lowerAssign(s.Name, s.Idx, s.RHS, csrc.AddAssign(), s.Src)
		if err != nil {
			return nil, err
		}
		return []csrc.Stmt{a}, nil

	case loopir.For:
		if s.Split != nil {
			return st.lowerSplit(s)
		}
		return st.lowerFor(s)

	case loopir.If:
		cond, err := st.lowerExpr(s.Cond, s.Src)
		if err != nil {
			return nil, err
		}
		then, err := st.lowerScoped(s.Body)
		if err != nil {
			return nil, err
		}
		var els []csrc.Stmt
		if len(s.Else) > 0 {
			if els, err = st.lowerScoped(s.Else); err != nil {
				return nil, err
			}
		}
		return []csrc.Stmt{csrc.Sif{Cond: cond, Then: then, Else: els}}, nil

	case loopir.Alloc:
		return st.lowerAlloc(s)

	case loopir.WindowStmt:
		return st.lowerWindowStmt(s)

	case loopir.Call:
		return st.lowerCall(s)

	case loopir.CallProc:
		return st.lowerCallProc(s)
	}
	return nil, diag.Invariant(stmt.Pos(), "unexpected statement %T", stmt)
}

func (st *procState) lowerFor(s loopir.For) ([]csrc.Stmt, error) {
	hi, err := st.lowerExpr(s.Hi, s.Src)
	if err != nil {
		return nil, err
	}
	st.push()
	b := st.bind(s.Iter, &binding{kind: bindCtrl, base: loopir.Index, nonNeg: true})
	body, err := st.lowerStmts(s.Body)
	frees := st.pop()
	if err != nil {
		return nil, err
	}
	return []csrc.Stmt{csrc.Sfor{Var: b.cname, Hi: hi, Body: append(body, frees...)}}, nil
}

// lowerSplit emits the main loop over full tiles and the remainder loop
func (st *procState) lowerSplit(s loopir.For) ([]csrc.Stmt, error) {
	sp := s.Split
	if sp.Factor < 1 {
		return nil, diag.Invariant(s.Src, "split of %s by %d", s.Iter, sp.Factor)
	}
	n, err := st.lowerExpr(s.Hi, s.Src)
	if err != nil {
		return nil, err
	}
	f := csrc.Int(int64(sp.Factor))
	tiles := csrc.Bin(csrc.Odiv, n, f)
	if sp.Factor == 1 {
		tiles = n
	}

	st.push()
	outer := st.bind(sp.Outer, &binding{kind: bindCtrl, base: loopir.Index, nonNeg: true})
	tileStart := csrc.Mul(csrc.Var(outer.cname), f)
	var main []csrc.Stmt
	if sp.Inner != "" {
		st.push()
		inner := st.bind(sp.Inner, &binding{kind: bindCtrl, base: loopir.Index, nonNeg: true})
		st.bindSubst(s.Iter, csrc.Add(tileStart, csrc.Var(inner.cname)))
		body, err := st.lowerStmts(s.Body)
		frees := st.pop()
		if err != nil {
			st.pop()
			return nil, err
		}
		main = []csrc.Stmt{csrc.Sfor{Var: inner.cname, Hi: f, Body: append(body, frees...)}}
	} else {
		st.bindSubst(s.Iter, tileStart)
		body, err := st.lowerStmts(s.Body)
		if err != nil {
			st.pop()
			return nil, err
		}
		main = body
	}
	main = append(main, st.pop()...)
	out := []csrc.Stmt{csrc.Sfor{Var: outer.cname, Hi: tiles, Body: main}}

	rem, known := st.remainder(s.Hi, sp.Factor)
	if known && rem == 0 {
		return out, nil
	}
	tail := sp.Tail
	if tail == nil {
		if sp.Inner == "" {
			return nil, diag.Invariant(s.Src,
				"vectorized loop over %s has no tail body but %s %% %d may be nonzero",
				s.Iter, loopir.ExprString(s.Hi), sp.Factor)
		}
		tail = s.Body
	}

	st.push()
	counter := sp.Inner
	if counter == "" {
		counter = s.Iter
	}
	k := st.bind(counter, &binding{kind: bindCtrl, base: loopir.Index, nonNeg: true})
	st.bindSubst(s.Iter, csrc.Add(csrc.Mul(tiles, f), csrc.Var(k.cname)))
	body, err := st.lowerStmts(tail)
	frees := st.pop()
	if err != nil {
		return nil, err
	}
	count := csrc.Bin(csrc.Omod, n, f)
	loop := csrc.Sfor{Var: k.cname, Hi: count, Body: append(body, frees...)}
	if known {
		return append(out, loop), nil
	}
	guard := csrc.Sif{Cond: csrc.Bin(csrc.Ogt, count, csrc.Int(0)), Then: []csrc.Stmt{loop}}
	return append(out, guard), nil
}

// remainder returns hi mod factor when it is known at compile time, either
// from a constant bound or from a procedure assumption hi % factor == 0.
func (st *procState) remainder(hi loopir.Expr, factor int) (int64, bool) {
	if factor == 1 {
		return 0, true
	}
	if v, ok := loopir.ConstInt(loopir.Bin(loopir.Mod, hi, loopir.Int(int64(factor)))); ok {
		return v, true
	}
	divisible := loopir.Bin(loopir.Eq, loopir.Bin(loopir.Mod, hi, loopir.Int(int64(factor))), loopir.Int(0))
	for _, fact := range st.proc.Assumes {
		if loopir.ExprEqual(fact, divisible) {
			return 0, true
		}
	}
	return 0, false
}

func (st *procState) lowerAlloc(s loopir.Alloc) ([]csrc.Stmt, error) {
	space, err := memspace.Lookup(s.Mem)
	if err != nil {
		return nil, diag.Unsupported(s.Src, "allocation of %s: %v", s.Name, err)
	}
	t := s.Type
	if !t.IsBuffer() {
		return nil, diag.Invariant(s.Src, "allocation of %s with non-numeric type %s", s.Name, t)
	}
	st.mems[space.Name] = true
	if space.IsRegister() {
		return st.lowerRegisterAlloc(s, space)
	}

	elem := memspace.ElemCType(t.Base)
	if t.Rank() == 0 {
		b := st.bind(s.Name, &binding{kind: bindScalar, base: t.Base, view: layout.View{Name: s.Name, Elem: t.Base, Mem: space.Name}})
		return []csrc.Stmt{csrc.Sdecl{Typ: elem, Name: b.cname}}, nil
	}
	if err := layout.CheckShape(t.Shape, st.sizes, s.Src); err != nil {
		return nil, err
	}
	view := layout.View{
		Name:    s.Name,
		Elem:    t.Base,
		Shape:   t.Shape,
		Strides: layout.StaticStrides(t.Shape),
		Mem:     space.Name,
	}
	size := shapeProduct(t.Shape)

	if n, ok := loopir.ConstInt(size); ok {
		b := st.bind(s.Name, &binding{kind: bindBuffer, base: t.Base, view: view})
		return []csrc.Stmt{csrc.Sdecl{Typ: ctypes.Array(elem, n), Name: b.cname}}, nil
	}
	if !space.Heap {
		return nil, diag.Shape(s.Src, "memory %s cannot allocate %s with dynamic shape %s",
			space.Name, s.Name, t)
	}
	n, err := st.lowerExpr(size, s.Src)
	if err != nil {
		return nil, err
	}
	st.usesHeap = true
	b := st.bind(s.Name, &binding{kind: bindBuffer, base: t.Base, view: view})
	malloc := csrc.Ecall{Func: "malloc", Args: []csrc.Expr{csrc.Mul(n, csrc.Esizeof{ArgType: elem})}}
	st.top().frees = append(st.top().frees, csrc.Sexpr{Expr: csrc.Ecall{Func: "free", Args: []csrc.Expr{csrc.Var(b.cname)}}})
	return []csrc.Stmt{csrc.Sdecl{
		Typ:  ctypes.Pointer(elem),
		Name: b.cname,
		Init: csrc.Ecast{Arg: malloc, Typ: ctypes.Pointer(elem)},
	}}, nil
}

func shapeProduct(shape []loopir.Expr) loopir.Expr {
	var acc loopir.Expr = loopir.Int(1)
	for _, d := range shape {
		acc = layout.Mul(acc, d)
	}
	return acc
}

// lowerRegisterAlloc declares one vector variable per innermost row. The
// innermost dimension must be exactly one vector wide.
func (st *procState) lowerRegisterAlloc(s loopir.Alloc, space memspace.Space) ([]csrc.Stmt, error) {
	t := s.Type
	if t.Base != space.Elem {
		return nil, diag.Unsupported(s.Src, "memory %s holds %s, cannot allocate %s", space.Name, space.Elem, t)
	}
	if t.Rank() == 0 {
		return nil, diag.Unsupported(s.Src, "memory %s cannot hold scalar %s", space.Name, s.Name)
	}
	if lanes, ok := loopir.ConstInt(t.Shape[t.Rank()-1]); !ok || lanes != int64(space.Lanes) {
		return nil, diag.Unsupported(s.Src, "innermost dimension of %s must be %d in memory %s",
			s.Name, space.Lanes, space.Name)
	}
	lead := t.Shape[:t.Rank()-1]
	rows := shapeProduct(lead)
	n, ok := loopir.ConstInt(rows)
	if !ok {
		return nil, diag.Shape(s.Src, "register buffer %s must have a constant shape, got %s", s.Name, t)
	}
	b := st.bind(s.Name, &binding{
		kind:  bindRegister,
		base:  t.Base,
		space: space,
		view: layout.View{
			Name:    s.Name,
			Elem:    t.Base,
			Shape:   t.Shape,
			Strides: append(layout.StaticStrides(lead), loopir.Int(1)),
			Mem:     space.Name,
		},
	})
	var typ ctypes.Type = space.Vector
	if len(lead) > 0 {
		typ = ctypes.Array(space.Vector, n)
	}
	return []csrc.Stmt{csrc.Sdecl{Typ: typ, Name: b.cname}}, nil
}

func (st *procState) lowerWindowStmt(s loopir.WindowStmt) ([]csrc.Stmt, error) {
	src, ok := st.lookup(s.RHS.Name)
	if !ok {
		return nil, diag.Invariant(s.Src, "window source %s is not in scope", s.RHS.Name)
	}
	if src.kind != bindBuffer {
		return nil, diag.Unsupported(s.Src, "cannot take a window of %s in memory %s",
			s.RHS.Name, loopir.MemName(src.view.Mem))
	}
	off, stored, view, err := src.view.Narrow(s.Name, s.RHS, s.Src)
	if err != nil {
		return nil, err
	}
	ws := layout.WindowStruct{Elem: src.base, Rank: view.Rank(), Const: src.readOnly}
	typ := st.windows.Use(ws)
	init, err := st.descriptor(src, off, stored, typ, s.Src)
	if err != nil {
		return nil, err
	}
	b := st.bind(s.Name, &binding{kind: bindBuffer, base: src.base, readOnly: src.readOnly, view: view})
	return []csrc.Stmt{csrc.Sdecl{Typ: typ, Name: b.cname, Init: init}}, nil
}

// descriptor builds the compound literal of a window over b starting at
// element off with the given stored strides.
func (st *procState) descriptor(b *binding, off loopir.Expr, stored []loopir.Expr, typ ctypes.Tstruct, src loopir.SrcInfo) (csrc.Expr, error) {
	first, err := st.element(b, off, src)
	if err != nil {
		return nil, err
	}
	elems := []csrc.Expr{csrc.Eaddrof{Arg: first}}
	if len(stored) > 0 {
		strides := make([]csrc.Expr, len(stored))
		for i, s := range stored {
			if strides[i], err = st.lowerExpr(s, src); err != nil {
				return nil, err
			}
		}
		elems = append(elems, csrc.Einit{Elems: strides})
	}
	return csrc.Ecompound{Typ: typ, Init: csrc.Einit{Elems: elems}}, nil
}

func (st *procState) lowerAssign(name loopir.Sym, idx []loopir.Expr, rhs loopir.Expr, op *csrc.BinaryOp, src loopir.SrcInfo) (csrc.Stmt, error) {
	b, ok := st.lookup(name)
	if !ok {
		return nil, diag.Invariant(src, "assignment to %s which is not in scope", name)
	}
	switch {
	case b.kind == bindCtrl:
		return nil, diag.Invariant(src, "assignment to control value %s", name)
	case b.kind == bindRegister:
		return nil, diag.Unsupported(src, "cannot write to buffer %s in memory %s", name, b.space.Name)
	case b.readOnly:
		return nil, diag.Invariant(src, "assignment to read-only buffer %s", name)
	}
	lhs, err := st.access(b, name, idx, src)
	if err != nil {
		return nil, err
	}
	val, err := st.lowerExpr(rhs, src)
	if err != nil {
		return nil, err
	}
	if rt, ok := st.typeOf(rhs); ok && rt != b.base {
		if b.base == loopir.I8 && rt == loopir.I32 {
			st.useHelper(clampHelper)
			val = csrc.Ecall{Func: clampHelper.Name, Args: []csrc.Expr{val}}
		} else {
			val = csrc.Ecast{Arg: val, Typ: memspace.ElemCType(b.base)}
		}
	}
	return csrc.Sassign{LHS: lhs, Op: op, RHS: val}, nil
}
