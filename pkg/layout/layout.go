// Package layout decides how buffers are represented in emitted C: raw
// pointers with static strides or window descriptors with run-time strides.
package layout

import (
	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/memspace"
)

// Kind is the C representation of a parameter
type Kind int

const (
	ByValue Kind = iota // size, index, stride, bool
	Pointer             // raw pointer, static row-major strides
	Window              // window descriptor struct passed by value
)

func (k Kind) String() string {
	names := []string{"value", "pointer", "window"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Sizes is the set of size parameters in scope
type Sizes map[loopir.Sym]bool

// SizesOf collects the size parameters of a procedure
func SizesOf(p *loopir.Proc) Sizes {
	sizes := Sizes{}
	for _, a := range p.Params {
		if a.Type.Base == loopir.Size && !a.Type.IsTensor() {
			sizes[a.Name] = true
		}
	}
	return sizes
}

// ParamLayout is the lowering decision for one parameter
type ParamLayout struct {
	Kind   Kind
	CType  ctypes.Type
	Const  bool
	Struct *WindowStruct // Window kind only
	View   View          // buffers only
}

// View is how element addresses of a buffer are formed. Strides are IR
// expressions so they can be folded before lowering; stride(x, d) of a
// window resolves to the descriptor field.
type View struct {
	Name    loopir.Sym
	Elem    loopir.BaseType
	Shape   []loopir.Expr
	Strides []loopir.Expr
	Window  bool
	Const   bool
	Mem     string
}

// Rank returns the number of dimensions of the view
func (v View) Rank() int {
	return len(v.Shape)
}

// LowerParam decides the C representation of a procedure parameter.
func LowerParam(p loopir.Param, sizes Sizes) (ParamLayout, error) {
	t := p.Type
	if !t.IsBuffer() {
		if t.IsTensor() {
			return ParamLayout{}, diag.Invariant(p.Src, "control value %s cannot have a shape", p.Name)
		}
		if t.Base == loopir.Bool {
			return ParamLayout{Kind: ByValue, CType: ctypes.Bool()}, nil
		}
		return ParamLayout{Kind: ByValue, CType: ctypes.Index()}, nil
	}

	space, err := memspace.Lookup(p.Mem)
	if err != nil {
		return ParamLayout{}, diag.Unsupported(p.Src, "parameter %s: %v", p.Name, err)
	}
	if space.IsRegister() {
		return ParamLayout{}, diag.Unsupported(p.Src,
			"parameter %s: buffers in register memory %s cannot be passed to a procedure", p.Name, space.Name)
	}
	if err := CheckShape(t.Shape, sizes, p.Src); err != nil {
		return ParamLayout{}, err
	}

	elem := memspace.ElemCType(t.Base)
	readOnly := !p.Mutable
	view := View{
		Name:  p.Name,
		Elem:  t.Base,
		Shape: t.Shape,
		Const: readOnly,
		Mem:   space.Name,
	}

	if !t.Window {
		view.Strides = StaticStrides(t.Shape)
		return ParamLayout{
			Kind:  Pointer,
			CType: ctypes.Tpointer{Elem: elem, Const: readOnly},
			Const: readOnly,
			View:  view,
		}, nil
	}

	ws := WindowStruct{Elem: t.Base, Rank: t.Rank(), Const: readOnly}
	view.Window = true
	view.Strides = DescriptorStrides(p.Name, t.Rank())
	return ParamLayout{
		Kind:   Window,
		CType:  ws.Type(),
		Const:  readOnly,
		Struct: &ws,
		View:   view,
	}, nil
}

// CheckShape reports UnresolvableShape unless every dimension is a
// non-negative constant, a size parameter, or + * / % over those.
func CheckShape(shape []loopir.Expr, sizes Sizes, src loopir.SrcInfo) error {
	for _, d := range shape {
		if !resolvable(d, sizes) {
			return diag.Shape(src, "dimension %s is not expressible in size parameters", loopir.ExprString(d))
		}
		if v, ok := loopir.ConstInt(d); ok && v < 0 {
			return diag.Shape(src, "dimension %s is negative", loopir.ExprString(d))
		}
	}
	return nil
}

func resolvable(e loopir.Expr, sizes Sizes) bool {
	switch e := e.(type) {
	case loopir.IntConst:
		return e.Value >= 0
	case loopir.Read:
		return len(e.Idx) == 0 && sizes[e.Name]
	case loopir.BinOp:
		switch e.Op {
		case loopir.Add, loopir.Mul, loopir.Div, loopir.Mod:
			return resolvable(e.LHS, sizes) && resolvable(e.RHS, sizes)
		}
	}
	return false
}

// StaticStrides returns the row-major strides of a dense allocation;
// the last stride is 1.
func StaticStrides(shape []loopir.Expr) []loopir.Expr {
	strides := make([]loopir.Expr, len(shape))
	var acc loopir.Expr = loopir.Int(1)
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = acc
		acc = Mul(shape[d], acc)
	}
	return strides
}

// DescriptorStrides returns the strides of a window descriptor: the
// stored leading strides followed by the implicit unit stride.
func DescriptorStrides(name loopir.Sym, rank int) []loopir.Expr {
	strides := make([]loopir.Expr, rank)
	for d := 0; d < rank-1; d++ {
		strides[d] = loopir.StrideExpr{Name: name, Dim: d}
	}
	if rank > 0 {
		strides[rank-1] = loopir.Int(1)
	}
	return strides
}

// Offset returns sum(idx[d] * strides[d]) with unit factors and zero
// terms folded away.
func Offset(idx, strides []loopir.Expr) loopir.Expr {
	var acc loopir.Expr = loopir.Int(0)
	for d, i := range idx {
		acc = Add(acc, Mul(i, strides[d]))
	}
	return acc
}

// Add builds a + b folding constants
func Add(a, b loopir.Expr) loopir.Expr {
	av, aok := loopir.ConstInt(a)
	bv, bok := loopir.ConstInt(b)
	switch {
	case aok && bok:
		return loopir.Int(av + bv)
	case aok && av == 0:
		return b
	case bok && bv == 0:
		return a
	}
	return loopir.Bin(loopir.Add, a, b)
}

// Mul builds a * b folding constants
func Mul(a, b loopir.Expr) loopir.Expr {
	av, aok := loopir.ConstInt(a)
	bv, bok := loopir.ConstInt(b)
	switch {
	case aok && bok:
		return loopir.Int(av * bv)
	case aok && av == 1:
		return b
	case bok && bv == 1:
		return a
	case aok && av == 0, bok && bv == 0:
		return loopir.Int(0)
	}
	return loopir.Bin(loopir.Mul, a, b)
}

// WindowFields computes the element offset of a window's first element
// and the strides of the dimensions it keeps. Points drop a dimension,
// intervals keep it.
func WindowFields(v View, w loopir.WindowExpr, src loopir.SrcInfo) (loopir.Expr, []loopir.Expr, []loopir.Expr, error) {
	if len(w.Idx) != v.Rank() {
		return nil, nil, nil, diag.Rank(src, "window of %s has %d indices, buffer has rank %d",
			w.Name, len(w.Idx), v.Rank())
	}
	starts := make([]loopir.Expr, len(w.Idx))
	var strides, shape []loopir.Expr
	for d, a := range w.Idx {
		switch a := a.(type) {
		case loopir.Point:
			starts[d] = a.Pt
		case loopir.Interval:
			starts[d] = a.Lo
			strides = append(strides, v.Strides[d])
			shape = append(shape, Sub(a.Hi, a.Lo))
		}
	}
	if len(strides) > 0 {
		if _, ok := w.Idx[len(w.Idx)-1].(loopir.Interval); !ok {
			return nil, nil, nil, diag.Invariant(src,
				"window %s drops its innermost dimension; the innermost stride must stay 1",
				loopir.ExprString(w))
		}
		if s, ok := loopir.ConstInt(v.Strides[len(v.Strides)-1]); !ok || s != 1 {
			return nil, nil, nil, diag.Invariant(src,
				"window %s: innermost dimension of %s is not contiguous", loopir.ExprString(w), w.Name)
		}
	}
	return Offset(starts, v.Strides), strides, shape, nil
}

// Sub builds a - b folding constants
func Sub(a, b loopir.Expr) loopir.Expr {
	if d, ok := loopir.Extent(b, a); ok {
		return loopir.Int(d)
	}
	if bv, ok := loopir.ConstInt(b); ok && bv == 0 {
		return a
	}
	return loopir.Bin(loopir.Sub, a, b)
}

// Narrow binds name to a window of v. It returns the data offset and the
// stored strides used to initialize the descriptor, and the view through
// which later accesses to name are addressed.
func (v View) Narrow(name loopir.Sym, w loopir.WindowExpr, src loopir.SrcInfo) (loopir.Expr, []loopir.Expr, View, error) {
	off, strides, shape, err := WindowFields(v, w, src)
	if err != nil {
		return nil, nil, View{}, err
	}
	if len(shape) == 0 {
		return nil, nil, View{}, diag.Invariant(src, "window %s selects a single element", loopir.ExprString(w))
	}
	return off, strides[:len(strides)-1], View{
		Name:    name,
		Elem:    v.Elem,
		Shape:   shape,
		Strides: DescriptorStrides(name, len(shape)),
		Window:  true,
		Const:   v.Const,
		Mem:     v.Mem,
	}, nil
}
