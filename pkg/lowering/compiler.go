// Package lowering translates one scheduled procedure into a C function.
// Buffer parameters are laid out by package layout, vector operations are
// resolved through an isel.Table, and everything else is expressed with
// the csrc tree.
package lowering

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// Compiler lowers the procedures of a unit. It holds no per-procedure
// state and may be shared by concurrent CompileProc calls.
type Compiler struct {
	unit  *loopir.Unit
	table *isel.Table
}

// NewCompiler creates a compiler for unit using table for vector operations
func NewCompiler(unit *loopir.Unit, table *isel.Table) *Compiler {
	return &Compiler{unit: unit, table: table}
}

// Result is the lowering of one procedure
type Result struct {
	Proc     *loopir.Proc
	Func     *csrc.Function
	Windows  *layout.Registry
	Helpers  []isel.Helper // sorted by name
	Mems     []string      // memory spaces referenced by the procedure
	UsesHeap bool
}

// procState is the mutable state of one CompileProc call
type procState struct {
	c        *Compiler
	proc     *loopir.Proc
	sizes    layout.Sizes
	scopes   []*scope
	windows  *layout.Registry
	helpers  map[string]isel.Helper
	mems     map[string]bool
	usesHeap bool
}

// CompileProc lowers p. Errors are *diag.Error carrying the procedure name
// and the location of the offending statement.
func (c *Compiler) CompileProc(p *loopir.Proc) (*Result, error) {
	st := &procState{
		c:       c,
		proc:    p,
		sizes:   layout.SizesOf(p),
		windows: layout.NewRegistry(),
		helpers: map[string]isel.Helper{},
		mems:    map[string]bool{},
	}
	fn, err := st.lowerProc()
	if err != nil {
		return nil, diag.InProc(err, p.Name, p.Src)
	}
	helpers := lo.Values(st.helpers)
	slices.SortFunc(helpers, func(a, b isel.Helper) int {
		return strings.Compare(a.Name, b.Name)
	})
	mems := lo.Keys(st.mems)
	slices.Sort(mems)
	return &Result{
		Proc:     p,
		Func:     fn,
		Windows:  st.windows,
		Helpers:  helpers,
		Mems:     mems,
		UsesHeap: st.usesHeap,
	}, nil
}

func (st *procState) lowerProc() (*csrc.Function, error) {
	p := st.proc
	st.push()
	// ctxt is reserved; the first scope only holds parameters
	params := []csrc.Param{{Name: "ctxt", Typ: ctypes.Pointer(ctypes.Void())}}
	for _, a := range p.Params {
		cp, err := st.lowerParam(a)
		if err != nil {
			return nil, err
		}
		params = append(params, cp)
	}

	var body []csrc.Stmt
	for _, fact := range p.Assumes {
		if trivial(fact) {
			continue
		}
		e, err := st.lowerExpr(fact, p.Src)
		if err != nil {
			return nil, err
		}
		h := fmt.Sprintf("LCC_ASSUME(%s);", csrc.ExprString(e))
		if !st.hinted(h) {
			body = append(body, csrc.Sraw{Text: h})
		}
	}

	stmts, err := st.lowerStmts(p.Body)
	if err != nil {
		return nil, err
	}
	body = append(body, stmts...)
	body = append(body, st.pop()...)

	return &csrc.Function{
		Name:   p.Name,
		Doc:    signatureDoc(p),
		Params: params,
		Body:   body,
		Static: !st.c.unit.Exported(p.Name),
	}, nil
}

// trivial reports whether an assumption carries no information
func trivial(fact loopir.Expr) bool {
	switch f := fact.(type) {
	case loopir.BoolConst:
		return f.Value
	case loopir.IntConst:
		return f.Value != 0
	}
	return false
}

func (st *procState) lowerParam(a loopir.Param) (csrc.Param, error) {
	pl, err := layout.LowerParam(a, st.sizes)
	if err != nil {
		return csrc.Param{}, err
	}
	b := &binding{base: a.Type.Base, readOnly: pl.Const}
	switch {
	case pl.Kind == layout.ByValue:
		b.kind = bindCtrl
		b.nonNeg = a.Type.Base == loopir.Size
	case a.Type.Rank() == 0:
		b.kind = bindScalarPtr
		b.view = pl.View
		st.mems[pl.View.Mem] = true
	default:
		b.kind = bindBuffer
		b.view = pl.View
		st.mems[pl.View.Mem] = true
		if pl.Struct != nil {
			st.windows.Use(*pl.Struct)
		}
	}
	st.bind(a.Name, b)
	return csrc.Param{Name: b.cname, Typ: pl.CType}, nil
}

// signatureDoc lists the parameters with their IR types and memories
func signatureDoc(p *loopir.Proc) []string {
	doc := []string{p.Name + "("}
	for i, a := range p.Params {
		line := fmt.Sprintf("    %s : %s", a.Name, a.Type)
		if a.Type.IsBuffer() {
			line += " @" + loopir.MemName(a.Mem)
		}
		if i < len(p.Params)-1 {
			line += ","
		}
		doc = append(doc, line)
	}
	return append(doc, ")")
}

func (st *procState) useHelper(h isel.Helper) {
	st.helpers[h.Name] = h
}
