package irfile

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/loopcc/pkg/loopir"
)

var stmtKinds = []string{"pass", "assign", "reduce", "for", "if", "alloc", "window", "call", "callproc", "block"}

func (d *decoder) body(n *yaml.Node) ([]loopir.Stmt, error) {
	items, err := d.sequence(n, "body")
	if err != nil || len(items) == 0 {
		return nil, err
	}
	out := make([]loopir.Stmt, 0, len(items))
	for _, it := range items {
		s, err := d.stmt(it)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// kind returns the statement keyword of a mapping: its first known key.
func kind(n *yaml.Node) string {
	for i := 0; i+1 < len(n.Content); i += 2 {
		for _, k := range stmtKinds {
			if n.Content[i].Value == k {
				return k
			}
		}
	}
	return ""
}

func (d *decoder) stmt(n *yaml.Node) (loopir.Stmt, error) {
	if n.Kind == yaml.ScalarNode && n.Value == "pass" {
		return loopir.Pass{Src: d.pos(n)}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a statement")
	}

	switch kind(n) {
	case "pass":
		f, err := d.fields(n, "pass", "src")
		if err != nil {
			return nil, err
		}
		src, err := d.src(n, f)
		return loopir.Pass{Src: src}, err
	case "assign", "reduce":
		return d.assign(n)
	case "for":
		return d.forStmt(n)
	case "if":
		return d.ifStmt(n)
	case "alloc":
		return d.alloc(n)
	case "window":
		return d.window(n)
	case "call":
		return d.call(n)
	case "callproc":
		return d.callProc(n)
	case "block":
		f, err := d.fields(n, "block", "src")
		if err != nil {
			return nil, err
		}
		s := loopir.Block{}
		if s.Src, err = d.src(n, f); err != nil {
			return nil, err
		}
		s.Body, err = d.body(f["block"])
		return s, err
	}
	return nil, d.errorf(n, "statement needs one of %s", strings.Join(stmtKinds, ", "))
}

func (d *decoder) assign(n *yaml.Node) (loopir.Stmt, error) {
	op := kind(n)
	f, err := d.fields(n, op, "rhs", "src")
	if err != nil {
		return nil, err
	}
	src, err := d.src(n, f)
	if err != nil {
		return nil, err
	}
	lhs, err := d.expr(f[op], op)
	if err != nil {
		return nil, err
	}
	target, ok := lhs.(loopir.Read)
	if !ok {
		return nil, d.errorf(f[op], "%s target must be a name or buffer element", op)
	}

	ft := loopir.F32
	if b, ok := d.elems[target.Name]; ok && b.IsFloat() {
		ft = b
	}
	rn, ok := f["rhs"]
	if !ok {
		return nil, d.errorf(n, "missing rhs")
	}
	rhs, err := d.exprAs(rn, "rhs", ft)
	if err != nil {
		return nil, err
	}
	if op == "reduce" {
		return loopir.Reduce{Name: target.Name, Idx: target.Idx, RHS: rhs, Src: src}, nil
	}
	return loopir.Assign{Name: target.Name, Idx: target.Idx, RHS: rhs, Src: src}, nil
}

func (d *decoder) forStmt(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "for", "hi", "split", "tail", "body", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.For{}
	iter, err := d.required(f, n, "for")
	if err != nil {
		return nil, err
	}
	s.Iter = loopir.Sym(iter)
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	hi, ok := f["hi"]
	if !ok {
		return nil, d.errorf(n, "missing hi")
	}
	if s.Hi, err = d.expr(hi, "hi"); err != nil {
		return nil, err
	}
	if s.Body, err = d.body(f["body"]); err != nil {
		return nil, err
	}

	sn, ok := f["split"]
	if !ok {
		if t, ok := f["tail"]; ok {
			return nil, d.errorf(t, "tail without split")
		}
		return s, nil
	}
	if s.Split, err = d.split(sn); err != nil {
		return nil, err
	}
	if t, ok := f["tail"]; ok {
		tail, err := d.body(t)
		if err != nil {
			return nil, err
		}
		// present but empty still means an explicit empty tail
		s.Split.Tail = append([]loopir.Stmt{}, tail...)
	}
	return s, nil
}

func (d *decoder) split(n *yaml.Node) (*loopir.Split, error) {
	f, err := d.fields(n, "factor", "outer", "inner")
	if err != nil {
		return nil, err
	}
	sp := &loopir.Split{}
	fn, ok := f["factor"]
	if !ok {
		return nil, d.errorf(n, "missing factor")
	}
	if err := fn.Decode(&sp.Factor); err != nil || sp.Factor < 1 {
		return nil, d.errorf(fn, "factor must be a positive integer")
	}
	outer, err := d.required(f, n, "outer")
	if err != nil {
		return nil, err
	}
	sp.Outer = loopir.Sym(outer)
	inner, err := d.scalar(f["inner"], "inner")
	if err != nil {
		return nil, err
	}
	sp.Inner = loopir.Sym(inner)
	return sp, nil
}

func (d *decoder) ifStmt(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "if", "body", "else", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.If{}
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	if s.Cond, err = d.expr(f["if"], "if"); err != nil {
		return nil, err
	}
	if s.Body, err = d.body(f["body"]); err != nil {
		return nil, err
	}
	if s.Else, err = d.body(f["else"]); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) alloc(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "alloc", "type", "mem", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.Alloc{}
	name, err := d.required(f, n, "alloc")
	if err != nil {
		return nil, err
	}
	s.Name = loopir.Sym(name)
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	if s.Type, s.Mem, err = d.typ(f, n); err != nil {
		return nil, err
	}
	d.elems[s.Name] = s.Type.Base
	return s, nil
}

func (d *decoder) window(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "window", "rhs", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.WindowStmt{}
	name, err := d.required(f, n, "window")
	if err != nil {
		return nil, err
	}
	s.Name = loopir.Sym(name)
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	rn, ok := f["rhs"]
	if !ok {
		return nil, d.errorf(n, "missing rhs")
	}
	rhs, err := d.expr(rn, "rhs")
	if err != nil {
		return nil, err
	}
	w, ok := rhs.(loopir.WindowExpr)
	if !ok {
		return nil, d.errorf(rn, "window rhs must select an interval, got %s", loopir.ExprString(rhs))
	}
	s.RHS = w
	if b, ok := d.elems[w.Name]; ok {
		d.elems[s.Name] = b
	}
	return s, nil
}

func (d *decoder) call(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "call", "mem", "args", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.Call{}
	if s.Op, err = d.required(f, n, "call"); err != nil {
		return nil, err
	}
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	if s.Mem, err = d.scalar(f["mem"], "mem"); err != nil {
		return nil, err
	}
	s.Args, err = d.exprs(f["args"], "args")
	return s, err
}

func (d *decoder) callProc(n *yaml.Node) (loopir.Stmt, error) {
	f, err := d.fields(n, "callproc", "args", "src")
	if err != nil {
		return nil, err
	}
	s := loopir.CallProc{}
	if s.Proc, err = d.required(f, n, "callproc"); err != nil {
		return nil, err
	}
	if s.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	s.Args, err = d.exprs(f["args"], "args")
	return s, err
}
