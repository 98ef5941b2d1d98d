// Package csrctest provides a small interpreter over emitted C trees so
// tests can check iteration counts and addressing without a C compiler.
package csrctest

import (
	"fmt"

	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/ctypes"
)

// Value is an interpreter value: an integer, a float, a pointer into a
// buffer, a struct, or an initializer list.
type Value struct {
	Int     int64
	Float   float64
	IsFloat bool
	Ptr     *Pointer
	Fields  map[string]Value
	Elems   []Value
}

// Pointer addresses element Off of Mem
type Pointer struct {
	Mem []float64
	Off int64
}

// IntVal wraps an integer
func IntVal(v int64) Value { return Value{Int: v} }

// FloatVal wraps a float
func FloatVal(v float64) Value { return Value{Float: v, IsFloat: true} }

// PtrVal points at the start of mem
func PtrVal(mem []float64) Value { return Value{Ptr: &Pointer{Mem: mem}} }

// WindowVal builds a window descriptor value over mem starting at off
func WindowVal(mem []float64, off int64, strides ...int64) Value {
	elems := make([]Value, len(strides))
	for i, s := range strides {
		elems[i] = IntVal(s)
	}
	return Value{Fields: map[string]Value{
		"data":    {Ptr: &Pointer{Mem: mem, Off: off}},
		"strides": {Elems: elems},
	}}
}

func (v Value) asFloat() float64 {
	if v.IsFloat {
		return v.Float
	}
	return float64(v.Int)
}

func (v Value) truthy() bool {
	if v.IsFloat {
		return v.Float != 0
	}
	return v.Int != 0
}

// Interp executes statements. Funcs handles calls to functions the
// interpreter does not know; Raw handles pre-rendered statements.
type Interp struct {
	Funcs  map[string]func(args []Value) (Value, error)
	Raw    func(text string) error
	scopes []map[string]Value
	Steps  int
}

// New creates an interpreter with an empty global scope
func New() *Interp {
	return &Interp{Funcs: map[string]func([]Value) (Value, error){}, scopes: []map[string]Value{{}}}
}

// Set binds a name in the current scope
func (in *Interp) Set(name string, v Value) {
	in.scopes[len(in.scopes)-1][name] = v
}

func (in *Interp) lookup(name string) (Value, bool) {
	for i := len(in.scopes) - 1; i >= 0; i-- {
		if v, ok := in.scopes[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (in *Interp) assign(name string, v Value) error {
	for i := len(in.scopes) - 1; i >= 0; i-- {
		if _, ok := in.scopes[i][name]; ok {
			in.scopes[i][name] = v
			return nil
		}
	}
	return fmt.Errorf("assignment to undeclared %s", name)
}

func (in *Interp) push() { in.scopes = append(in.scopes, map[string]Value{}) }
func (in *Interp) pop()  { in.scopes = in.scopes[:len(in.scopes)-1] }

// Call runs a function body with arguments bound by parameter name.
func (in *Interp) Call(fn *csrc.Function, args map[string]Value) error {
	in.push()
	defer in.pop()
	for _, p := range fn.Params {
		if v, ok := args[p.Name]; ok {
			in.Set(p.Name, v)
		}
	}
	return in.Exec(fn.Body)
}

// Exec runs a statement list in a fresh scope
func (in *Interp) Exec(body []csrc.Stmt) error {
	in.push()
	defer in.pop()
	for _, s := range body {
		if err := in.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) exec(stmt csrc.Stmt) error {
	in.Steps++
	switch s := stmt.(type) {
	case csrc.Sskip:
		return nil
	case csrc.Sdecl:
		if arr, ok := s.Typ.(ctypes.Tarray); ok {
			n := arr.Size
			for inner, ok := arr.Elem.(ctypes.Tarray); ok; inner, ok = inner.Elem.(ctypes.Tarray) {
				n *= inner.Size
			}
			in.Set(s.Name, PtrVal(make([]float64, n)))
			return nil
		}
		if s.Init == nil {
			in.Set(s.Name, Value{})
			return nil
		}
		v, err := in.Eval(s.Init)
		if err != nil {
			return err
		}
		in.Set(s.Name, v)
		return nil
	case csrc.Sassign:
		rhs, err := in.Eval(s.RHS)
		if err != nil {
			return err
		}
		if s.Op != nil {
			cur, err := in.Eval(s.LHS)
			if err != nil {
				return err
			}
			if rhs, err = binop(*s.Op, cur, rhs); err != nil {
				return err
			}
		}
		return in.store(s.LHS, rhs)
	case csrc.Sexpr:
		_, err := in.Eval(s.Expr)
		return err
	case csrc.Sfor:
		in.push()
		defer in.pop()
		in.Set(s.Var, IntVal(0))
		for {
			i, _ := in.lookup(s.Var)
			hi, err := in.Eval(s.Hi)
			if err != nil {
				return err
			}
			if i.Int >= hi.Int {
				return nil
			}
			if err := in.Exec(s.Body); err != nil {
				return err
			}
			i, _ = in.lookup(s.Var)
			in.Set(s.Var, IntVal(i.Int+1))
		}
	case csrc.Sif:
		c, err := in.Eval(s.Cond)
		if err != nil {
			return err
		}
		if c.truthy() {
			return in.Exec(s.Then)
		}
		return in.Exec(s.Else)
	case csrc.Sraw:
		if in.Raw == nil {
			return fmt.Errorf("cannot interpret raw statement %q", s.Text)
		}
		return in.Raw(s.Text)
	}
	return fmt.Errorf("unsupported statement %T", stmt)
}

func (in *Interp) address(e csrc.Expr) (*Pointer, error) {
	switch e := e.(type) {
	case csrc.Eindex:
		base, err := in.Eval(e.Base)
		if err != nil {
			return nil, err
		}
		if base.Ptr == nil {
			return nil, fmt.Errorf("subscript of non-pointer %s", csrc.ExprString(e.Base))
		}
		idx, err := in.Eval(e.Idx)
		if err != nil {
			return nil, err
		}
		off := base.Ptr.Off + idx.Int
		if off < 0 || off >= int64(len(base.Ptr.Mem)) {
			return nil, fmt.Errorf("out of bounds access %s at offset %d (size %d)",
				csrc.ExprString(e), off, len(base.Ptr.Mem))
		}
		return &Pointer{Mem: base.Ptr.Mem, Off: off}, nil
	case csrc.Ederef:
		v, err := in.Eval(e.Ptr)
		if err != nil {
			return nil, err
		}
		if v.Ptr == nil {
			return nil, fmt.Errorf("dereference of non-pointer %s", csrc.ExprString(e.Ptr))
		}
		return v.Ptr, nil
	}
	return nil, fmt.Errorf("not an lvalue: %s", csrc.ExprString(e))
}

func (in *Interp) store(lhs csrc.Expr, v Value) error {
	if name, ok := lhs.(csrc.Evar); ok {
		return in.assign(name.Name, v)
	}
	p, err := in.address(lhs)
	if err != nil {
		return err
	}
	p.Mem[p.Off] = v.asFloat()
	return nil
}

// Eval evaluates an expression in the current scope
func (in *Interp) Eval(expr csrc.Expr) (Value, error) {
	switch e := expr.(type) {
	case csrc.Econst_int:
		return IntVal(e.Value), nil
	case csrc.Econst_float:
		return FloatVal(e.Value), nil
	case csrc.Econst_bool:
		if e.Value {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	case csrc.Evar:
		v, ok := in.lookup(e.Name)
		if !ok {
			return Value{}, fmt.Errorf("undefined variable %s", e.Name)
		}
		return v, nil
	case csrc.Eindex:
		base, err := in.Eval(e.Base)
		if err != nil {
			return Value{}, err
		}
		if base.Elems != nil {
			idx, err := in.Eval(e.Idx)
			if err != nil {
				return Value{}, err
			}
			if idx.Int < 0 || idx.Int >= int64(len(base.Elems)) {
				return Value{}, fmt.Errorf("index %d out of range", idx.Int)
			}
			return base.Elems[idx.Int], nil
		}
		p, err := in.address(e)
		if err != nil {
			return Value{}, err
		}
		return FloatVal(p.Mem[p.Off]), nil
	case csrc.Ederef:
		p, err := in.address(e)
		if err != nil {
			return Value{}, err
		}
		return FloatVal(p.Mem[p.Off]), nil
	case csrc.Efield:
		base, err := in.Eval(e.Arg)
		if err != nil {
			return Value{}, err
		}
		f, ok := base.Fields[e.FieldName]
		if !ok {
			return Value{}, fmt.Errorf("no field %s", e.FieldName)
		}
		return f, nil
	case csrc.Eaddrof:
		p, err := in.address(e.Arg)
		if err != nil {
			return Value{}, err
		}
		return Value{Ptr: p}, nil
	case csrc.Eunop:
		v, err := in.Eval(e.Arg)
		if err != nil {
			return Value{}, err
		}
		if e.Op == csrc.Onotbool {
			if v.truthy() {
				return IntVal(0), nil
			}
			return IntVal(1), nil
		}
		if v.IsFloat {
			return FloatVal(-v.Float), nil
		}
		return IntVal(-v.Int), nil
	case csrc.Ebinop:
		l, err := in.Eval(e.Left)
		if err != nil {
			return Value{}, err
		}
		r, err := in.Eval(e.Right)
		if err != nil {
			return Value{}, err
		}
		return binop(e.Op, l, r)
	case csrc.Ecast:
		v, err := in.Eval(e.Arg)
		if err != nil {
			return Value{}, err
		}
		switch e.Typ.(type) {
		case ctypes.Tint:
			if v.IsFloat {
				return IntVal(int64(v.Float)), nil
			}
			return v, nil
		case ctypes.Tfloat:
			return FloatVal(v.asFloat()), nil
		}
		return v, nil
	case csrc.Ecall:
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := in.Eval(a)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return in.call(e.Func, args)
	case csrc.Einit:
		elems := make([]Value, len(e.Elems))
		for i, a := range e.Elems {
			v, err := in.Eval(a)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{Elems: elems}, nil
	case csrc.Ecompound:
		init, err := in.Eval(e.Init)
		if err != nil {
			return Value{}, err
		}
		v := Value{Fields: map[string]Value{}}
		if len(init.Elems) > 0 {
			v.Fields["data"] = init.Elems[0]
		}
		if len(init.Elems) > 1 {
			v.Fields["strides"] = init.Elems[1]
		}
		return v, nil
	case csrc.Esizeof:
		return IntVal(1), nil
	}
	return Value{}, fmt.Errorf("unsupported expression %T", expr)
}

func (in *Interp) call(name string, args []Value) (Value, error) {
	if f, ok := in.Funcs[name]; ok {
		return f(args)
	}
	switch name {
	case "lcc_floor_div":
		a, b := args[0].Int, args[1].Int
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return IntVal(q), nil
	case "malloc":
		return PtrVal(make([]float64, args[0].Int)), nil
	case "free":
		return Value{}, nil
	}
	return Value{}, fmt.Errorf("call to unknown function %s", name)
}

func binop(op csrc.BinaryOp, l, r Value) (Value, error) {
	if op == csrc.Oadd && l.Ptr != nil {
		return Value{Ptr: &Pointer{Mem: l.Ptr.Mem, Off: l.Ptr.Off + r.Int}}, nil
	}
	if l.IsFloat || r.IsFloat {
		a, b := l.asFloat(), r.asFloat()
		switch op {
		case csrc.Oadd:
			return FloatVal(a + b), nil
		case csrc.Osub:
			return FloatVal(a - b), nil
		case csrc.Omul:
			return FloatVal(a * b), nil
		case csrc.Odiv:
			return FloatVal(a / b), nil
		}
		return compare(op, a < b, a == b)
	}
	a, b := l.Int, r.Int
	switch op {
	case csrc.Oadd:
		return IntVal(a + b), nil
	case csrc.Osub:
		return IntVal(a - b), nil
	case csrc.Omul:
		return IntVal(a * b), nil
	case csrc.Odiv, csrc.Omod:
		if b == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		if op == csrc.Odiv {
			return IntVal(a / b), nil
		}
		return IntVal(a % b), nil
	case csrc.Oand:
		return boolVal(a != 0 && b != 0), nil
	case csrc.Oor:
		return boolVal(a != 0 || b != 0), nil
	}
	return compare(op, a < b, a == b)
}

func compare(op csrc.BinaryOp, lt, eq bool) (Value, error) {
	switch op {
	case csrc.Olt:
		return boolVal(lt), nil
	case csrc.Ole:
		return boolVal(lt || eq), nil
	case csrc.Ogt:
		return boolVal(!lt && !eq), nil
	case csrc.Oge:
		return boolVal(!lt), nil
	case csrc.Oeq:
		return boolVal(eq), nil
	case csrc.One:
		return boolVal(!eq), nil
	}
	return Value{}, fmt.Errorf("unsupported operator %s", op)
}

func boolVal(b bool) Value {
	if b {
		return IntVal(1)
	}
	return IntVal(0)
}
