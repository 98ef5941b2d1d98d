// Package csrc defines the C syntax tree produced by lowering.
// It covers only the subset of C the backend emits: declarations,
// counted loops, conditionals, assignments and calls.
package csrc

import "github.com/raymyers/loopcc/pkg/ctypes"

// Node is the base interface for all emitted C nodes
type Node interface {
	implCsrcNode()
}

// Expr is the interface for C expressions
type Expr interface {
	Node
	implCsrcExpr()
}

// Stmt is the interface for C statements
type Stmt interface {
	Node
	implCsrcStmt()
}

// UnaryOp represents unary operators
type UnaryOp int

const (
	Oneg     UnaryOp = iota // arithmetic negation (-)
	Onotbool                // boolean negation (!)
)

func (op UnaryOp) String() string {
	names := []string{"-", "!"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// BinaryOp represents binary operators
type BinaryOp int

const (
	// Arithmetic
	Oadd BinaryOp = iota
	Osub
	Omul
	Odiv
	Omod

	// Comparison
	Oeq
	One
	Olt
	Ogt
	Ole
	Oge

	// Logical
	Oand // &&
	Oor  // ||
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=", "&&", "||"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// Prec returns the C precedence of the operator; higher binds tighter.
func (op BinaryOp) Prec() int {
	switch op {
	case Omul, Odiv, Omod:
		return 13
	case Oadd, Osub:
		return 12
	case Olt, Ogt, Ole, Oge:
		return 10
	case Oeq, One:
		return 9
	case Oand:
		return 5
	case Oor:
		return 4
	}
	return 0
}

const (
	precUnary   = 14
	precPostfix = 15
)

// --- Expressions ---

// Econst_int represents an integer literal
type Econst_int struct {
	Value int64
}

// Econst_float represents a floating-point literal of type float or double
type Econst_float struct {
	Value float64
	Typ   ctypes.Type
}

// Econst_bool represents true or false
type Econst_bool struct {
	Value bool
}

// Evar references a variable or function by name
type Evar struct {
	Name string
}

// Eindex represents subscripting: base[idx]
type Eindex struct {
	Base Expr
	Idx  Expr
}

// Efield represents struct field access: arg.name
type Efield struct {
	Arg       Expr
	FieldName string
}

// Eaddrof represents address-of: &arg
type Eaddrof struct {
	Arg Expr
}

// Ederef represents dereference: *ptr
type Ederef struct {
	Ptr Expr
}

// Eunop represents a unary operation
type Eunop struct {
	Op  UnaryOp
	Arg Expr
}

// Ebinop represents a binary operation
type Ebinop struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Ecast represents a type conversion: (typ)arg
type Ecast struct {
	Arg Expr
	Typ ctypes.Type
}

// Ecall represents a function call used as an expression
type Ecall struct {
	Func string
	Args []Expr
}

// Einit is a brace-enclosed initializer list
type Einit struct {
	Elems []Expr
}

// Ecompound is a compound literal: (typ){ ... }
type Ecompound struct {
	Typ  ctypes.Type
	Init Einit
}

// Esizeof represents sizeof(type)
type Esizeof struct {
	ArgType ctypes.Type
}

// --- Statements ---

// Sskip is an explicit no-op, printed as "; // NO-OP"
type Sskip struct{}

// Sdecl declares a local, optionally initialized
type Sdecl struct {
	Typ  ctypes.Type
	Name string
	Init Expr // nil for no initializer
}

// Sassign stores RHS into LHS; Op is nil for "=" or the compound operator
type Sassign struct {
	LHS Expr
	Op  *BinaryOp
	RHS Expr
}

// Sexpr evaluates an expression for its effect
type Sexpr struct {
	Expr Expr
}

// Sfor is a counted loop: for (int_fast32_t Var = 0; Var < Hi; Var++)
type Sfor struct {
	Var  string
	Hi   Expr
	Body []Stmt
}

// Sif is a conditional; Else is omitted when empty
type Sif struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Sraw is a pre-rendered statement, e.g. an expanded intrinsic template
type Sraw struct {
	Text string
}

// --- Top level ---

// Param is a function parameter
type Param struct {
	Name string
	Typ  ctypes.Type
}

// Function is a generated procedure. Doc lines are printed as // comments
// above both the prototype and the definition.
type Function struct {
	Name   string
	Doc    []string
	Params []Param
	Body   []Stmt
	Static bool
}

// --- Interface implementations ---

func (Econst_int) implCsrcNode()   {}
func (Econst_float) implCsrcNode() {}
func (Econst_bool) implCsrcNode()  {}
func (Evar) implCsrcNode()         {}
func (Eindex) implCsrcNode()       {}
func (Efield) implCsrcNode()       {}
func (Eaddrof) implCsrcNode()      {}
func (Ederef) implCsrcNode()       {}
func (Eunop) implCsrcNode()        {}
func (Ebinop) implCsrcNode()       {}
func (Ecast) implCsrcNode()        {}
func (Ecall) implCsrcNode()        {}
func (Einit) implCsrcNode()        {}
func (Ecompound) implCsrcNode()    {}
func (Esizeof) implCsrcNode()      {}

func (Sskip) implCsrcNode()   {}
func (Sdecl) implCsrcNode()   {}
func (Sassign) implCsrcNode() {}
func (Sexpr) implCsrcNode()   {}
func (Sfor) implCsrcNode()    {}
func (Sif) implCsrcNode()     {}
func (Sraw) implCsrcNode()    {}

func (Econst_int) implCsrcExpr()   {}
func (Econst_float) implCsrcExpr() {}
func (Econst_bool) implCsrcExpr()  {}
func (Evar) implCsrcExpr()         {}
func (Eindex) implCsrcExpr()       {}
func (Efield) implCsrcExpr()       {}
func (Eaddrof) implCsrcExpr()      {}
func (Ederef) implCsrcExpr()       {}
func (Eunop) implCsrcExpr()        {}
func (Ebinop) implCsrcExpr()       {}
func (Ecast) implCsrcExpr()        {}
func (Ecall) implCsrcExpr()        {}
func (Einit) implCsrcExpr()        {}
func (Ecompound) implCsrcExpr()    {}
func (Esizeof) implCsrcExpr()      {}

func (Sskip) implCsrcStmt()   {}
func (Sdecl) implCsrcStmt()   {}
func (Sassign) implCsrcStmt() {}
func (Sexpr) implCsrcStmt()   {}
func (Sfor) implCsrcStmt()    {}
func (Sif) implCsrcStmt()     {}
func (Sraw) implCsrcStmt()    {}

// --- Constructors ---

// Int returns an integer literal
func Int(v int64) Expr {
	return Econst_int{Value: v}
}

// Var returns a variable reference
func Var(name string) Expr {
	return Evar{Name: name}
}

// Bin returns a binary operation
func Bin(op BinaryOp, l, r Expr) Expr {
	return Ebinop{Op: op, Left: l, Right: r}
}

// Add builds l + r, folding integer literals and dropping zero terms.
func Add(l, r Expr) Expr {
	if a, ok := l.(Econst_int); ok {
		if b, ok := r.(Econst_int); ok {
			return Int(a.Value + b.Value)
		}
	}
	if isInt(l, 0) {
		return r
	}
	if isInt(r, 0) {
		return l
	}
	return Bin(Oadd, l, r)
}

// Mul builds l * r, folding integer literals and dropping unit factors.
func Mul(l, r Expr) Expr {
	if a, ok := l.(Econst_int); ok {
		if b, ok := r.(Econst_int); ok {
			return Int(a.Value * b.Value)
		}
	}
	if isInt(l, 1) {
		return r
	}
	if isInt(r, 1) {
		return l
	}
	return Bin(Omul, l, r)
}

func isInt(e Expr, v int64) bool {
	c, ok := e.(Econst_int)
	return ok && c.Value == v
}

// AddAssign returns the compound operator for "+="
func AddAssign() *BinaryOp {
	op := Oadd
	return &op
}
