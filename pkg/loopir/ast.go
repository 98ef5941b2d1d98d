// Package loopir defines the scheduled loop IR consumed by the backend.
// The IR is produced by the front end and the scheduler, already type-checked
// and proven safe; nothing in this module mutates it.
package loopir

import (
	"fmt"
	"slices"
)

// Sym names a parameter, local buffer, window or loop variable.
type Sym string

// SrcInfo is the front-end source location carried by IR nodes.
type SrcInfo struct {
	File string
	Line int
	Col  int
}

func (s SrcInfo) String() string {
	file := s.File
	if file == "" {
		file = "unknown"
	}
	if s.Col == 0 {
		return fmt.Sprintf("%s:%d", file, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", file, s.Line, s.Col)
}

// Node is the base interface for all IR nodes
type Node interface {
	implLoopIRNode()
}

// Expr is the interface for IR expressions
type Expr interface {
	Node
	implLoopIRExpr()
}

// Stmt is the interface for IR statements
type Stmt interface {
	Node
	implLoopIRStmt()
	Pos() SrcInfo
}

// Access is one index position of a window expression: a Point or an Interval.
type Access interface {
	Node
	implLoopIRAccess()
}

// BinaryOp represents binary operators
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Lt
	Gt
	Le
	Ge
	Eq
	And
	Or
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "<", ">", "<=", ">=", "==", "and", "or"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsComparison reports whether op produces a bool from two numbers.
func (op BinaryOp) IsComparison() bool {
	return op >= Lt && op <= Eq
}

// IsLogical reports whether op combines two bools.
func (op BinaryOp) IsLogical() bool {
	return op == And || op == Or
}

// --- Expressions ---

// IntConst is an integer literal
type IntConst struct {
	Value int64
}

// FloatConst is a floating-point literal of the given element type
type FloatConst struct {
	Value float64
	Type  BaseType
}

// BoolConst is true or false
type BoolConst struct {
	Value bool
}

// Read reads a control value (no indices) or a buffer element.
type Read struct {
	Name Sym
	Idx  []Expr
}

// BinOp is a binary operation
type BinOp struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// USub is unary negation
type USub struct {
	Arg Expr
}

// WindowExpr selects a view of a buffer.
// Points drop a dimension, intervals keep it.
type WindowExpr struct {
	Name Sym
	Idx  []Access
}

// StrideExpr is the stride of dimension Dim of a buffer
type StrideExpr struct {
	Name Sym
	Dim  int
}

// Point fixes one dimension of a window
type Point struct {
	Pt Expr
}

// Interval keeps the half-open range [Lo, Hi) of one dimension
type Interval struct {
	Lo Expr
	Hi Expr
}

// --- Statements ---

// Pass is a no-op
type Pass struct {
	Src SrcInfo
}

// Assign stores RHS into a buffer element (or scalar when Idx is empty)
type Assign struct {
	Name Sym
	Idx  []Expr
	RHS  Expr
	Src  SrcInfo
}

// Reduce accumulates RHS into a buffer element
type Reduce struct {
	Name Sym
	Idx  []Expr
	RHS  Expr
	Src  SrcInfo
}

// Block is a sequential list of statements
type Block struct {
	Body []Stmt
	Src  SrcInfo
}

// For is a counted loop: Iter runs over [0, Hi).
// Split is set when the scheduler divided the loop by a constant factor.
type For struct {
	Iter  Sym
	Hi    Expr
	Body  []Stmt
	Split *Split
	Src   SrcInfo
}

// Split records a loop divided by Factor.
// Body of the enclosing For runs once per full tile with Outer counting
// tiles; when Inner is set the body also runs per lane. Tail is the body of
// the remainder loop; nil reuses the main body when Inner is set.
type Split struct {
	Factor int
	Outer  Sym
	Inner  Sym
	Tail   []Stmt
}

// If is a conditional with an optional else branch
type If struct {
	Cond Expr
	Body []Stmt
	Else []Stmt
	Src  SrcInfo
}

// Alloc declares a local buffer scoped to the enclosing block
type Alloc struct {
	Name Sym
	Type Type
	Mem  string
	Src  SrcInfo
}

// WindowStmt binds Name to a view of another buffer
type WindowStmt struct {
	Name Sym
	RHS  WindowExpr
	Src  SrcInfo
}

// Call invokes an abstract operation realized by the instruction selection
// table of memory space Mem.
type Call struct {
	Op   string
	Mem  string
	Args []Expr
	Src  SrcInfo
}

// CallProc calls another procedure of the same unit
type CallProc struct {
	Proc string
	Args []Expr
	Src  SrcInfo
}

// --- Procedures ---

// Param is a procedure parameter
type Param struct {
	Name    Sym
	Type    Type
	Mem     string
	Mutable bool
	Src     SrcInfo
}

// Proc is a scheduled procedure
type Proc struct {
	Name    string
	Params  []Param
	Assumes []Expr // proven facts, re-emitted as hints
	Body    []Stmt
	Src     SrcInfo
}

// Unit is one compilation unit
type Unit struct {
	Name  string
	Procs []*Proc
	// Exports names the procedures declared in the header. When empty
	// every procedure is exported; the others are private to the source.
	Exports []string
}

// --- Interface implementations ---

func (IntConst) implLoopIRNode()   {}
func (FloatConst) implLoopIRNode() {}
func (BoolConst) implLoopIRNode()  {}
func (Read) implLoopIRNode()       {}
func (BinOp) implLoopIRNode()      {}
func (USub) implLoopIRNode()       {}
func (WindowExpr) implLoopIRNode() {}
func (StrideExpr) implLoopIRNode() {}
func (Point) implLoopIRNode()      {}
func (Interval) implLoopIRNode()   {}

func (Pass) implLoopIRNode()       {}
func (Assign) implLoopIRNode()     {}
func (Reduce) implLoopIRNode()     {}
func (Block) implLoopIRNode()      {}
func (For) implLoopIRNode()        {}
func (If) implLoopIRNode()         {}
func (Alloc) implLoopIRNode()      {}
func (WindowStmt) implLoopIRNode() {}
func (Call) implLoopIRNode()       {}
func (CallProc) implLoopIRNode()   {}

func (IntConst) implLoopIRExpr()   {}
func (FloatConst) implLoopIRExpr() {}
func (BoolConst) implLoopIRExpr()  {}
func (Read) implLoopIRExpr()       {}
func (BinOp) implLoopIRExpr()      {}
func (USub) implLoopIRExpr()       {}
func (WindowExpr) implLoopIRExpr() {}
func (StrideExpr) implLoopIRExpr() {}

func (Point) implLoopIRAccess()    {}
func (Interval) implLoopIRAccess() {}

func (Pass) implLoopIRStmt()       {}
func (Assign) implLoopIRStmt()     {}
func (Reduce) implLoopIRStmt()     {}
func (Block) implLoopIRStmt()      {}
func (For) implLoopIRStmt()        {}
func (If) implLoopIRStmt()         {}
func (Alloc) implLoopIRStmt()      {}
func (WindowStmt) implLoopIRStmt() {}
func (Call) implLoopIRStmt()       {}
func (CallProc) implLoopIRStmt()   {}

func (s Pass) Pos() SrcInfo       { return s.Src }
func (s Assign) Pos() SrcInfo     { return s.Src }
func (s Reduce) Pos() SrcInfo     { return s.Src }
func (s Block) Pos() SrcInfo      { return s.Src }
func (s For) Pos() SrcInfo        { return s.Src }
func (s If) Pos() SrcInfo         { return s.Src }
func (s Alloc) Pos() SrcInfo      { return s.Src }
func (s WindowStmt) Pos() SrcInfo { return s.Src }
func (s Call) Pos() SrcInfo       { return s.Src }
func (s CallProc) Pos() SrcInfo   { return s.Src }

// Param returns the parameter with the given name
func (p *Proc) Param(name Sym) (Param, bool) {
	for _, a := range p.Params {
		if a.Name == name {
			return a, true
		}
	}
	return Param{}, false
}

// Proc returns the procedure with the given name
func (u *Unit) Proc(name string) *Proc {
	for _, p := range u.Procs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Exported reports whether the procedure name is part of the public header
func (u *Unit) Exported(name string) bool {
	return len(u.Exports) == 0 || slices.Contains(u.Exports, name)
}

// Var is shorthand for a control-value read
func Var(name Sym) Read {
	return Read{Name: name}
}

// Int is shorthand for an integer literal
func Int(v int64) IntConst {
	return IntConst{Value: v}
}

// Bin is shorthand for a binary operation
func Bin(op BinaryOp, lhs, rhs Expr) BinOp {
	return BinOp{Op: op, LHS: lhs, RHS: rhs}
}
