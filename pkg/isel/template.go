// Package isel maps abstract vector operations onto target intrinsics.
// Entries are keyed by (memory space, operation) and rendered from
// format strings whose placeholders name the operation's arguments.
package isel

import (
	"fmt"
	"strings"

	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// Form is how an argument is passed to a template
type Form int

const (
	Data   Form = iota // window; {name_data} is its first element or register
	Window             // window; {name} is a full descriptor value
	Scalar             // control value or element read; {name} is its value
)

func (f Form) String() string {
	names := []string{"data", "window", "scalar"}
	if int(f) < len(names) {
		return names[f]
	}
	return "?"
}

// AnyRank accepts windows of every rank
const AnyRank = -1

// ArgSpec declares one template argument
type ArgSpec struct {
	Name   string
	Form   Form
	Mem    string // required memory space, "" for any
	Rank   int
	Writes bool
}

// Assumption bounds the extent of one dimension of an argument.
// Exact requires equality (full-width vector accesses).
type Assumption struct {
	Arg   string
	Dim   int
	Max   int64
	Exact bool
}

// Helper is static C code a template depends on
type Helper struct {
	Name string
	Code string
}

// Template is one (memory space, operation) entry
type Template struct {
	Op        string
	Mem       string
	Intrinsic string
	Format    string
	Args      []ArgSpec
	Assumes   []Assumption
	RankAgree bool
	Helpers   []Helper
}

// Key identifies a template
type Key struct {
	Mem string
	Op  string
}

func (k Key) String() string {
	return k.Op + "@" + k.Mem
}

// Arity returns the number of arguments the template takes
func (t *Template) Arity() int {
	return len(t.Args)
}

// Arg is a lowered call argument as seen by resolution
type Arg struct {
	Mem   string
	Rank  int
	Const bool // the underlying buffer is read-only in scope

	// Data is the lvalue of the first element or the register variable.
	Data string
	// Value is the full rendering: a descriptor value for windows, the
	// expression for scalars.
	Value string

	IsScalar bool

	// Extents are the IR extents of the kept dimensions and ExtentC their
	// lowered text, used for assumption checks and hints.
	Extents []loopir.Expr
	ExtentC []string
}

// Instance is a resolved call
type Instance struct {
	Hints   []string // LCC_ASSUME(...) statements to precede the call
	Code    string
	Helpers []Helper
}

// Resolve checks args against the template and renders the call.
func (t *Template) Resolve(args []Arg, src loopir.SrcInfo) (*Instance, error) {
	if len(args) != t.Arity() {
		return nil, diag.Unsupported(src, "%s takes %d arguments, got %d", Key{t.Mem, t.Op}, t.Arity(), len(args))
	}
	byName := make(map[string]Arg, len(args))
	agreed := -1
	for i, spec := range t.Args {
		a := args[i]
		byName[spec.Name] = a
		if spec.Form == Scalar {
			if !a.IsScalar && a.Rank != 0 {
				return nil, diag.Rank(src, "%s: argument %s must be a scalar", t.Op, spec.Name)
			}
			continue
		}
		if a.IsScalar && spec.Rank != 0 {
			return nil, diag.Rank(src, "%s: argument %s must be a window", t.Op, spec.Name)
		}
		if a.Data == "" {
			return nil, diag.Invariant(src, "%s: argument %s is not addressable", t.Op, spec.Name)
		}
		if spec.Rank != AnyRank && a.Rank != spec.Rank {
			return nil, diag.Rank(src, "%s: argument %s has rank %d, expected %d", t.Op, spec.Name, a.Rank, spec.Rank)
		}
		if t.RankAgree {
			if agreed >= 0 && a.Rank != agreed {
				return nil, diag.Rank(src, "%s: argument %s has rank %d, other arguments have rank %d",
					t.Op, spec.Name, a.Rank, agreed)
			}
			agreed = a.Rank
		}
		if spec.Mem != "" && loopir.MemName(a.Mem) != spec.Mem {
			return nil, diag.Unsupported(src, "%s: expected argument %s in %s but got %s",
				t.Op, spec.Name, spec.Mem, loopir.MemName(a.Mem))
		}
		if spec.Writes && a.Const {
			return nil, diag.Invariant(src, "%s: argument %s is written but its buffer is read-only", t.Op, spec.Name)
		}
	}

	var hints []string
	for _, as := range t.Assumes {
		a, ok := byName[as.Arg]
		if !ok || as.Dim >= len(a.Extents) {
			return nil, diag.Invariant(src, "%s: assumption on missing dimension %s[%d]", t.Op, as.Arg, as.Dim)
		}
		op := "<="
		if as.Exact {
			op = "=="
		}
		if aff, ok := loopir.AffineOf(a.Extents[as.Dim]); ok && aff.IsConst() {
			if v := aff.Const; v > as.Max || (as.Exact && v != as.Max) {
				return nil, diag.Unsupported(src, "%s: extent %d of argument %s violates %s %d", t.Op, v, as.Arg, op, as.Max)
			}
			continue
		}
		hints = append(hints, fmt.Sprintf("LCC_ASSUME(%s %s %d);", a.ExtentC[as.Dim], op, as.Max))
	}

	pairs := make([]string, 0, 4*len(t.Args))
	for _, spec := range t.Args {
		a := byName[spec.Name]
		pairs = append(pairs, "{"+spec.Name+"_data}", a.Data, "{"+spec.Name+"}", a.Value)
	}
	return &Instance{
		Hints:   hints,
		Code:    strings.NewReplacer(pairs...).Replace(t.Format),
		Helpers: t.Helpers,
	}, nil
}
